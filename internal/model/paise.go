package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RupeesToPaise converts a rupee amount to paise, rounding to the nearest paisa.
func RupeesToPaise(r float64) int64 {
	return int64(math.Round(r * 100))
}

// PaiseToRupees converts paise back to a rupee float for display only.
func PaiseToRupees(p int64) float64 {
	return float64(p) / 100
}

// FormatPaise renders paise as a rupee string, e.g. 5732050 -> "57320.50".
// Negative amounts keep their sign even below one rupee.
func FormatPaise(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// ParsePaise parses a decimal rupee string ("120.5", "120.50", "120") into paise.
// Broker feeds deliver LTP as decimal strings; parsing via float would drift.
func ParsePaise(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse paise: empty string")
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse paise %q: %w", s, err)
	}
	// Keep two fractional digits, zero-padded; extra digits truncate.
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse paise %q: %w", s, err)
	}
	p := w*100 + f
	if neg {
		p = -p
	}
	return p, nil
}
