// Package refprice fetches the previous closing price of the Bank Nifty
// index. The close anchors the day's direction decision, so a run that
// cannot obtain it must not trade.
package refprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"bn-breakoutv1/internal/model"
)

// ErrNoClose is returned when the quote source has no usable close.
var ErrNoClose = errors.New("refprice: no closing price available")

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultSymbol  = "^NSEBANK"
)

// Client fetches daily closes from the Yahoo Finance chart API.
type Client struct {
	baseURL string
	symbol  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the quote endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithSymbol overrides the index symbol.
func WithSymbol(s string) Option {
	return func(c *Client) { c.symbol = s }
}

// NewClient creates a reference price client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		symbol:  defaultSymbol,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// chartResponse mirrors the subset of the Yahoo chart payload we read.
// Close entries may be null for holidays, hence *float64.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// PreviousClose returns the most recent daily close in paise, along with
// the session date it belongs to. It looks back over the last week so a
// Monday run still finds Friday's close.
func (c *Client) PreviousClose(ctx context.Context) (int64, time.Time, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=7d&interval=1d",
		c.baseURL, url.PathEscape(c.symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("refprice: build request: %w", err)
	}
	// Yahoo rejects requests without a browser-looking agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("refprice: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, time.Time{}, fmt.Errorf("refprice: unexpected status %d", resp.StatusCode)
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return 0, time.Time{}, fmt.Errorf("refprice: decode: %w", err)
	}
	if cr.Chart.Error != nil {
		return 0, time.Time{}, fmt.Errorf("refprice: api error %s: %s",
			cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, time.Time{}, ErrNoClose
	}

	result := cr.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	// Walk backwards for the latest non-null close.
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] == nil {
			continue
		}
		var sessionDate time.Time
		if i < len(result.Timestamp) {
			sessionDate = time.Unix(result.Timestamp[i], 0).UTC()
		}
		paise := model.RupeesToPaise(*closes[i])
		log.Printf("[refprice] %s close %s (%s)", c.symbol,
			model.FormatPaise(paise), sessionDate.Format("2006-01-02"))
		return paise, sessionDate, nil
	}
	return 0, time.Time{}, ErrNoClose
}
