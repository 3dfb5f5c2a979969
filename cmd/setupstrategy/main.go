// cmd/setupstrategy creates or replaces the day's active strategy config.
// The reference price defaults to the previous Bank Nifty close fetched
// from the index quote endpoint; pass --closing-price to override.
//
// Usage:
//
//	go run ./cmd/setupstrategy --target=500 --stoploss=250
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/internal/recorder"
	"bn-breakoutv1/internal/refprice"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	name := flag.String("name", "Bank Nifty Auto", "Strategy name")
	closingPrice := flag.Float64("closing-price", 0, "Previous Bank Nifty close in rupees (0 = fetch from quote API)")
	lotSize := flag.Int64("lot-size", 35, "Lot size for Bank Nifty options")
	target := flag.Float64("target", 500, "Target profit in rupees")
	stoploss := flag.Float64("stoploss", 250, "Stoploss in rupees")
	windowStart := flag.String("window-start", "09:15", "Trading window start (HH:MM IST)")
	windowEnd := flag.String("window-end", "09:45", "Trading window end / time-exit cutoff (HH:MM IST)")
	dbPath := flag.String("db", getEnv("SQLITE_PATH", "data/trades.db"), "Path to SQLite database")
	flag.Parse()

	start, err := model.ParseTimeOfDay(*windowStart)
	if err != nil {
		log.Fatalf("[setupstrategy] --window-start: %v", err)
	}
	end, err := model.ParseTimeOfDay(*windowEnd)
	if err != nil {
		log.Fatalf("[setupstrategy] --window-end: %v", err)
	}
	if end.Minutes() <= start.Minutes() {
		log.Fatalf("[setupstrategy] window end %s not after start %s", end, start)
	}
	if *lotSize <= 0 || *target <= 0 || *stoploss <= 0 {
		log.Fatal("[setupstrategy] lot-size, target and stoploss must be positive")
	}

	reference := model.RupeesToPaise(*closingPrice)
	if reference <= 0 {
		log.Println("[setupstrategy] fetching previous close...")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		paise, sessionDate, err := refprice.NewClient().PreviousClose(ctx)
		if err != nil {
			log.Fatalf("[setupstrategy] could not fetch previous close: %v (pass --closing-price)", err)
		}
		reference = paise
		log.Printf("[setupstrategy] previous close %s (%s)",
			model.FormatPaise(reference), sessionDate.Format("2006-01-02"))
	}

	os.MkdirAll(filepath.Dir(*dbPath), 0o755)
	store, err := recorder.Open(*dbPath)
	if err != nil {
		log.Fatalf("[setupstrategy] sqlite open failed: %v", err)
	}
	defer store.Close()

	saved, err := store.SaveConfig(model.StrategyConfig{
		Name:           *name,
		ReferencePrice: reference,
		LotSize:        *lotSize,
		TargetPnL:      model.RupeesToPaise(*target),
		StoplossPnL:    model.RupeesToPaise(*stoploss),
		WindowStart:    start,
		WindowEnd:      end,
		Active:         true,
	})
	if err != nil {
		log.Fatalf("[setupstrategy] save config failed: %v", err)
	}

	log.Printf("[setupstrategy] active config #%d: %s", saved.ID, saved.Name)
	log.Printf("[setupstrategy]   reference close: %s", model.FormatPaise(saved.ReferencePrice))
	log.Printf("[setupstrategy]   lot size: %d  target: %s  stoploss: %s",
		saved.LotSize, model.FormatPaise(saved.TargetPnL), model.FormatPaise(saved.StoplossPnL))
	log.Printf("[setupstrategy]   window: %s - %s IST", saved.WindowStart, saved.WindowEnd)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
