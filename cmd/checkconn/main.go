// cmd/checkconn runs connectivity diagnostics: broker session login,
// websocket feed handshake, contract master download, active strategy
// config and market status. Run it before the trading window to catch
// credential or network problems while there is still time to fix them.
//
// Usage:
//
//	go run ./cmd/checkconn --skip-websocket
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"bn-breakoutv1/config"
	"bn-breakoutv1/internal/contracts"
	"bn-breakoutv1/internal/markethours"
	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/internal/quotefeed"
	"bn-breakoutv1/internal/recorder"
	"bn-breakoutv1/pkg/aliceblue"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	skipWS := flag.Bool("skip-websocket", false, "Skip the websocket handshake test (useful when market is closed)")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failures := 0

	// ---- Test 1: session login ----
	log.Println("[checkconn] test 1: session login")
	client := aliceblue.NewClient(aliceblue.Config{
		UserID: cfg.AliceUserID,
		APIKey: cfg.AliceAPIKey,
	})
	sessionID, err := client.GenerateSession(ctx)
	if err != nil {
		log.Printf("[checkconn] FAIL login: %v", err)
		return
	}
	log.Printf("[checkconn] OK session %s...", sessionID[:min(10, len(sessionID))])

	// ---- Test 2: contract master ----
	log.Println("[checkconn] test 2: contract master")
	var table *contracts.Table
	data, err := client.DownloadContractMaster(ctx, cfg.Exchange)
	if err != nil {
		log.Printf("[checkconn] FAIL download: %v", err)
		failures++
	} else if table, err = contracts.Load(data); err != nil {
		log.Printf("[checkconn] FAIL parse: %v", err)
		failures++
	} else {
		expiry, err := table.NearestExpiry(cfg.Underlying, "OPTIDX", time.Now().In(markethours.IST))
		if err != nil {
			log.Printf("[checkconn] FAIL: %v", err)
			failures++
		} else {
			log.Printf("[checkconn] OK nearest %s OPTIDX expiry: %s",
				cfg.Underlying, expiry.Format("2006-01-02"))
		}
	}

	// ---- Test 3: websocket feed ----
	if *skipWS {
		log.Println("[checkconn] test 3: websocket (skipped)")
	} else if table == nil {
		log.Println("[checkconn] test 3: websocket (skipped, no contract master)")
	} else {
		log.Println("[checkconn] test 3: websocket handshake")
		feed := aliceblue.NewFeed(cfg.AliceUserID, sessionID)
		qf := quotefeed.NewFromFeed(feed, table, quotefeed.Options{ConnectTimeout: 10 * time.Second})
		if err := qf.Connect(ctx); err != nil {
			log.Printf("[checkconn] FAIL websocket: %v (normal outside market hours)", err)
			failures++
		} else {
			log.Println("[checkconn] OK websocket connected")
		}
		qf.Disconnect()
	}

	// ---- Test 4: strategy config ----
	log.Println("[checkconn] test 4: strategy config")
	store, err := recorder.Open(cfg.SQLitePath)
	if err != nil {
		log.Printf("[checkconn] FAIL sqlite: %v", err)
		failures++
	} else {
		defer store.Close()
		strat, err := store.ActiveConfig()
		switch {
		case errors.Is(err, recorder.ErrNoActiveConfig):
			log.Println("[checkconn] WARN no active config, run setupstrategy first")
			failures++
		case err != nil:
			log.Printf("[checkconn] FAIL config read: %v", err)
			failures++
		default:
			log.Printf("[checkconn] OK config %q: close %s, lot %d, target %s, stoploss %s, window %s-%s",
				strat.Name, model.FormatPaise(strat.ReferencePrice), strat.LotSize,
				model.FormatPaise(strat.TargetPnL), model.FormatPaise(strat.StoplossPnL),
				strat.WindowStart, strat.WindowEnd)
		}
	}

	// ---- Test 5: market status ----
	now := time.Now().In(markethours.IST)
	log.Printf("[checkconn] test 5: %s", markethours.StatusString(now))
	if start, end, err := cfg.ParseWindow(); err == nil {
		if markethours.InWindow(now, start, end) {
			log.Printf("[checkconn] inside trading window %s-%s", start, end)
		} else {
			log.Printf("[checkconn] outside trading window %s-%s", start, end)
		}
	}

	if failures == 0 {
		log.Println("[checkconn] all checks passed")
	} else {
		log.Printf("[checkconn] %d check(s) failed", failures)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
