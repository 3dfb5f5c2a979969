package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bn-breakoutv1/config"
	"bn-breakoutv1/internal/contracts"
	"bn-breakoutv1/internal/logger"
	"bn-breakoutv1/internal/markethours"
	"bn-breakoutv1/internal/metrics"
	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/internal/monitor"
	"bn-breakoutv1/internal/notification"
	"bn-breakoutv1/internal/quotefeed"
	"bn-breakoutv1/internal/recorder"
	"bn-breakoutv1/internal/retry"
	"bn-breakoutv1/internal/selector"
	"bn-breakoutv1/pkg/aliceblue"
)

func main() {
	cfg := config.Load()

	slogger := logger.Init("strategyrunner", slog.LevelInfo)
	runID := logger.GenerateRunID("bnbreakout", time.Now())
	ctx, cancel := context.WithCancel(logger.WithRunID(context.Background(), runID))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slogger.Warn("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	slogger.Info("starting", "run_id", runID)

	// ---- Trading window gate ----
	windowStart, windowEnd, err := cfg.ParseWindow()
	if err != nil {
		slogger.Error("bad trading window", "err", err)
		os.Exit(1)
	}
	now := time.Now().In(markethours.IST)
	if !markethours.IsTradingDay(now) {
		slogger.Error("not a trading day, exiting", "status", markethours.StatusString(now))
		os.Exit(1)
	}
	if start := windowStart.On(now); now.Before(start) {
		wait := start.Sub(now)
		slogger.Info("waiting for trading window", "start", windowStart.String(), "wait", wait.Truncate(time.Second).String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		now = time.Now().In(markethours.IST)
	}
	cutoff := markethours.CutoffToday(now, windowEnd)
	if !now.Before(cutoff) {
		slogger.Error("trading window already over", "end", windowEnd.String())
		os.Exit(1)
	}

	// ---- Storage ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := recorder.Open(cfg.SQLitePath)
	if err != nil {
		slogger.Error("sqlite init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	publisher, err := recorder.NewPublisher(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slogger.Warn("redis unavailable, continuing without publisher", "err", err)
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSQLiteOK(true)
	health.SetRedisConnected(publisher != nil)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	notify := notification.NewFanout(backends...)

	abort := func(stage string, err error) {
		slogger.Error("run aborted", "stage", stage, "err", err)
		if dbErr := store.RecordAbort(cfg.StrategyName, "", stage, err.Error()); dbErr != nil {
			slogger.Error("abort record failed", "err", dbErr)
		}
		notify.Send(context.Background(), notification.RunAborted(stage, err))
		os.Exit(1)
	}

	// ---- Broker login ----
	client := aliceblue.NewClient(aliceblue.Config{
		UserID: cfg.AliceUserID,
		APIKey: cfg.AliceAPIKey,
	})
	var sessionID string
	if cfg.AliceTOTPSecret != "" {
		sessionID, err = client.GenerateSessionWithTOTP(ctx, cfg.AlicePassword, cfg.AliceTOTPSecret)
	} else {
		sessionID, err = client.GenerateSession(ctx)
	}
	if err != nil {
		abort("login", err)
	}
	slogger.Info("session established", "user", cfg.AliceUserID)

	// ---- Contract master ----
	var masterCSV []byte
	dlRetry := retry.New(3, 5*time.Second)
	err = dlRetry.Do(ctx, func() error {
		var dlErr error
		masterCSV, dlErr = client.DownloadContractMaster(ctx, cfg.Exchange)
		return dlErr
	})
	if err != nil {
		abort("contract_master", err)
	}
	table, err := contracts.Load(masterCSV)
	if err != nil {
		abort("contract_master", err)
	}

	expiry, err := table.NearestExpiry(cfg.Underlying, "OPTIDX", now)
	if err != nil {
		abort("expiry", err)
	}

	// ---- Strategy config (active row, else env defaults + live reference) ----
	strat, err := store.ActiveConfig()
	if errors.Is(err, recorder.ErrNoActiveConfig) {
		slogger.Warn("no active strategy config, run setupstrategy first")
		abort("config", err)
	} else if err != nil {
		abort("config", err)
	}
	slogger.Info("strategy config loaded",
		"name", strat.Name,
		"reference", model.FormatPaise(strat.ReferencePrice),
		"target", model.FormatPaise(strat.TargetPnL),
		"stoploss", model.FormatPaise(strat.StoplossPnL))

	// ---- Direction & strike ----
	currentPrice, err := client.LTP(ctx, cfg.IndexExchange, cfg.IndexToken)
	if err != nil {
		abort("index_ltp", err)
	}
	sel, err := selector.Select(selector.Input{
		CurrentPrice:   currentPrice,
		ReferencePrice: strat.ReferencePrice,
		StrikeRounding: model.RupeesToPaise(cfg.StrikeStep),
		Underlying:     cfg.Underlying,
		Expiry:         expiry,
	})
	if err != nil {
		abort("select", err)
	}
	if fd := model.Direction(cfg.ForceDirection); fd.Valid() && fd != sel.Direction {
		slogger.Warn("direction override", "derived", sel.Direction, "forced", fd)
		sel.Direction = fd
		sel.Symbol = contracts.OptionSymbol(cfg.Underlying, expiry, sel.Strike, fd.OptionType())
	}
	slogger.Info("trade selected",
		"direction", sel.Direction,
		"strike", model.FormatPaise(sel.Strike),
		"symbol", sel.Symbol,
		"index", model.FormatPaise(currentPrice))

	inst, err := table.Resolve(sel.Symbol)
	if err != nil {
		abort("resolve", err)
	}
	lotSize := strat.LotSize
	if inst.LotSize > 0 {
		lotSize = int64(inst.LotSize)
	}

	// ---- Quote feed ----
	feed := aliceblue.NewFeed(cfg.AliceUserID, sessionID)
	qf := quotefeed.NewFromFeed(feed, table, quotefeed.Options{})
	qf.OnQuote = func(q model.Quote) {
		prom.TicksTotal.Inc()
		prom.QuoteAge.Set(0)
		health.SetWSConnected(true)
		health.SetLastTickTime(q.ReceivedAt)
		if publisher != nil {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), time.Second)
			start := time.Now()
			publisher.PublishQuote(pubCtx, q)
			prom.RedisWriteDur.Observe(time.Since(start).Seconds())
			pubCancel()
		}
	}

	connRetry := retry.New(3, 3*time.Second)
	err = connRetry.Do(ctx, func() error {
		if connErr := qf.Connect(ctx); connErr != nil {
			prom.FeedErrors.Inc()
			qf.Disconnect()
			return connErr
		}
		return nil
	})
	if err != nil {
		abort("feed_connect", err)
	}
	defer qf.Disconnect()
	health.SetWSConnected(true)

	if err := qf.Subscribe(sel.Symbol); err != nil {
		abort("subscribe", err)
	}
	slogger.Info("subscribed", "symbol", sel.Symbol, "token", inst.Token)

	// ---- Monitor ----
	mon := monitor.New(qf, monitor.Config{})
	mon.OnPoll = func(pnl int64, q model.Quote) {
		prom.PollIterations.Inc()
		prom.UnrealizedPnL.Set(float64(pnl))
		prom.QuoteAge.Set(time.Since(q.ReceivedAt).Seconds())
	}
	mon.OnMiss = func() { prom.QuotesMissed.Inc() }
	mon.OnEntryAttempt = func() { prom.EntryAttempts.Inc() }

	health.SetPosition(true, sel.Symbol)
	prom.OpenPosition.Set(1)

	outcome, err := mon.Run(ctx, monitor.EntrySpec{
		Symbol:      sel.Symbol,
		Strike:      sel.Strike,
		Direction:   sel.Direction,
		LotSize:     lotSize,
		TargetPnL:   strat.TargetPnL,
		StoplossPnL: strat.StoplossPnL,
		Cutoff:      cutoff,
	})
	health.SetPosition(false, "")
	prom.OpenPosition.Set(0)
	if err != nil {
		if errors.Is(err, monitor.ErrEntryFailed) {
			slogger.Error("entry failed, no position opened", "symbol", sel.Symbol, "err", err)
			if dbErr := store.RecordAbort(cfg.StrategyName, sel.Symbol, "ENTRY_FAILED", err.Error()); dbErr != nil {
				slogger.Error("abort record failed", "err", dbErr)
			}
			notify.Send(context.Background(), notification.RunAborted("entry", err))
			os.Exit(1)
		}
		slogger.Error("monitor stopped before exit", "err", err)
		return
	}

	// ---- Record the outcome ----
	prom.TradesTotal.WithLabelValues(string(outcome.ExitReason)).Inc()
	prom.RealizedPnL.Set(float64(outcome.RealizedPnL))

	start := time.Now()
	if err := store.RecordOutcome(cfg.StrategyName, outcome); err != nil {
		slogger.Error("trade log write failed", "err", err)
		notify.Send(context.Background(), notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "Trade log write failed",
			Message: err.Error(),
		})
	}
	prom.SQLiteCommitDur.Observe(time.Since(start).Seconds())

	if publisher != nil {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := publisher.PublishOutcome(pubCtx, cfg.StrategyName, outcome); err != nil {
			slogger.Warn("outcome publish failed", "err", err)
		}
		pubCancel()
	}
	notify.Send(context.Background(), notification.TradeClosed(outcome))

	slogger.Info("run complete",
		"symbol", outcome.Position.Symbol,
		"direction", outcome.Position.Direction,
		"entry", model.FormatPaise(outcome.Position.EntryPrice),
		"exit", model.FormatPaise(outcome.ExitPrice),
		"pnl", model.FormatPaise(outcome.RealizedPnL),
		"reason", outcome.ExitReason)
}
