package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bn-breakoutv1/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleConfig() model.StrategyConfig {
	return model.StrategyConfig{
		Name:           "High Frequency Breakout",
		ReferencePrice: 5572000,
		LotSize:        35,
		TargetPnL:      50000,
		StoplossPnL:    50000,
		WindowStart:    model.TimeOfDay{Hour: 9, Minute: 15},
		WindowEnd:      model.TimeOfDay{Hour: 9, Minute: 45},
	}
}

func TestStore_NoActiveConfig(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ActiveConfig(); !errors.Is(err, ErrNoActiveConfig) {
		t.Fatalf("expected ErrNoActiveConfig, got %v", err)
	}
}

func TestStore_SaveAndLoadConfig(t *testing.T) {
	s := openTestStore(t)

	saved, err := s.SaveConfig(sampleConfig())
	if err != nil {
		t.Fatalf("save config: %v", err)
	}
	if saved.ID == 0 {
		t.Error("saved config has no ID")
	}

	got, err := s.ActiveConfig()
	if err != nil {
		t.Fatalf("active config: %v", err)
	}
	if got.ReferencePrice != 5572000 {
		t.Errorf("reference price = %d, want 5572000", got.ReferencePrice)
	}
	if got.WindowEnd != (model.TimeOfDay{Hour: 9, Minute: 45}) {
		t.Errorf("window end = %s, want 09:45", got.WindowEnd)
	}
}

func TestStore_SaveConfigDeactivatesPrevious(t *testing.T) {
	s := openTestStore(t)

	first, err := s.SaveConfig(sampleConfig())
	if err != nil {
		t.Fatalf("save first: %v", err)
	}

	cfg := sampleConfig()
	cfg.ReferencePrice = 5600000
	second, err := s.SaveConfig(cfg)
	if err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := s.ActiveConfig()
	if err != nil {
		t.Fatalf("active config: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("active config ID = %d, want %d (latest)", got.ID, second.ID)
	}
	if got.ID == first.ID {
		t.Error("previous config still active")
	}
}

func TestStore_RecordOutcomeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	out := model.TradeOutcome{
		Position: model.Position{
			Symbol:      "BANKNIFTY28AUG2557300CE",
			Strike:      5730000,
			Direction:   model.DirectionLong,
			LotSize:     35,
			EntryPrice:  12000,
			TargetPnL:   50000,
			StoplossPnL: 50000,
		},
		ExitPrice:   13500,
		ExitReason:  model.ExitTargetHit,
		RealizedPnL: 52500,
		ClosedAt:    time.Date(2026, time.August, 28, 9, 32, 0, 0, time.UTC),
		Note:        "profit target reached",
	}
	if err := s.RecordOutcome("High Frequency Breakout", out); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	trades, err := s.RecentTrades(10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Symbol != "BANKNIFTY28AUG2557300CE" || tr.ExitReason != "TARGET_HIT" {
		t.Errorf("unexpected row: %+v", tr)
	}
	if tr.RealizedPnL != 52500 || tr.EntryPrice != 12000 || tr.ExitPrice != 13500 {
		t.Errorf("price fields wrong: %+v", tr)
	}
}

func TestStore_RecordAbort(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordAbort("High Frequency Breakout", "BANKNIFTY28AUG2557300CE",
		"ENTRY_FAILED", "no quote within 5 attempts")
	if err != nil {
		t.Fatalf("record abort: %v", err)
	}
	// Aborts must not appear in the priced trade log.
	trades, err := s.RecentTrades(10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("trades = %d, want 0 (diagnostics are separate)", len(trades))
	}
}
