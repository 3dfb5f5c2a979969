// Package recorder persists strategy configuration and trade outcomes. The
// SQLite store is the durable audit log (append-only from the run's point of
// view); the Redis publisher mirrors outcomes and live quotes for anything
// watching the day's run.
package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bn-breakoutv1/internal/model"
)

// ErrNoActiveConfig means no active strategy configuration row exists.
var ErrNoActiveConfig = errors.New("recorder: no active strategy config")

// Store is the SQLite-backed trade log and config store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: schema: %w", err)
	}
	log.Printf("[recorder] opened store at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS configs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		name             TEXT    NOT NULL,
		reference_price  INTEGER NOT NULL,
		lot_size         INTEGER NOT NULL,
		target_pnl       INTEGER NOT NULL,
		stoploss_pnl     INTEGER NOT NULL,
		window_start     TEXT    NOT NULL,
		window_end       TEXT    NOT NULL,
		active           INTEGER NOT NULL DEFAULT 1,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS trades (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy      TEXT    NOT NULL,
		symbol        TEXT    NOT NULL,
		strike        INTEGER NOT NULL,
		direction     TEXT    NOT NULL,
		entry_price   INTEGER NOT NULL,
		exit_price    INTEGER NOT NULL,
		realized_pnl  INTEGER NOT NULL,
		exit_reason   TEXT    NOT NULL,
		note          TEXT,
		closed_at     DATETIME NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
	CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);

	CREATE TABLE IF NOT EXISTS diagnostics (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy    TEXT NOT NULL,
		symbol      TEXT,
		reason      TEXT NOT NULL,
		note        TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`)
	return err
}

// SaveConfig deactivates any active config rows and inserts cfg as the new
// active row, in one transaction. Returns the stored config with its ID.
func (s *Store) SaveConfig(cfg model.StrategyConfig) (model.StrategyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return cfg, err
	}
	if _, err := tx.Exec(`UPDATE configs SET active = 0 WHERE active = 1`); err != nil {
		tx.Rollback()
		return cfg, err
	}
	res, err := tx.Exec(
		`INSERT INTO configs (name, reference_price, lot_size, target_pnl, stoploss_pnl, window_start, window_end, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		cfg.Name, cfg.ReferencePrice, cfg.LotSize, cfg.TargetPnL, cfg.StoplossPnL,
		cfg.WindowStart.String(), cfg.WindowEnd.String(),
	)
	if err != nil {
		tx.Rollback()
		return cfg, err
	}
	if err := tx.Commit(); err != nil {
		return cfg, err
	}
	cfg.ID, _ = res.LastInsertId()
	cfg.Active = true
	log.Printf("[recorder] saved active config %q ref=%s lot=%d", cfg.Name,
		model.FormatPaise(cfg.ReferencePrice), cfg.LotSize)
	return cfg, nil
}

// ActiveConfig returns the single active strategy config.
func (s *Store) ActiveConfig() (model.StrategyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, name, reference_price, lot_size, target_pnl, stoploss_pnl, window_start, window_end, created_at
		 FROM configs WHERE active = 1 ORDER BY id DESC LIMIT 1`)

	var cfg model.StrategyConfig
	var start, end string
	var created time.Time
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.ReferencePrice, &cfg.LotSize,
		&cfg.TargetPnL, &cfg.StoplossPnL, &start, &end, &created)
	if err == sql.ErrNoRows {
		return cfg, ErrNoActiveConfig
	}
	if err != nil {
		return cfg, fmt.Errorf("recorder: active config: %w", err)
	}
	if cfg.WindowStart, err = model.ParseTimeOfDay(start); err != nil {
		return cfg, fmt.Errorf("recorder: active config: %w", err)
	}
	if cfg.WindowEnd, err = model.ParseTimeOfDay(end); err != nil {
		return cfg, fmt.Errorf("recorder: active config: %w", err)
	}
	cfg.Active = true
	cfg.CreatedAt = created
	return cfg, nil
}

// RecordOutcome appends the run's TradeOutcome to the trade log.
func (s *Store) RecordOutcome(strategy string, out model.TradeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO trades (strategy, symbol, strike, direction, entry_price, exit_price, realized_pnl, exit_reason, note, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strategy,
		out.Position.Symbol,
		out.Position.Strike,
		string(out.Position.Direction),
		out.Position.EntryPrice,
		out.ExitPrice,
		out.RealizedPnL,
		string(out.ExitReason),
		out.Note,
		out.ClosedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recorder: record outcome: %w", err)
	}
	return nil
}

// RecordAbort writes a diagnostic row for a run that terminated before a
// priced outcome existed (entry failure, structural errors). Kept separate
// from trades so the audit log never carries fabricated prices.
func (s *Store) RecordAbort(strategy, symbol, reason, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO diagnostics (strategy, symbol, reason, note) VALUES (?, ?, ?, ?)`,
		strategy, symbol, reason, note,
	)
	if err != nil {
		return fmt.Errorf("recorder: record abort: %w", err)
	}
	return nil
}

// TradeRow is one persisted trade (newest-first listings).
type TradeRow struct {
	ID          int64  `json:"id"`
	Strategy    string `json:"strategy"`
	Symbol      string `json:"symbol"`
	Strike      int64  `json:"strike"`
	Direction   string `json:"direction"`
	EntryPrice  int64  `json:"entry_price"`
	ExitPrice   int64  `json:"exit_price"`
	RealizedPnL int64  `json:"realized_pnl"`
	ExitReason  string `json:"exit_reason"`
	Note        string `json:"note"`
	ClosedAt    string `json:"closed_at"`
}

// RecentTrades returns the last N trades, newest first.
func (s *Store) RecentTrades(limit int) ([]TradeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, strategy, symbol, strike, direction, entry_price, exit_price, realized_pnl, exit_reason, note, closed_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var t TradeRow
		var note sql.NullString
		if err := rows.Scan(&t.ID, &t.Strategy, &t.Symbol, &t.Strike, &t.Direction,
			&t.EntryPrice, &t.ExitPrice, &t.RealizedPnL, &t.ExitReason, &note, &t.ClosedAt); err != nil {
			return nil, err
		}
		t.Note = note.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DB exposes the underlying handle for health probes.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
