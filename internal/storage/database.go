// Package storage persists daily sentiment and run summaries in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradesim-go/internal/sentiment"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_sentiment (
    symbol     TEXT NOT NULL,
    date       TEXT NOT NULL,
    score      REAL NOT NULL,
    headlines  INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    symbol       TEXT NOT NULL,
    strategy     TEXT NOT NULL,
    started_at   DATETIME NOT NULL,
    bars         INTEGER NOT NULL,
    initial_cash REAL NOT NULL,
    final_value  REAL NOT NULL,
    buy_and_hold REAL NOT NULL,
    fills        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_symbol_started ON runs(symbol, started_at);
`

// Database wraps a SQLite handle.
type Database struct {
	db *sql.DB
}

// Run is one stored simulation summary.
type Run struct {
	ID          string
	Symbol      string
	Strategy    string
	StartedAt   time.Time
	Bars        int
	InitialCash float64
	FinalValue  float64
	BuyAndHold  float64
	Fills       int
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Database{db: db}, nil
}

// Close releases the handle.
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveDailySentiment upserts one row per day for symbol.
func (d *Database) SaveDailySentiment(ctx context.Context, symbol string, daily []sentiment.DailyScore) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_sentiment (symbol, date, score, headlines)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(symbol, date) DO UPDATE SET
            score = excluded.score,
            headlines = excluded.headlines,
            updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, day := range daily {
		if _, err := stmt.ExecContext(ctx, symbol, day.Date, day.Score, day.Count); err != nil {
			tx.Rollback()
			return fmt.Errorf("save sentiment %s %s: %w", symbol, day.Date, err)
		}
	}
	return tx.Commit()
}

// DailySentiment returns the stored days for symbol in [from, to], oldest first.
func (d *Database) DailySentiment(ctx context.Context, symbol string, from, to time.Time) ([]sentiment.DailyScore, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT date, score, headlines
        FROM daily_sentiment
        WHERE symbol = ? AND date BETWEEN ? AND ?
        ORDER BY date ASC`,
		symbol, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query sentiment: %w", err)
	}
	defer rows.Close()

	var out []sentiment.DailyScore
	for rows.Next() {
		var day sentiment.DailyScore
		if err := rows.Scan(&day.Date, &day.Score, &day.Count); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

// SaveRun stores one run summary.
func (d *Database) SaveRun(ctx context.Context, run Run) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO runs
        (id, symbol, strategy, started_at, bars, initial_cash, final_value, buy_and_hold, fills)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Strategy, run.StartedAt.UTC(), run.Bars,
		run.InitialCash, run.FinalValue, run.BuyAndHold, run.Fills)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns the most recent runs for symbol, newest first. An empty
// symbol lists all symbols; limit <= 0 means 50.
func (d *Database) Runs(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, `SELECT id, symbol, strategy, started_at, bars,
            initial_cash, final_value, buy_and_hold, fills
        FROM runs
        WHERE (? = '' OR symbol = ?)
        ORDER BY started_at DESC
        LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Strategy, &r.StartedAt, &r.Bars,
			&r.InitialCash, &r.FinalValue, &r.BuyAndHold, &r.Fills); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
