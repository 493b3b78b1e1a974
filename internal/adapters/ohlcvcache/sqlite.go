// Package ohlcvcache implements ports.OHLCVCache over SQLite (pure Go,
// no CGo), keyed by (symbol, timeframe, timestamp). Writes are
// append-then-commit within a single transaction so a crash mid-write
// never leaves partial rows visible for a (symbol, timeframe, range).
package ohlcvcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT    NOT NULL,
	timeframe TEXT    NOT NULL,
	ts        INTEGER NOT NULL,
	open      REAL    NOT NULL,
	high      REAL    NOT NULL,
	low       REAL    NOT NULL,
	close     REAL    NOT NULL,
	volume    REAL    NOT NULL,
	PRIMARY KEY (symbol, timeframe, ts)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol_tf_ts ON bars(symbol, timeframe, ts);
`

// SQLiteCache implements ports.OHLCVCache.
type SQLiteCache struct {
	db *sql.DB
}

// Open creates or opens the cache database at path and applies the schema.
func Open(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ohlcvcache.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ohlcvcache.Open: apply schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
		ORDER BY ts ASC
	`, symbol, string(tf), from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ohlcvcache.GetRange: query: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ts int64
		bar := domain.Bar{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&ts, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("ohlcvcache.GetRange: scan: %w", err)
		}
		bar.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// MissingTimestamps computes the set of timeframe-aligned timestamps in
// [from, to] not already present in the cache.
func (c *SQLiteCache) MissingTimestamps(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]time.Time, error) {
	have, err := c.GetRange(ctx, symbol, tf, from, to)
	if err != nil {
		return nil, err
	}
	present := make(map[int64]bool, len(have))
	for _, b := range have {
		present[b.Timestamp.UnixMilli()] = true
	}

	step := tf.Duration()
	if step <= 0 {
		return nil, fmt.Errorf("ohlcvcache.MissingTimestamps: unknown timeframe %q", tf)
	}

	var missing []time.Time
	for t := from; !t.After(to); t = t.Add(step) {
		if !present[t.UnixMilli()] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

// PutBars upserts bars within a single transaction: append-then-commit.
func (c *SQLiteCache) PutBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ohlcvcache.PutBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, ts) DO UPDATE SET
			open   = excluded.open,
			high   = excluded.high,
			low    = excluded.low,
			close  = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("ohlcvcache.PutBars: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, string(b.Timeframe), b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("ohlcvcache.PutBars: upsert %s@%s: %w", b.Symbol, b.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ohlcvcache.PutBars: commit: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
