package bars

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/core"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol   TEXT    NOT NULL,
	interval TEXT    NOT NULL,
	ts       INTEGER NOT NULL,
	open     REAL    NOT NULL,
	high     REAL    NOT NULL,
	low      REAL    NOT NULL,
	close    REAL    NOT NULL,
	volume   REAL    NOT NULL,
	PRIMARY KEY (symbol, interval, ts)
)`

const upsert = `
INSERT INTO bars (symbol, interval, ts, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (symbol, interval, ts) DO UPDATE SET
	open = excluded.open, high = excluded.high, low = excluded.low,
	close = excluded.close, volume = excluded.volume`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// creates the bars table when missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	// SQLite serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Write(ctx context.Context, symbol, interval string, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, interval, b.Time.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("writing bar %s: %w", b.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Read(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if !start.IsZero() {
		from = start.UnixMilli()
	}
	if !end.IsZero() {
		to = end.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars
		 WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts`,
		symbol, interval, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var ts int64
		var b core.Bar
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Time = time.UnixMilli(ts).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// Series describes one stored symbol and interval.
type Series struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Bars     int       `json:"bars"`
	First    time.Time `json:"first"`
	Last     time.Time `json:"last"`
}

// List returns every stored symbol and interval with its bar count and range.
func (s *SQLiteStore) List(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, interval, COUNT(*), MIN(ts), MAX(ts) FROM bars
		 GROUP BY symbol, interval ORDER BY symbol, interval`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Series
	for rows.Next() {
		var sr Series
		var first, last int64
		if err := rows.Scan(&sr.Symbol, &sr.Interval, &sr.Bars, &first, &last); err != nil {
			return nil, err
		}
		sr.First = time.UnixMilli(first).UTC()
		sr.Last = time.UnixMilli(last).UTC()
		out = append(out, sr)
	}
	return out, rows.Err()
}
