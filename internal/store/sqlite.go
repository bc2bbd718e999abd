package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"harpoon/internal/scan"
)

// SQLite is the Store implementation backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath with WAL mode enabled and
// runs migrations.
func Open(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) LogBalance(ctx context.Context, balanceCents int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_history (balance_cents) VALUES (?)`, balanceCents)
	if err != nil {
		return fmt.Errorf("logging balance: %w", err)
	}
	return nil
}

func (s *SQLite) BalanceHistory(ctx context.Context, limit int) ([]BalancePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT balance_cents, recorded_at
		FROM balance_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying balance history: %w", err)
	}
	defer rows.Close()

	var points []BalancePoint
	for rows.Next() {
		var p BalancePoint
		var recorded string
		if err := rows.Scan(&p.BalanceCents, &recorded); err != nil {
			return nil, fmt.Errorf("scanning balance row: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", recorded); err == nil {
			p.RecordedAt = t
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLite) OpenPositionKeys(ctx context.Context) (map[PositionKey]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, side
		FROM positions
		WHERE is_closed = 0 AND quantity > 0`)
	if err != nil {
		return nil, fmt.Errorf("querying open positions: %w", err)
	}
	defer rows.Close()

	keys := make(map[PositionKey]bool)
	for rows.Next() {
		var k PositionKey
		if err := rows.Scan(&k.Ticker, &k.Side); err != nil {
			return nil, fmt.Errorf("scanning position row: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (s *SQLite) CountOpenPositions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE is_closed = 0 AND quantity > 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open positions: %w", err)
	}
	return n, nil
}

func (s *SQLite) RealizedLossToday(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(realized_pnl_cents), 0)
		FROM positions
		WHERE is_closed = 1 AND realized_pnl_cents < 0
		  AND date(closed_at) = date('now')`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("querying realized loss: %w", err)
	}
	if total < 0 {
		total = -total
	}
	return total, nil
}

func (s *SQLite) RecordOrderAttempt(ctx context.Context, a OrderAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(ticker, side, action, quantity, price_cents, status, order_id,
			 fill_count, remaining_count, fee_cents, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Ticker, a.Side, a.Action, a.Count, a.PriceCents, a.Status,
		a.OrderID, a.FillCount, a.RemainingCount, a.FeeCents, a.Error)
	if err != nil {
		return fmt.Errorf("recording order attempt: %w", err)
	}
	return nil
}

func (s *SQLite) RecordFill(ctx context.Context, ticker, side string, qty, priceCents int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fill tx: %w", err)
	}
	defer tx.Rollback()

	var id, haveQty, avg int
	err = tx.QueryRowContext(ctx, `
		SELECT id, quantity, avg_entry_cents
		FROM positions
		WHERE ticker = ? AND side = ? AND is_closed = 0`, ticker, side).
		Scan(&id, &haveQty, &avg)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (ticker, side, quantity, avg_entry_cents)
			VALUES (?, ?, ?, ?)`, ticker, side, qty, priceCents)
		if err != nil {
			return fmt.Errorf("inserting position: %w", err)
		}
	case err != nil:
		return fmt.Errorf("querying position: %w", err)
	default:
		newQty := haveQty + qty
		newAvg := (haveQty*avg + qty*priceCents) / newQty
		_, err = tx.ExecContext(ctx, `
			UPDATE positions SET quantity = ?, avg_entry_cents = ?
			WHERE id = ?`, newQty, newAvg, id)
		if err != nil {
			return fmt.Errorf("updating position: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) SaveScanResults(ctx context.Context, results []scan.Candidate, stats scan.Stats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning scan tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_results`); err != nil {
		return fmt.Errorf("clearing scan results: %w", err)
	}

	for _, c := range results {
		var hoursLeft any
		if c.HoursLeft != nil {
			hoursLeft = *c.HoursLeft
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_results
				(ticker, event_ticker, side, signal_price, signal_ask, tier,
				 volume_24h, dollar_24h, dollar_rank, spread_pct, hours_left,
				 qualified, fail_reasons)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Ticker, c.EventTicker, string(c.Side), c.SignalPrice, c.SignalAsk,
			c.Tier, c.Volume24h, c.DollarVolume24h, c.DollarRank, c.SpreadPct,
			hoursLeft, boolToInt(c.Qualified), strings.Join(c.FailReasons, ","))
		if err != nil {
			return fmt.Errorf("inserting scan result: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_meta`); err != nil {
		return fmt.Errorf("clearing scan meta: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_meta
			(id, total_fetched, scanned, passed_prefix, passed_volume,
			 passed_price, passed_tier, passed_rank, passed_dollar,
			 passed_spread, passed_expiry, qualified, from_cache)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.TotalFetched, stats.Scanned, stats.PassedPrefix,
		stats.PassedVolume, stats.PassedPrice, stats.PassedTier,
		stats.PassedRank, stats.PassedDollar, stats.PassedSpread,
		stats.PassedExpiry, stats.Qualified, boolToInt(stats.FromCache))
	if err != nil {
		return fmt.Errorf("inserting scan meta: %w", err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
