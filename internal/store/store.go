// Package store persists trades, positions, balance history and scan
// snapshots. The trading core only ever reads position summaries and writes
// attempts and fills; settlement and P&L accounting happen elsewhere.
package store

import (
	"context"
	"time"

	"harpoon/internal/scan"
)

// PositionKey identifies a position by market ticker and contract side.
type PositionKey struct {
	Ticker string
	Side   string
}

// BalancePoint is one balance snapshot.
type BalancePoint struct {
	BalanceCents int
	RecordedAt   time.Time
}

// OrderAttempt records one order submission, filled or not.
type OrderAttempt struct {
	Ticker         string
	Side           string
	Action         string
	Count          int
	PriceCents     int
	Status         string
	OrderID        string
	FillCount      int
	RemainingCount int
	FeeCents       int
	Error          string
}

// Store is the persistence surface the trading core depends on.
type Store interface {
	LogBalance(ctx context.Context, balanceCents int) error
	BalanceHistory(ctx context.Context, limit int) ([]BalancePoint, error)

	// OpenPositionKeys returns the ticker+side keys of all open positions.
	OpenPositionKeys(ctx context.Context) (map[PositionKey]bool, error)
	CountOpenPositions(ctx context.Context) (int, error)

	// RealizedLossToday returns today's realized trading loss in cents,
	// always >= 0. Only losses from positions closed today count; deposits
	// and withdrawals never influence it.
	RealizedLossToday(ctx context.Context) (int, error)

	RecordOrderAttempt(ctx context.Context, attempt OrderAttempt) error
	// RecordFill applies a buy fill to the ticker+side position, updating
	// quantity and average entry price.
	RecordFill(ctx context.Context, ticker, side string, qty, priceCents int) error

	// SaveScanResults replaces the stored scan snapshot wholesale.
	SaveScanResults(ctx context.Context, results []scan.Candidate, stats scan.Stats) error
}
