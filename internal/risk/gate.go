// Package risk holds the pre-trade admission checks and position sizing.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"harpoon/internal/config"
	"harpoon/internal/exchange"
	"harpoon/internal/store"
)

// Stop reasons returned when an admission check fails.
const (
	StopDailyLoss    = "daily_loss"
	StopMaxPositions = "max_positions"
)

// Gate runs the three admission checks before any scanning happens. Each
// check is terminal: a failure aborts the whole invocation with a specific
// reason and no partial side effects.
type Gate struct {
	cfg    config.RiskConfig
	client exchange.Client
	store  store.Store
}

func NewGate(cfg config.RiskConfig, client exchange.Client, st store.Store) *Gate {
	return &Gate{cfg: cfg, client: client, store: st}
}

// Check is the outcome of an admission pass. StoppedReason is empty when
// trading may proceed.
type Check struct {
	BalanceCents      int
	DailyLossCents    int
	MaxDailyLossCents int
	OpenPositions     int
	StoppedReason     string
}

// Admit reads balance, daily realized loss, and open position count. The
// balance read always passes; it feeds downstream sizing.
func (g *Gate) Admit(ctx context.Context) (Check, error) {
	balance, err := g.client.GetBalance(ctx)
	if err != nil {
		return Check{}, fmt.Errorf("fetching balance: %w", err)
	}
	if err := g.store.LogBalance(ctx, balance); err != nil {
		return Check{}, fmt.Errorf("logging balance: %w", err)
	}

	check := Check{BalanceCents: balance}
	check.MaxDailyLossCents = int(float64(balance) * g.cfg.DailyLossPct)

	loss, err := g.store.RealizedLossToday(ctx)
	if err != nil {
		return Check{}, fmt.Errorf("fetching daily loss: %w", err)
	}
	check.DailyLossCents = loss

	if loss >= check.MaxDailyLossCents {
		slog.Warn("trading halted: daily loss limit reached",
			"loss_cents", loss,
			"limit_cents", check.MaxDailyLossCents,
		)
		check.StoppedReason = StopDailyLoss
		return check, nil
	}

	open, err := g.store.CountOpenPositions(ctx)
	if err != nil {
		return Check{}, fmt.Errorf("counting open positions: %w", err)
	}
	check.OpenPositions = open

	if open >= g.cfg.MaxPositions {
		slog.Warn("trading halted: max positions reached",
			"open", open,
			"limit", g.cfg.MaxPositions,
		)
		check.StoppedReason = StopMaxPositions
		return check, nil
	}

	slog.Info("risk checks passed",
		"balance_cents", balance,
		"daily_loss_cents", loss,
		"open_positions", open,
	)
	return check, nil
}

// Contracts returns how many contracts a balance supports at the given
// price, risking riskPct of the balance. Never negative.
func Contracts(balanceCents, priceCents int, riskPct float64) int {
	if balanceCents <= 0 || priceCents <= 0 {
		return 0
	}
	maxRisk := float64(balanceCents) * riskPct
	n := int(math.Floor(maxRisk / float64(priceCents)))
	if n < 0 {
		return 0
	}
	return n
}
