// Package sniper implements the last-minute sniper strategy: one gated,
// cancellable pass over the ranked qualified markets, submitting at most
// one order and stopping at the first fill.
package sniper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"harpoon/internal/advisor"
	"harpoon/internal/config"
	"harpoon/internal/exchange"
	"harpoon/internal/market"
	"harpoon/internal/metrics"
	"harpoon/internal/risk"
	"harpoon/internal/scan"
	"harpoon/internal/spot"
	"harpoon/internal/store"
)

// StopRequested is the terminal reason recorded when the caller's
// cancellation was observed between gates.
const StopRequested = "stopped"

// Summary is what one invocation reports back to the caller.
type Summary struct {
	Scanned        int    // scan results produced (qualified or not)
	Skipped        int    // qualified candidates dropped as already held
	Orders         int    // actual order submissions
	Filled         int    // 1 when an order filled, else 0
	StoppedReason  string // "" on fill or exhaustion
	SelectedTicker string // last candidate that reached the gate chain
}

// Sniper drives one invocation of the execution loop. Construct once and
// call Run per poll; each Run re-scans and re-checks risk from scratch.
type Sniper struct {
	cfg     config.SniperConfig
	scanCfg config.ScanConfig
	riskCfg config.RiskConfig

	client exchange.Client
	cache  *market.Cache
	store  store.Store
	gate   *risk.Gate
	spot   spot.Source     // nil disables the directional gate
	adv    advisor.Advisor // nil disables the confidence gate
}

func New(
	cfg *config.Config,
	client exchange.Client,
	cache *market.Cache,
	st store.Store,
	gate *risk.Gate,
	spotSrc spot.Source,
	adv advisor.Advisor,
) *Sniper {
	return &Sniper{
		cfg:     cfg.Sniper,
		scanCfg: cfg.Scan,
		riskCfg: cfg.Risk,
		client:  client,
		cache:   cache,
		store:   st,
		gate:    gate,
		spot:    spotSrc,
		adv:     adv,
	}
}

// Run executes one pass: risk admission, scan, filter, rank, then the
// per-candidate gate chain until a fill, exhaustion, or cancellation.
func (s *Sniper) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	// RISK_CHECK
	check, err := s.gate.Admit(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues("error").Inc()
		return summary, err
	}
	metrics.BalanceCents.Set(float64(check.BalanceCents))
	if check.StoppedReason != "" {
		summary.StoppedReason = check.StoppedReason
		metrics.Runs.WithLabelValues(check.StoppedReason).Inc()
		return summary, nil
	}

	// SCAN
	candidates, stats, err := s.scanMarkets(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues("error").Inc()
		return summary, err
	}
	summary.Scanned = len(candidates)
	slog.Info("scan complete",
		"fetched", stats.TotalFetched,
		"results", len(candidates),
		"qualified", stats.Qualified,
		"cached", stats.FromCache,
	)

	qualified := make([]scan.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Qualified {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) == 0 {
		slog.Warn("no qualified markets found")
		metrics.Runs.WithLabelValues("exhausted").Inc()
		return summary, nil
	}

	// FILTER
	available, held, err := s.filterCandidates(ctx, qualified)
	if err != nil {
		metrics.Runs.WithLabelValues("error").Inc()
		return summary, err
	}
	summary.Skipped = held
	if len(available) == 0 {
		slog.Warn("no tradeable markets after filters", "held", held)
		metrics.Runs.WithLabelValues("exhausted").Inc()
		return summary, nil
	}

	// RANK
	rankCandidates(available)
	slog.Info("targets ranked", "count", len(available))

	// CANDIDATE_LOOP
	for i, candidate := range available {
		if ctx.Err() != nil {
			summary.StoppedReason = StopRequested
			break
		}
		outcome := s.evaluateCandidate(ctx, candidate, i+1, len(available), check.BalanceCents, &summary)
		if outcome == outcomeFilled {
			break
		}
	}

	switch {
	case summary.Filled > 0:
		metrics.Runs.WithLabelValues("filled").Inc()
	case summary.StoppedReason == StopRequested:
		metrics.Runs.WithLabelValues("stopped").Inc()
	default:
		metrics.Runs.WithLabelValues("exhausted").Inc()
	}

	slog.Info("sniper pass complete",
		"candidates", len(available),
		"orders", summary.Orders,
		"filled", summary.Filled,
		"stopped_reason", summary.StoppedReason,
	)
	return summary, nil
}

// scanMarkets fetches quotes through the cache and runs qualification.
// The snapshot write is best-effort; a failed write never blocks trading.
func (s *Sniper) scanMarkets(ctx context.Context) ([]scan.Candidate, scan.Stats, error) {
	quotes, fromCache, err := s.cache.Fetch(ctx, s.scanCfg.TimeWindowHours)
	if err != nil {
		return nil, scan.Stats{}, fmt.Errorf("scanning markets: %w", err)
	}
	if fromCache {
		metrics.Scans.WithLabelValues("cache").Inc()
	} else {
		metrics.Scans.WithLabelValues("network").Inc()
	}

	candidates, stats := scan.Qualify(quotes, scan.Filters{
		Prefixes:        s.scanCfg.Prefixes,
		TopN:            s.scanCfg.TopN,
		MinVolume24h:    s.scanCfg.MinVolume24h,
		MinPrice:        s.scanCfg.MinPrice,
		MaxPrice:        s.scanCfg.MaxPrice,
		MaxDollarRank:   s.scanCfg.MaxDollarRank,
		MinDollarVolume: s.scanCfg.MinDollarVolume,
		MaxSpreadPct:    s.scanCfg.MaxSpreadPct,
		MaxHours:        s.scanCfg.MaxHours,
	})
	stats.FromCache = fromCache
	metrics.QualifiedCandidates.Set(float64(stats.Qualified))

	if err := s.store.SaveScanResults(ctx, candidates, stats); err != nil {
		slog.Error("failed to save scan results", "error", err)
	}
	return candidates, stats, nil
}

// filterCandidates drops already-held tickers, unprofitable asks, and
// candidates outside the adaptive expiry window.
func (s *Sniper) filterCandidates(ctx context.Context, qualified []scan.Candidate) ([]scan.Candidate, int, error) {
	heldKeys, err := s.store.OpenPositionKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("loading open positions: %w", err)
	}

	held := 0
	var available []scan.Candidate
	for _, c := range qualified {
		if heldKeys[store.PositionKey{Ticker: c.Ticker, Side: string(c.Side)}] {
			held++
			continue
		}
		if c.SignalAsk > 98 {
			continue
		}
		if !s.withinExpiryWindow(c) {
			continue
		}
		available = append(available, c)
	}
	if held > 0 {
		slog.Info("skipping already-held positions", "count", held)
	}
	return available, held, nil
}

// withinExpiryWindow applies the adaptive window: tight spreads carry less
// execution risk, so they are tradeable further from resolution.
func (s *Sniper) withinExpiryWindow(c scan.Candidate) bool {
	window := s.cfg.ExpiryWindow
	if c.SpreadPct > 0 && c.SpreadPct <= s.cfg.TightSpreadPct {
		window = s.cfg.TightSpreadHours
	}
	return c.HoursLeft != nil && *c.HoursLeft > 0 && *c.HoursLeft <= window
}

// rankCandidates orders by safest tier first, then soonest expiry, then
// highest price, then highest dollar volume. Stable.
func rankCandidates(candidates []scan.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		ah, bh := math.Inf(1), math.Inf(1)
		if a.HoursLeft != nil {
			ah = *a.HoursLeft
		}
		if b.HoursLeft != nil {
			bh = *b.HoursLeft
		}
		if ah != bh {
			return ah < bh
		}
		if a.SignalPrice != b.SignalPrice {
			return a.SignalPrice > b.SignalPrice
		}
		return a.DollarVolume24h > b.DollarVolume24h
	})
}
