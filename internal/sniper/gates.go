package sniper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"harpoon/internal/exchange"
	"harpoon/internal/metrics"
	"harpoon/internal/risk"
	"harpoon/internal/scan"
	"harpoon/internal/store"
	"harpoon/internal/tickers"
)

type candidateOutcome int

const (
	outcomeSkip candidateOutcome = iota // gate rejection or unfilled order; try the next candidate
	outcomeFilled
)

// evaluateCandidate runs the sequential gate chain for one candidate. Any
// gate failure skips to the next candidate; it never aborts the run.
func (s *Sniper) evaluateCandidate(ctx context.Context, c scan.Candidate, rank, total, balanceCents int, summary *Summary) candidateOutcome {
	log := slog.With("ticker", c.Ticker, "side", c.Side, "rank", rank, "of", total)

	// Sizing gate.
	estPrice := c.SignalAsk
	if estPrice <= 0 {
		estPrice = c.SignalPrice
	}
	contracts := risk.Contracts(balanceCents, estPrice, s.riskCfg.RiskPct)
	if contracts <= 0 {
		log.Info("candidate skipped: insufficient balance", "est_price", estPrice)
		metrics.GateRejects.WithLabelValues("sizing").Inc()
		return outcomeSkip
	}

	summary.SelectedTicker = c.Ticker

	// Live re-check gate: tolerate staleness between the cached scan and
	// this moment by re-reading the single market.
	liveAsk, ok := s.liveRecheck(ctx, c, log)
	if !ok {
		metrics.GateRejects.WithLabelValues("live_recheck").Inc()
		return outcomeSkip
	}
	if liveAsk > 0 {
		estPrice = liveAsk
		contracts = risk.Contracts(balanceCents, estPrice, s.riskCfg.RiskPct)
		if contracts <= 0 {
			log.Info("candidate skipped: insufficient balance at live price", "live_ask", liveAsk)
			metrics.GateRejects.WithLabelValues("sizing").Inc()
			return outcomeSkip
		}
	}

	if !s.velocityGate(ctx, c, estPrice, log) {
		metrics.GateRejects.WithLabelValues("velocity").Inc()
		return outcomeSkip
	}

	if !s.directionalGate(ctx, c, log) {
		metrics.GateRejects.WithLabelValues("directional").Inc()
		return outcomeSkip
	}

	if !s.confidenceGate(ctx, c, log) {
		metrics.GateRejects.WithLabelValues("confidence").Inc()
		return outcomeSkip
	}

	return s.submit(ctx, c, contracts, estPrice, log, summary)
}

// liveRecheck re-fetches the market and verifies the ask is still inside
// the tradeable band. Returns the live ask on pass. Data errors reject the
// candidate: trading on a quote we could not confirm is not acceptable.
func (s *Sniper) liveRecheck(ctx context.Context, c scan.Candidate, log *slog.Logger) (int, bool) {
	q, err := s.client.GetMarket(ctx, c.Ticker)
	if err != nil {
		log.Warn("candidate skipped: live re-check failed", "error", err)
		return 0, false
	}

	liveAsk := q.Ask(c.Side)
	if liveAsk < s.scanCfg.MinPrice || liveAsk > 98 {
		log.Info("candidate skipped: live ask out of range",
			"live_ask", liveAsk,
			"min", s.scanCfg.MinPrice,
		)
		return 0, false
	}
	return liveAsk, true
}

// velocityGate rejects candidates whose price spiked within the lookback
// window, a sign of momentary manipulation. Fails open: a monitoring
// check's own failure must not block an otherwise valid trade.
func (s *Sniper) velocityGate(ctx context.Context, c scan.Candidate, liveAsk int, log *slog.Logger) bool {
	end := time.Now()
	start := end.Add(-s.cfg.VelocityWindow.Duration)

	candles, err := s.client.GetCandles(ctx, c.Ticker, start, end, 1)
	if err != nil {
		log.Warn("velocity check unavailable, passing", "error", err)
		return true
	}
	if len(candles) == 0 {
		return true
	}

	// Reference: prior candle's close, falling back to the current
	// candle's open.
	refYes := 0
	if len(candles) >= 2 {
		refYes = candles[len(candles)-2].Close
	}
	if refYes <= 0 {
		refYes = candles[len(candles)-1].Open
	}
	if refYes <= 0 {
		return true
	}

	// Candles track the yes side; mirror for a no-side candidate.
	ref := refYes
	if c.Side == exchange.SideNo {
		ref = 100 - refYes
	}
	if ref <= 0 {
		return true
	}

	risePct := float64(liveAsk-ref) / float64(ref) * 100
	if risePct > s.cfg.MaxRisePct {
		log.Info("candidate skipped: price spiked",
			"reference", ref,
			"live_ask", liveAsk,
			"rise_pct", risePct,
		)
		return false
	}
	return true
}

// directionalGate rejects bets contrarian to the observable spot price on
// recognized spot-indexed markets. Unrecognized tickers and data errors
// pass.
func (s *Sniper) directionalGate(ctx context.Context, c scan.Candidate, log *slog.Logger) bool {
	if s.spot == nil {
		return true
	}
	contract, ok := tickers.ParseSpotContract(c.Ticker)
	if !ok {
		return true
	}

	spotPrice, err := s.spot.Price(ctx, contract.Asset)
	if err != nil {
		log.Warn("spot check unavailable, passing", "asset", contract.Asset, "error", err)
		return true
	}

	// The outcome this bet needs: a yes bet needs the market's stated
	// direction, a no bet needs the opposite.
	wantsAbove := contract.Above
	if c.Side == exchange.SideNo {
		wantsAbove = !wantsAbove
	}

	buffer := s.cfg.SpotBufferPct / 100
	if wantsAbove && spotPrice < contract.Strike*(1-buffer) {
		log.Info("candidate skipped: spot below strike",
			"spot", spotPrice, "strike", contract.Strike)
		return false
	}
	if !wantsAbove && spotPrice > contract.Strike*(1+buffer) {
		log.Info("candidate skipped: spot above strike",
			"spot", spotPrice, "strike", contract.Strike)
		return false
	}
	return true
}

// confidenceGate consults the advisor when one is configured. Advisor
// errors pass; an explicit contrary view, low confidence, or a skip
// recommendation rejects.
func (s *Sniper) confidenceGate(ctx context.Context, c scan.Candidate, log *slog.Logger) bool {
	if !s.cfg.UseAdvisor || s.adv == nil {
		return true
	}

	eval, err := s.adv.Evaluate(ctx, c)
	if err != nil {
		log.Warn("advisor unavailable, passing", "error", err)
		return true
	}

	if eval.Side != "" && !strings.EqualFold(eval.Side, string(c.Side)) {
		log.Info("candidate skipped: advisor disagrees on side",
			"advisor_side", eval.Side)
		return false
	}
	if eval.ConfidencePct > 0 && eval.ConfidencePct < s.cfg.MinConfidence {
		log.Info("candidate skipped: advisor confidence too low",
			"confidence", eval.ConfidencePct,
			"min", s.cfg.MinConfidence,
		)
		return false
	}
	if !eval.ShouldTrade {
		log.Info("candidate skipped: advisor recommends skip",
			"reasoning", eval.Reasoning)
		return false
	}

	if eval.ConfidencePct > 0 {
		log.Info("advisor approved", "confidence", eval.ConfidencePct)
	}
	return true
}

// submit places the limit order, cancels it if it rests, and records the
// attempt. A fill is terminal for the run; anything else moves on to the
// next candidate.
func (s *Sniper) submit(ctx context.Context, c scan.Candidate, contracts, estPrice int, log *slog.Logger, summary *Summary) candidateOutcome {
	price := estPrice
	if price <= 0 {
		price = s.cfg.PriceCeiling
	}

	if s.cfg.DryRun {
		log.Info("dry run fill", "contracts", contracts, "price", price)
		summary.Orders++
		summary.Filled = 1
		return outcomeFilled
	}

	order, err := s.client.PlaceOrder(ctx, exchange.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Ticker:        c.Ticker,
		Side:          c.Side,
		Action:        "buy",
		Count:         contracts,
		PriceCents:    price,
	})
	summary.Orders++
	if err != nil {
		log.Error("order submission failed", "error", err)
		metrics.Orders.WithLabelValues("failed").Inc()
		s.recordAttempt(ctx, store.OrderAttempt{
			Ticker:     c.Ticker,
			Side:       string(c.Side),
			Action:     "buy",
			Count:      contracts,
			PriceCents: price,
			Status:     "failed",
			Error:      err.Error(),
		}, log)
		return outcomeSkip
	}

	// This strategy never holds resting exposure.
	status := order.Status
	if order.Resting() {
		if err := s.client.CancelOrder(ctx, order.OrderID); err != nil {
			log.Warn("failed to cancel resting order", "order_id", order.OrderID, "error", err)
		} else {
			status = "canceled"
		}
	}

	entryPrice := order.AvgFillPrice(price)
	s.recordAttempt(ctx, store.OrderAttempt{
		Ticker:         c.Ticker,
		Side:           string(c.Side),
		Action:         "buy",
		Count:          contracts,
		PriceCents:     entryPrice,
		Status:         status,
		OrderID:        order.OrderID,
		FillCount:      order.FillCount,
		RemainingCount: order.RemainingCount,
		FeeCents:       order.FeeCents,
	}, log)

	if order.FillCount > 0 {
		if err := s.store.RecordFill(ctx, c.Ticker, string(c.Side), order.FillCount, entryPrice); err != nil {
			log.Error("failed to record fill", "error", err)
		}
		metrics.Orders.WithLabelValues("filled").Inc()
		summary.Filled = 1
		log.Info("order filled", "contracts", order.FillCount, "price", entryPrice)
		return outcomeFilled
	}

	metrics.Orders.WithLabelValues("unfilled").Inc()
	log.Info("no fill, order cancelled", "price", price)
	return outcomeSkip
}

func (s *Sniper) recordAttempt(ctx context.Context, attempt store.OrderAttempt, log *slog.Logger) {
	if err := s.store.RecordOrderAttempt(ctx, attempt); err != nil {
		log.Error("failed to record order attempt", "error", err)
	}
}
