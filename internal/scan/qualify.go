// Package scan turns raw market quotes into tiered, ranked trade candidates.
package scan

import (
	"slices"
	"sort"
	"strings"
	"time"

	"harpoon/internal/exchange"
)

// Rejection reason codes recorded on non-qualified candidates.
const (
	ReasonTier0  = "tier0"
	ReasonRank   = "rank"
	ReasonVolume = "volume"
	ReasonSpread = "spread"
	ReasonExpiry = "expiry"
)

// Candidate is a quote that crossed the minimum price on one side, enriched
// with everything the execution loop ranks and gates on.
type Candidate struct {
	exchange.Quote

	Side            exchange.Side
	SignalPrice     int // bid of the chosen side
	SignalAsk       int // ask of the chosen side, complement fallback applied
	Tier            int // 0 = unprofitable; 1 best margin band, 3 widest
	SpreadPct       float64
	DollarVolume24h int
	DollarRank      int      // dense 1-based rank by 24h dollar volume, candidates only
	HoursLeft       *float64 // nil when the exchange reports no close time; <= 0 means closed
	Qualified       bool
	FailReasons     []string
}

// Filters configures a qualification pass.
type Filters struct {
	Prefixes        []string // event-ticker allow-list; empty allows all
	TopN            int      // quotes considered, by 24h volume
	MinVolume24h    int
	MinPrice        int
	MaxPrice        int
	MaxDollarRank   int
	MinDollarVolume int
	MaxSpreadPct    float64
	MaxHours        float64
}

// Stats counts how many quotes survived each pipeline stage. Observability
// only; nothing downstream decides on these.
type Stats struct {
	TotalFetched int
	Scanned      int // after the topN cut
	PassedPrefix int
	PassedVolume int
	PassedPrice  int // produced a candidate side
	PassedTier   int
	PassedRank   int
	PassedDollar int
	PassedSpread int
	PassedExpiry int
	Qualified    int
	FromCache    bool // set by the caller
}

// Qualify runs the full pipeline over raw quotes. Pure apart from reading
// the wall clock to compute hours until close.
func Qualify(quotes []exchange.Quote, f Filters) ([]Candidate, Stats) {
	now := time.Now()
	stats := Stats{TotalFetched: len(quotes)}

	// Cheapest cuts first: only the topN quotes by 24h volume are considered.
	pool := slices.Clone(quotes)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Volume24h > pool[j].Volume24h
	})
	if f.TopN > 0 && len(pool) > f.TopN {
		pool = pool[:f.TopN]
	}
	stats.Scanned = len(pool)

	prefixes := make([]string, len(f.Prefixes))
	for i, p := range f.Prefixes {
		prefixes[i] = strings.ToUpper(p)
	}

	var candidates []Candidate
	for _, q := range pool {
		if len(prefixes) > 0 && !matchesPrefix(q.EventTicker, prefixes) {
			continue
		}
		stats.PassedPrefix++

		if q.Volume24h < f.MinVolume24h {
			continue
		}
		stats.PassedVolume++

		side, ok := chooseSide(q, f.MinPrice, f.MaxPrice)
		if !ok {
			continue
		}
		stats.PassedPrice++

		candidates = append(candidates, newCandidate(q, side, now))
	}

	assignDollarRanks(candidates)

	for i := range candidates {
		qualify(&candidates[i], f, &stats)
	}

	orderResults(candidates)
	return candidates, stats
}

func matchesPrefix(eventTicker string, prefixes []string) bool {
	upper := strings.ToUpper(eventTicker)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// chooseSide picks whichever side's bid crossed the configured price band,
// yes side first.
func chooseSide(q exchange.Quote, minPrice, maxPrice int) (exchange.Side, bool) {
	if maxPrice <= 0 {
		maxPrice = 100
	}
	if q.YesBid >= minPrice && q.YesBid <= maxPrice {
		return exchange.SideYes, true
	}
	if q.NoBid >= minPrice && q.NoBid <= maxPrice {
		return exchange.SideNo, true
	}
	return "", false
}

func newCandidate(q exchange.Quote, side exchange.Side, now time.Time) Candidate {
	bid := q.Bid(side)
	ask := q.Ask(side)

	c := Candidate{
		Quote:           q,
		Side:            side,
		SignalPrice:     bid,
		SignalAsk:       ask,
		Tier:            TierFor(ask),
		SpreadPct:       SpreadPct(bid, ask),
		DollarVolume24h: q.Volume24h * ask / 100,
	}
	if !q.CloseTime.IsZero() {
		h := q.CloseTime.Sub(now).Hours()
		c.HoursLeft = &h
	}
	return c
}

// TierFor buckets an ask price by remaining profit margin. The exchange
// charges a 1c minimum fee per contract, so 99c and up leaves nothing
// after settlement.
func TierFor(ask int) int {
	switch {
	case ask >= 99:
		return 0
	case ask == 98:
		return 1
	case ask >= 96:
		return 2
	default:
		return 3
	}
}

// SpreadPct is the bid/ask spread as a percentage of the midpoint. Zero
// when either side of the book is missing or the book is inverted.
func SpreadPct(bid, ask int) float64 {
	if bid <= 0 || ask <= 0 || ask <= bid {
		return 0
	}
	mid := float64(ask+bid) / 2
	return float64(ask-bid) / mid * 100
}

// assignDollarRanks gives each candidate its dense 1-based rank by 24h
// dollar volume, descending, ties broken by input order.
func assignDollarRanks(candidates []Candidate) {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].DollarVolume24h > candidates[order[b]].DollarVolume24h
	})
	for rank, idx := range order {
		candidates[idx].DollarRank = rank + 1
	}
}

// qualify applies the five admission predicates, recording a reason code
// per failed predicate rather than a single boolean.
func qualify(c *Candidate, f Filters, stats *Stats) {
	if c.Tier > 0 {
		stats.PassedTier++
	} else {
		c.FailReasons = append(c.FailReasons, ReasonTier0)
	}

	if c.DollarRank <= f.MaxDollarRank {
		stats.PassedRank++
	} else {
		c.FailReasons = append(c.FailReasons, ReasonRank)
	}

	if c.DollarVolume24h >= f.MinDollarVolume {
		stats.PassedDollar++
	} else {
		c.FailReasons = append(c.FailReasons, ReasonVolume)
	}

	if c.SpreadPct <= f.MaxSpreadPct {
		stats.PassedSpread++
	} else {
		c.FailReasons = append(c.FailReasons, ReasonSpread)
	}

	if c.HoursLeft != nil && *c.HoursLeft > 0 && *c.HoursLeft <= f.MaxHours {
		stats.PassedExpiry++
	} else {
		c.FailReasons = append(c.FailReasons, ReasonExpiry)
	}

	if len(c.FailReasons) == 0 {
		c.Qualified = true
		stats.Qualified++
	}
}

// orderResults sorts qualified candidates ahead of rejected ones, both
// groups by tier ascending, price descending, dollar volume descending,
// spread ascending.
func orderResults(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Qualified != b.Qualified {
			return a.Qualified
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.SignalPrice != b.SignalPrice {
			return a.SignalPrice > b.SignalPrice
		}
		if a.DollarVolume24h != b.DollarVolume24h {
			return a.DollarVolume24h > b.DollarVolume24h
		}
		return a.SpreadPct < b.SpreadPct
	})
}
