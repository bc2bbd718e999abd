package scan

import (
	"slices"
	"testing"
	"time"

	"harpoon/internal/exchange"
)

func testFilters() Filters {
	return Filters{
		TopN:            500,
		MinVolume24h:    10000,
		MinPrice:        95,
		MaxPrice:        99,
		MaxDollarRank:   200,
		MinDollarVolume: 10000,
		MaxSpreadPct:    5.0,
		MaxHours:        24.0,
	}
}

// quote returns a qualifying yes-side quote closing in 3 hours.
func quote(ticker string, yesBid, yesAsk, vol24h int) exchange.Quote {
	return exchange.Quote{
		Ticker:      ticker,
		EventTicker: ticker,
		YesBid:      yesBid,
		YesAsk:      yesAsk,
		NoBid:       100 - yesAsk,
		Volume24h:   vol24h,
		CloseTime:   time.Now().Add(3 * time.Hour),
	}
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		ask  int
		tier int
	}{
		{100, 0},
		{99, 0},
		{98, 1},
		{97, 2},
		{96, 2},
		{95, 3},
		{50, 3},
		{1, 3},
	}
	for _, tc := range cases {
		if got := TierFor(tc.ask); got != tc.tier {
			t.Errorf("TierFor(%d) = %d, want %d", tc.ask, got, tc.tier)
		}
	}
}

func TestSpreadPct(t *testing.T) {
	cases := []struct {
		name     string
		bid, ask int
		want     float64
	}{
		{"missing bid", 0, 98, 0},
		{"missing ask", 97, 0, 0},
		{"inverted book", 98, 97, 0},
		{"equal", 98, 98, 0},
	}
	for _, tc := range cases {
		if got := SpreadPct(tc.bid, tc.ask); got != tc.want {
			t.Errorf("%s: SpreadPct(%d, %d) = %f, want %f", tc.name, tc.bid, tc.ask, got, tc.want)
		}
	}

	// 96/98: spread 2 over midpoint 97.
	got := SpreadPct(96, 98)
	want := 2.0 / 97.0 * 100
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SpreadPct(96, 98) = %f, want %f", got, want)
	}
}

func TestQualify_AskComplementFallback(t *testing.T) {
	// No native yes ask; no bid 3 implies ask 97.
	q := exchange.Quote{
		Ticker:    "FALLBACK",
		YesBid:    96,
		YesAsk:    0,
		NoBid:     3,
		Volume24h: 50000,
		CloseTime: time.Now().Add(2 * time.Hour),
	}

	candidates, _ := Qualify([]exchange.Quote{q}, testFilters())
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].SignalAsk != 97 {
		t.Errorf("expected fallback ask 97, got %d", candidates[0].SignalAsk)
	}
	if candidates[0].Tier != 2 {
		t.Errorf("expected tier 2, got %d", candidates[0].Tier)
	}
}

func TestQualify_NoSideSelection(t *testing.T) {
	q := exchange.Quote{
		Ticker:    "NOSIDE",
		YesBid:    3,
		YesAsk:    5,
		NoBid:     95,
		NoAsk:     97,
		Volume24h: 50000,
		CloseTime: time.Now().Add(2 * time.Hour),
	}

	candidates, _ := Qualify([]exchange.Quote{q}, testFilters())
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Side != exchange.SideNo {
		t.Errorf("expected no side, got %s", c.Side)
	}
	if c.SignalPrice != 95 || c.SignalAsk != 97 {
		t.Errorf("expected 95/97, got %d/%d", c.SignalPrice, c.SignalAsk)
	}
}

// Scenario: a 99c ask leaves no margin after the 1c fee.
func TestQualify_Tier0Rejected(t *testing.T) {
	q := quote("X", 98, 99, 50000)

	candidates, _ := Qualify([]exchange.Quote{q}, testFilters())
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Tier != 0 {
		t.Errorf("expected tier 0, got %d", c.Tier)
	}
	if c.Qualified {
		t.Error("expected candidate not qualified")
	}
	if !slices.Equal(c.FailReasons, []string{ReasonTier0}) {
		t.Errorf("expected fail reasons [tier0], got %v", c.FailReasons)
	}
}

func TestQualify_SingleCandidateQualifies(t *testing.T) {
	q := quote("GOOD", 97, 98, 30000)

	candidates, stats := Qualify([]exchange.Quote{q}, testFilters())
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if !c.Qualified {
		t.Fatalf("expected candidate qualified, fail reasons: %v", c.FailReasons)
	}
	if c.Tier != 1 {
		t.Errorf("expected tier 1, got %d", c.Tier)
	}
	if c.DollarRank != 1 {
		t.Errorf("expected dollar rank 1, got %d", c.DollarRank)
	}
	if c.DollarVolume24h != 30000*98/100 {
		t.Errorf("expected dollar volume %d, got %d", 30000*98/100, c.DollarVolume24h)
	}
	if stats.Qualified != 1 {
		t.Errorf("expected 1 qualified in stats, got %d", stats.Qualified)
	}
}

// Each failing predicate must contribute exactly its own reason code.
func TestQualify_FailReasonPerPredicate(t *testing.T) {
	f := testFilters()

	cases := []struct {
		name   string
		mutate func(*exchange.Quote)
		filter func(*Filters)
		reason string
	}{
		{
			name:   "tier0",
			mutate: func(q *exchange.Quote) { q.YesAsk = 99; q.NoBid = 1 },
			reason: ReasonTier0,
		},
		{
			name:   "rank",
			filter: func(f *Filters) { f.MaxDollarRank = 0 },
			reason: ReasonRank,
		},
		{
			name:   "volume",
			filter: func(f *Filters) { f.MinDollarVolume = 10_000_000 },
			reason: ReasonVolume,
		},
		{
			name:   "spread",
			mutate: func(q *exchange.Quote) { q.YesBid = 95; q.YesAsk = 96; q.NoBid = 4 },
			filter: func(f *Filters) { f.MaxSpreadPct = 0.5 },
			reason: ReasonSpread,
		},
		{
			name:   "expiry",
			mutate: func(q *exchange.Quote) { q.CloseTime = time.Now().Add(48 * time.Hour) },
			reason: ReasonExpiry,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := quote("T", 97, 98, 30000)
			filters := f
			if tc.mutate != nil {
				tc.mutate(&q)
			}
			if tc.filter != nil {
				tc.filter(&filters)
			}

			candidates, _ := Qualify([]exchange.Quote{q}, filters)
			if len(candidates) != 1 {
				t.Fatalf("expected 1 candidate, got %d", len(candidates))
			}
			c := candidates[0]
			if c.Qualified {
				t.Fatal("expected candidate not qualified")
			}
			if !slices.Equal(c.FailReasons, []string{tc.reason}) {
				t.Errorf("expected fail reasons [%s], got %v", tc.reason, c.FailReasons)
			}
		})
	}
}

func TestQualify_MissingCloseTimeFailsExpiry(t *testing.T) {
	q := quote("NOCLOSE", 97, 98, 30000)
	q.CloseTime = time.Time{}

	candidates, _ := Qualify([]exchange.Quote{q}, testFilters())
	c := candidates[0]
	if c.HoursLeft != nil {
		t.Errorf("expected nil hours left, got %v", *c.HoursLeft)
	}
	if !slices.Contains(c.FailReasons, ReasonExpiry) {
		t.Errorf("expected expiry failure, got %v", c.FailReasons)
	}
}

func TestQualify_DollarRankDense(t *testing.T) {
	quotes := []exchange.Quote{
		quote("LOW", 96, 97, 15000),
		quote("HIGH", 96, 97, 90000),
		quote("MID", 96, 97, 40000),
	}

	candidates, _ := Qualify(quotes, testFilters())
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	ranks := map[string]int{}
	for _, c := range candidates {
		ranks[c.Ticker] = c.DollarRank
	}
	if ranks["HIGH"] != 1 || ranks["MID"] != 2 || ranks["LOW"] != 3 {
		t.Errorf("unexpected ranks: %v", ranks)
	}
}

func TestQualify_TopNCut(t *testing.T) {
	f := testFilters()
	f.TopN = 1

	quotes := []exchange.Quote{
		quote("SMALL", 96, 97, 15000),
		quote("BIG", 96, 97, 90000),
	}

	candidates, stats := Qualify(quotes, f)
	if stats.Scanned != 1 {
		t.Errorf("expected 1 scanned after topN cut, got %d", stats.Scanned)
	}
	if len(candidates) != 1 || candidates[0].Ticker != "BIG" {
		t.Errorf("expected only BIG to survive the cut, got %v", candidates)
	}
}

func TestQualify_PrefixFilter(t *testing.T) {
	f := testFilters()
	f.Prefixes = []string{"KXNBA"}

	quotes := []exchange.Quote{
		quote("KXNBA-26-MIA", 97, 98, 30000),
		quote("KXCPI-26FEB", 97, 98, 30000),
	}

	candidates, stats := Qualify(quotes, f)
	if len(candidates) != 1 || candidates[0].Ticker != "KXNBA-26-MIA" {
		t.Fatalf("expected only the KXNBA market, got %v", candidates)
	}
	if stats.PassedPrefix != 1 {
		t.Errorf("expected 1 passed prefix, got %d", stats.PassedPrefix)
	}
}

func TestQualify_QualifiedOrderedFirst(t *testing.T) {
	quotes := []exchange.Quote{
		quote("REJECT", 98, 99, 80000), // tier 0
		quote("T2", 96, 97, 30000),
		quote("T1", 97, 98, 30000),
	}

	candidates, _ := Qualify(quotes, testFilters())
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	if candidates[0].Ticker != "T1" || candidates[1].Ticker != "T2" {
		t.Errorf("expected qualified T1 then T2 first, got %s, %s",
			candidates[0].Ticker, candidates[1].Ticker)
	}
	if candidates[2].Ticker != "REJECT" {
		t.Errorf("expected rejected candidate last, got %s", candidates[2].Ticker)
	}
}
