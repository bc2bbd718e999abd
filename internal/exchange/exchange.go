package exchange

import (
	"context"
	"time"
)

// Side is the side of a binary market contract.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Quote is an immutable snapshot of one market's book. Prices are integer
// cents in [0,100]; zero means the level is missing.
type Quote struct {
	Ticker       string
	EventTicker  string
	YesBid       int
	YesAsk       int
	NoBid        int
	NoAsk        int
	Volume       int
	Volume24h    int
	OpenInterest int
	CloseTime    time.Time // zero when the exchange reports no close time
}

// Bid returns the bid for the given side.
func (q Quote) Bid(s Side) int {
	if s == SideYes {
		return q.YesBid
	}
	return q.NoBid
}

// Ask returns the ask for the given side, falling back to the complement of
// the opposite bid when the native ask is missing.
func (q Quote) Ask(s Side) int {
	ask := q.YesAsk
	oppBid := q.NoBid
	if s == SideNo {
		ask = q.NoAsk
		oppBid = q.YesBid
	}
	if ask == 0 && oppBid > 0 {
		ask = 100 - oppBid
	}
	return ask
}

// ListParams filters a paginated open-market listing.
type ListParams struct {
	MinCloseTS int64 // unix seconds; 0 means no lower bound
	MaxCloseTS int64 // unix seconds; 0 means no upper bound
	Cursor     string
	Limit      int
}

// MarketPage is one page of an open-market listing. An empty cursor means
// there are no further pages.
type MarketPage struct {
	Quotes []Quote
	Cursor string
}

// Candle is one price candle for a market's yes side, in integer cents.
type Candle struct {
	Start  time.Time
	Open   int
	High   int
	Low    int
	Close  int
	Volume int
}

// OrderRequest describes a limit order to submit.
type OrderRequest struct {
	ClientOrderID string
	Ticker        string
	Side          Side
	Action        string // "buy" or "sell"
	Count         int
	PriceCents    int
}

// Order is the exchange's view of a submitted order.
type Order struct {
	OrderID        string
	Status         string // "executed", "resting", "canceled", ...
	FillCount      int
	RemainingCount int
	FillCostCents  int // total taker cost of the filled portion
	FeeCents       int
}

// OrderResting reports whether the order is sitting on the book unfilled.
func (o Order) Resting() bool {
	return o.Status == "resting" && o.RemainingCount > 0
}

// AvgFillPrice returns the average fill price in cents, or fallback when
// nothing filled or the exchange omitted the fill cost.
func (o Order) AvgFillPrice(fallback int) int {
	if o.FillCount > 0 && o.FillCostCents > 0 {
		return o.FillCostCents / o.FillCount
	}
	return fallback
}

// Client is the exchange surface this bot depends on. The HTTP
// implementation lives outside this repository; everything here treats it
// as in-process calls.
type Client interface {
	// GetBalance returns the available balance in cents.
	GetBalance(ctx context.Context) (int, error)
	// ListOpenMarkets returns one page of open markets matching params.
	ListOpenMarkets(ctx context.Context, params ListParams) (MarketPage, error)
	// GetMarket returns a live snapshot of a single market.
	GetMarket(ctx context.Context, ticker string) (Quote, error)
	// GetCandles returns price candles for a market in [start, end].
	GetCandles(ctx context.Context, ticker string, start, end time.Time, intervalMinutes int) ([]Candle, error)
	// PlaceOrder submits a limit order.
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, orderID string) error
}
