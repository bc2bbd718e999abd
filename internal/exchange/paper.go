package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperClient is an in-memory exchange used for dry runs and tests. Orders
// never touch a real exchange: by default every limit order fills in full at
// its limit price.
type PaperClient struct {
	mu       sync.Mutex
	balance  int
	quotes   map[string]Quote
	candles  map[string][]Candle
	orders   map[string]Order
	pageSize int

	// RestOrders leaves submitted orders resting instead of filling them.
	RestOrders bool
}

func NewPaperClient(balanceCents int) *PaperClient {
	return &PaperClient{
		balance:  balanceCents,
		quotes:   make(map[string]Quote),
		candles:  make(map[string][]Candle),
		orders:   make(map[string]Order),
		pageSize: 100,
	}
}

// SeedQuotes replaces the paper market universe.
func (p *PaperClient) SeedQuotes(quotes []Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes = make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		p.quotes[q.Ticker] = q
	}
}

// SeedCandles sets the candle history returned for a ticker.
func (p *PaperClient) SeedCandles(ticker string, candles []Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[ticker] = candles
}

func (p *PaperClient) GetBalance(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *PaperClient) ListOpenMarkets(ctx context.Context, params ListParams) (MarketPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var all []Quote
	for _, q := range p.quotes {
		if params.MinCloseTS > 0 && !q.CloseTime.IsZero() && q.CloseTime.Unix() < params.MinCloseTS {
			continue
		}
		if params.MaxCloseTS > 0 && !q.CloseTime.IsZero() && q.CloseTime.Unix() > params.MaxCloseTS {
			continue
		}
		all = append(all, q)
	}
	// Cursor offsets index into this slice across calls, so the order must
	// not depend on map iteration.
	sort.Slice(all, func(i, j int) bool { return all[i].Ticker < all[j].Ticker })

	limit := params.Limit
	if limit <= 0 {
		limit = p.pageSize
	}

	start := 0
	if params.Cursor != "" {
		if _, err := fmt.Sscanf(params.Cursor, "%d", &start); err != nil {
			return MarketPage{}, fmt.Errorf("bad cursor %q", params.Cursor)
		}
	}
	if start >= len(all) {
		return MarketPage{}, nil
	}

	end := start + limit
	cursor := ""
	if end < len(all) {
		cursor = fmt.Sprintf("%d", end)
	} else {
		end = len(all)
	}
	return MarketPage{Quotes: all[start:end], Cursor: cursor}, nil
}

func (p *PaperClient) GetMarket(ctx context.Context, ticker string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[ticker]
	if !ok {
		return Quote{}, fmt.Errorf("paper: unknown market %s", ticker)
	}
	return q, nil
}

func (p *PaperClient) GetCandles(ctx context.Context, ticker string, start, end time.Time, intervalMinutes int) ([]Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.candles[ticker], nil
}

func (p *PaperClient) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Count <= 0 {
		return Order{}, fmt.Errorf("paper: count must be > 0")
	}
	if req.PriceCents < 1 || req.PriceCents > 99 {
		return Order{}, fmt.Errorf("paper: price %dc out of range", req.PriceCents)
	}

	order := Order{OrderID: uuid.NewString()}
	if p.RestOrders {
		order.Status = "resting"
		order.RemainingCount = req.Count
	} else {
		order.Status = "executed"
		order.FillCount = req.Count
		order.FillCostCents = req.Count * req.PriceCents
		order.FeeCents = req.Count // flat 1c/contract, matching the live fee floor
		p.balance -= order.FillCostCents + order.FeeCents
	}
	p.orders[order.OrderID] = order
	return order, nil
}

func (p *PaperClient) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	order.Status = "canceled"
	p.orders[orderID] = order
	return nil
}
