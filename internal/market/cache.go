package market

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"harpoon/internal/exchange"
)

const (
	pageLimit       = 1000
	refreshTick     = time.Second
	refreshFraction = 0.8 // refresh once cache age reaches this fraction of the TTL
)

// Cache holds the most recent open-market scan behind a single TTL slot.
// A background refresher keeps the slot warm so foreground callers rarely
// block on the network.
type Cache struct {
	client exchange.Client
	ttl    time.Duration
	now    func() time.Time

	mu         sync.RWMutex
	quotes     []exchange.Quote
	fetchedAt  time.Time
	lastWindow float64

	runMu   sync.Mutex
	running bool
	stop    context.CancelFunc
	done    chan struct{}
}

func NewCache(client exchange.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Fetch returns all open markets closing within windowHours of now. It
// serves from cache when the slot is fresh and was fetched with the same
// window; otherwise it hits the exchange and replaces the slot wholesale.
func (c *Cache) Fetch(ctx context.Context, windowHours float64) ([]exchange.Quote, bool, error) {
	c.mu.RLock()
	fresh := !c.fetchedAt.IsZero() &&
		c.lastWindow == windowHours &&
		c.now().Sub(c.fetchedAt) < c.ttl
	if fresh {
		quotes := slices.Clone(c.quotes)
		c.mu.RUnlock()
		return quotes, true, nil
	}
	c.mu.RUnlock()

	quotes, err := c.fetchAll(ctx, windowHours)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.quotes = quotes
	c.fetchedAt = c.now()
	c.lastWindow = windowHours
	c.mu.Unlock()

	return slices.Clone(quotes), false, nil
}

// fetchAll pages through the open-market listing, bounded server-side to
// markets closing within the window.
func (c *Cache) fetchAll(ctx context.Context, windowHours float64) ([]exchange.Quote, error) {
	now := c.now()
	params := exchange.ListParams{
		MinCloseTS: now.Unix(),
		MaxCloseTS: now.Add(time.Duration(windowHours * float64(time.Hour))).Unix(),
		Limit:      pageLimit,
	}

	var all []exchange.Quote
	for {
		page, err := c.client.ListOpenMarkets(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing open markets: %w", err)
		}
		all = append(all, page.Quotes...)
		if page.Cursor == "" || len(page.Quotes) == 0 {
			break
		}
		params.Cursor = page.Cursor
	}
	return all, nil
}

// StartRefresher launches the background refresh loop. Calling it while a
// refresher is already running is a no-op.
func (c *Cache) StartRefresher(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.stop = cancel
	c.done = make(chan struct{})

	go c.refreshLoop(refreshCtx)
	slog.Info("market cache refresher started", "ttl", c.ttl)
}

// StopRefresher stops the refresh loop and waits for it to exit. Safe to
// call when no refresher is running.
func (c *Cache) StopRefresher() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.stop()
	<-c.done
	c.running = false
	slog.Info("market cache refresher stopped")
}

func (c *Cache) refreshLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(refreshTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.maybeRefresh(ctx)
		}
	}
}

// maybeRefresh re-fetches the slot once its age reaches the refresh
// fraction of the TTL. Errors are logged and retried on the next tick;
// they never surface to foreground callers.
func (c *Cache) maybeRefresh(ctx context.Context) {
	c.mu.RLock()
	window := c.lastWindow
	populated := !c.fetchedAt.IsZero()
	stale := populated && c.now().Sub(c.fetchedAt) >= time.Duration(refreshFraction*float64(c.ttl))
	c.mu.RUnlock()

	// Nothing to refresh until a foreground Fetch establishes the window.
	if !populated || !stale {
		return
	}

	quotes, err := c.fetchAll(ctx, window)
	if err != nil {
		slog.Warn("background market refresh failed", "error", err)
		return
	}

	c.mu.Lock()
	c.quotes = quotes
	c.fetchedAt = c.now()
	c.mu.Unlock()

	slog.Debug("market cache refreshed", "markets", len(quotes))
}
