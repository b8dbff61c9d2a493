package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/pkg/storage"
	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

const DefaultTTL = 5 * time.Minute

// Source lists markets from the node
type Source interface {
	ListMarkets(ctx context.Context) ([]types.MarketInfo, error)
}

// Cache persists the market list between runs
type Cache interface {
	ReplaceMarkets(markets []types.MarketInfo, cachedAt time.Time) error
	ListMarkets() ([]storage.CachedMarket, error)
	LastSync() (time.Time, bool, error)
}

// Registry holds market metadata in a thread-safe manner.
// Entries older than the TTL are refreshed from the source on lookup.
type Registry struct {
	mu       sync.RWMutex
	markets  map[string]*types.MarketInfo // uuid -> market
	order    []string                     // uuids in source order
	syncedAt time.Time

	source Source
	cache  Cache
	ttl    time.Duration
	clock  util.Clock
	log    *zap.Logger
}

type Option func(*Registry)

// WithCache backs the registry with a persistent cache
func WithCache(c Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithTTL sets how long a fetched list stays fresh. Zero refreshes on
// every lookup.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

func WithClock(c util.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.log = logger }
}

// NewRegistry creates an empty registry over source
func NewRegistry(source Source, opts ...Option) *Registry {
	r := &Registry{
		markets: make(map[string]*types.MarketInfo),
		source:  source,
		ttl:     DefaultTTL,
		clock:   util.RealClock{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load warms the registry from the persistent cache, if any
func (r *Registry) Load() error {
	if r.cache == nil {
		return nil
	}

	cached, err := r.cache.ListMarkets()
	if err != nil {
		return fmt.Errorf("load market cache: %w", err)
	}
	synced, ok, err := r.cache.LastSync()
	if err != nil {
		return fmt.Errorf("load market cache: %w", err)
	}
	if !ok {
		return nil
	}

	markets := make([]types.MarketInfo, len(cached))
	for i := range cached {
		markets[i] = cached[i].Market
	}

	r.mu.Lock()
	r.replace(markets, synced)
	r.mu.Unlock()

	r.log.Info("market_cache_loaded",
		zap.Int("markets", len(markets)),
		zap.Time("synced_at", synced))
	return nil
}

// Refresh replaces the registry contents with the source's current list
func (r *Registry) Refresh(ctx context.Context) error {
	markets, err := r.source.ListMarkets(ctx)
	if err != nil {
		return err
	}
	now := r.clock.Now()

	r.mu.Lock()
	r.replace(markets, now)
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.ReplaceMarkets(markets, now); err != nil {
			// The in-memory list is still valid
			r.log.Warn("market_cache_write_failed", zap.Error(err))
		}
	}

	r.log.Debug("markets_refreshed", zap.Int("markets", len(markets)))
	return nil
}

// replace swaps the contents. Caller must hold the write lock.
func (r *Registry) replace(markets []types.MarketInfo, syncedAt time.Time) {
	r.markets = make(map[string]*types.MarketInfo, len(markets))
	r.order = make([]string, 0, len(markets))
	for i := range markets {
		m := markets[i]
		if _, dup := r.markets[m.UUID]; !dup {
			r.order = append(r.order, m.UUID)
		}
		r.markets[m.UUID] = &m
	}
	r.syncedAt = syncedAt
}

func (r *Registry) stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncedAt.IsZero() || r.clock.Now().Sub(r.syncedAt) >= r.ttl
}

func (r *Registry) ensureFresh(ctx context.Context) error {
	if !r.stale() {
		return nil
	}
	if err := r.Refresh(ctx); err != nil {
		if r.Count() == 0 {
			return err
		}
		r.log.Warn("market_refresh_failed_using_stale", zap.Error(err))
	}
	return nil
}

// Lookup returns a copy of the market with the given uuid.
// Returns ErrNotFound if the node doesn't list it.
func (r *Registry) Lookup(ctx context.Context, marketID string) (*types.MarketInfo, error) {
	if err := r.ensureFresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	m, exists := r.markets[marketID]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: market %s", types.ErrNotFound, marketID)
	}
	out := *m
	return &out, nil
}

// Mints returns the parsed base and quote mints of a market
func (r *Registry) Mints(ctx context.Context, marketID string) (base, quote types.Pubkey, err error) {
	m, err := r.Lookup(ctx, marketID)
	if err != nil {
		return types.Pubkey{}, types.Pubkey{}, err
	}
	return ParseMints(m)
}

// ParseMints decodes a market's base58 mints
func ParseMints(m *types.MarketInfo) (base, quote types.Pubkey, err error) {
	if base, err = types.ParsePubkey(m.BaseMint); err != nil {
		return types.Pubkey{}, types.Pubkey{}, fmt.Errorf("market %s base mint: %w", m.UUID, err)
	}
	if quote, err = types.ParsePubkey(m.QuoteMint); err != nil {
		return types.Pubkey{}, types.Pubkey{}, fmt.Errorf("market %s quote mint: %w", m.UUID, err)
	}
	return base, quote, nil
}

// List returns all markets in source order
func (r *Registry) List(ctx context.Context) ([]types.MarketInfo, error) {
	if err := r.ensureFresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]types.MarketInfo, 0, len(r.order))
	for _, id := range r.order {
		markets = append(markets, *r.markets[id])
	}
	return markets, nil
}

// Count returns the number of known markets without refreshing
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// SyncedAt returns when the current list was fetched
func (r *Registry) SyncedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncedAt
}
