package market

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/fermitrade/pkg/storage"
	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

type fakeSource struct {
	mu      sync.Mutex
	markets []types.MarketInfo
	err     error
	calls   int
}

func (f *fakeSource) ListMarkets(context.Context) ([]types.MarketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.MarketInfo(nil), f.markets...), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testMarkets() []types.MarketInfo {
	return []types.MarketInfo{
		{UUID: "sol-perp", Name: "SOL-PERP", BaseMint: types.TestnetSOL, QuoteMint: types.TestnetUSDC, BaseDecimals: 9, QuoteDecimals: 6},
		{UUID: "btc-perp", Name: "BTC-PERP", BaseMint: types.TestnetSOL, QuoteMint: types.TestnetUSDC, BaseDecimals: 8, QuoteDecimals: 6},
	}
}

func TestLookupRefreshesOnce(t *testing.T) {
	src := &fakeSource{markets: testMarkets()}
	clock := util.NewFixedClock(time.Unix(1_700_000_000, 0))
	r := NewRegistry(src, WithClock(clock), WithTTL(time.Minute))
	ctx := context.Background()

	m, err := r.Lookup(ctx, "sol-perp")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), m.BaseDecimals)

	_, err = r.Lookup(ctx, "btc-perp")
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount(), "fresh list should be reused")

	clock.Advance(time.Minute)
	_, err = r.Lookup(ctx, "btc-perp")
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount(), "stale list should be refetched")
}

func TestLookupUnknownMarket(t *testing.T) {
	r := NewRegistry(&fakeSource{markets: testMarkets()})

	_, err := r.Lookup(context.Background(), "doge-perp")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestZeroTTLAlwaysRefreshes(t *testing.T) {
	src := &fakeSource{markets: testMarkets()}
	r := NewRegistry(src, WithTTL(0))

	for i := 0; i < 3; i++ {
		_, err := r.Lookup(context.Background(), "sol-perp")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.callCount())
}

func TestLookupReturnsCopy(t *testing.T) {
	r := NewRegistry(&fakeSource{markets: testMarkets()})
	ctx := context.Background()

	m, err := r.Lookup(ctx, "sol-perp")
	require.NoError(t, err)
	m.BaseDecimals = 0

	again, err := r.Lookup(ctx, "sol-perp")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), again.BaseDecimals)
}

func TestStaleFallbackOnRefreshError(t *testing.T) {
	src := &fakeSource{markets: testMarkets()}
	clock := util.NewFixedClock(time.Unix(0, 0))
	r := NewRegistry(src, WithClock(clock), WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx))

	src.mu.Lock()
	src.err = types.ErrRPC
	src.mu.Unlock()
	clock.Advance(time.Hour)

	m, err := r.Lookup(ctx, "sol-perp")
	require.NoError(t, err)
	assert.Equal(t, "SOL-PERP", m.Name)
}

func TestRefreshErrorWithoutData(t *testing.T) {
	r := NewRegistry(&fakeSource{err: types.ErrRPC})

	_, err := r.List(context.Background())
	assert.True(t, errors.Is(err, types.ErrRPC))
	assert.Zero(t, r.Count())
}

func TestListKeepsSourceOrder(t *testing.T) {
	r := NewRegistry(&fakeSource{markets: testMarkets()})

	markets, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "sol-perp", markets[0].UUID)
	assert.Equal(t, "btc-perp", markets[1].UUID)
	assert.Equal(t, 2, r.Count())
}

func TestMints(t *testing.T) {
	bad := testMarkets()
	bad[1].QuoteMint = "not-base58-0OIl"
	r := NewRegistry(&fakeSource{markets: bad})
	ctx := context.Background()

	base, quote, err := r.Mints(ctx, "sol-perp")
	require.NoError(t, err)
	assert.Equal(t, types.MustParsePubkey(types.TestnetSOL), base)
	assert.Equal(t, types.MustParsePubkey(types.TestnetUSDC), quote)

	_, _, err = r.Mints(ctx, "btc-perp")
	assert.True(t, errors.Is(err, types.ErrInvalidPubkey))
}

func TestPersistentCache(t *testing.T) {
	store, err := storage.OpenMarketStore(filepath.Join(t.TempDir(), "markets"))
	require.NoError(t, err)
	defer store.Close()

	clock := util.NewFixedClock(time.UnixMilli(1_700_000_000_000))
	src := &fakeSource{markets: testMarkets()}
	first := NewRegistry(src, WithCache(store), WithClock(clock))
	require.NoError(t, first.Refresh(context.Background()))

	// A second registry warms from disk and does not hit the node while fresh
	offline := &fakeSource{err: types.ErrRPC}
	second := NewRegistry(offline, WithCache(store), WithClock(clock))
	require.NoError(t, second.Load())
	assert.Equal(t, 2, second.Count())
	assert.True(t, second.SyncedAt().Equal(clock.Now()))

	m, err := second.Lookup(context.Background(), "btc-perp")
	require.NoError(t, err)
	assert.Equal(t, uint8(8), m.BaseDecimals)
	assert.Zero(t, offline.callCount())
}
