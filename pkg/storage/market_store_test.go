package storage

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

func openTestStore(t *testing.T) *MarketStore {
	t.Helper()
	store, err := OpenMarketStore(filepath.Join(t.TempDir(), "markets"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func solPerp() types.MarketInfo {
	return types.MarketInfo{
		UUID:          "sol-perp",
		BaseMint:      types.TestnetSOL,
		QuoteMint:     types.TestnetUSDC,
		Name:          "SOL-PERP",
		Kind:          "perp",
		BaseDecimals:  9,
		QuoteDecimals: 6,
		OpenInterest:  big.NewInt(-42),
	}
}

func btcPerp() types.MarketInfo {
	m := solPerp()
	m.UUID = "btc-perp"
	m.Name = "BTC-PERP"
	m.BaseDecimals = 8
	return m
}

func TestReplaceAndListMarkets(t *testing.T) {
	store := openTestStore(t)
	now := time.UnixMilli(1_700_000_000_000)

	if err := store.ReplaceMarkets([]types.MarketInfo{solPerp()}, now); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	markets, err := store.ListMarkets()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("len(markets) = %d, want 1", len(markets))
	}
	got := markets[0]
	if got.Market.BaseDecimals != 9 || got.Market.QuoteDecimals != 6 {
		t.Errorf("decimals = %d/%d, want 9/6", got.Market.BaseDecimals, got.Market.QuoteDecimals)
	}
	if got.Market.OpenInterest.Cmp(big.NewInt(-42)) != 0 {
		t.Errorf("open interest = %v, want -42", got.Market.OpenInterest)
	}
	if got.CachedAt != now.UnixMilli() {
		t.Errorf("cached_at = %d, want %d", got.CachedAt, now.UnixMilli())
	}
}

func TestListEmptyStore(t *testing.T) {
	store := openTestStore(t)

	markets, err := store.ListMarkets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 0 {
		t.Errorf("got %d markets, want none", len(markets))
	}
}

func TestReplaceMarkets(t *testing.T) {
	store := openTestStore(t)
	t0 := time.UnixMilli(1_000)

	stale := solPerp()
	stale.UUID = "old-market"
	if err := store.ReplaceMarkets([]types.MarketInfo{stale}, t0); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	t1 := time.UnixMilli(2_000)
	if err := store.ReplaceMarkets([]types.MarketInfo{solPerp(), btcPerp()}, t1); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	markets, err := store.ListMarkets()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("len(markets) = %d, want 2", len(markets))
	}
	// Key order: btc-perp < sol-perp, and old-market is gone
	if markets[0].Market.UUID != "btc-perp" || markets[1].Market.UUID != "sol-perp" {
		t.Errorf("order = [%s %s], want [btc-perp sol-perp]", markets[0].Market.UUID, markets[1].Market.UUID)
	}
	if markets[0].CachedAt != t1.UnixMilli() {
		t.Errorf("cached_at = %d, want %d", markets[0].CachedAt, t1.UnixMilli())
	}

	synced, ok, err := store.LastSync()
	if err != nil || !ok {
		t.Fatalf("LastSync = %v, %v, %v", synced, ok, err)
	}
	if !synced.Equal(t1) {
		t.Errorf("synced = %v, want %v", synced, t1)
	}
}

func TestReplaceWithEmptyList(t *testing.T) {
	store := openTestStore(t)
	store.ReplaceMarkets([]types.MarketInfo{solPerp()}, time.UnixMilli(1_000))

	if err := store.ReplaceMarkets(nil, time.UnixMilli(2_000)); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	markets, _ := store.ListMarkets()
	if len(markets) != 0 {
		t.Errorf("got %d markets after empty replace, want none", len(markets))
	}
	synced, ok, _ := store.LastSync()
	if !ok || synced.UnixMilli() != 2_000 {
		t.Errorf("synced = %v, %v; want 2000ms", synced, ok)
	}
}

func TestLastSyncEmpty(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.LastSync()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("empty store reports a sync time")
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets")

	store, err := OpenMarketStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store.ReplaceMarkets([]types.MarketInfo{solPerp()}, time.Now())
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenMarketStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	markets, err := reopened.ListMarkets()
	if err != nil || len(markets) != 1 || markets[0].Market.UUID != "sol-perp" {
		t.Fatalf("market lost across reopen: %v %v", markets, err)
	}
	if _, ok, _ := reopened.LastSync(); !ok {
		t.Error("sync time lost across reopen")
	}
}
