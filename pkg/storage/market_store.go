package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// CachedMarket is a market record with the time it was fetched
type CachedMarket struct {
	Market   types.MarketInfo `json:"market"`
	CachedAt int64            `json:"cached_at"` // unix ms
}

// MarketStore persists market metadata between runs so decimals and mints
// are available without a round trip to the node
type MarketStore struct {
	db *pebble.DB
}

func OpenMarketStore(path string) (*MarketStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open market store %q: %w", path, err)
	}
	return &MarketStore{db: db}, nil
}

func (s *MarketStore) Close() error { return s.db.Close() }

// ReplaceMarkets swaps the whole cached list atomically and records the
// sync time
func (s *MarketStore) ReplaceMarkets(markets []types.MarketInfo, cachedAt time.Time) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	prefix := marketPrefix()
	if err := batch.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to clear markets: %w", err)
	}

	ms := cachedAt.UnixMilli()
	for _, m := range markets {
		data, err := json.Marshal(CachedMarket{Market: m, CachedAt: ms})
		if err != nil {
			return fmt.Errorf("failed to marshal market %s: %w", m.UUID, err)
		}
		if err := batch.Set(marketKey(m.UUID), data, nil); err != nil {
			return fmt.Errorf("failed to stage market %s: %w", m.UUID, err)
		}
	}
	if err := batch.Set([]byte(keySynced), encodeMillis(ms), nil); err != nil {
		return fmt.Errorf("failed to stage sync time: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit markets: %w", err)
	}
	return nil
}

// ListMarkets loads every cached market in key order
func (s *MarketStore) ListMarkets() ([]CachedMarket, error) {
	prefix := marketPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var markets []CachedMarket
	for iter.First(); iter.Valid(); iter.Next() {
		var cm CachedMarket
		if err := json.Unmarshal(iter.Value(), &cm); err != nil {
			continue // Skip invalid entries
		}
		markets = append(markets, cm)
	}
	return markets, nil
}

// LastSync returns when ReplaceMarkets last ran
func (s *MarketStore) LastSync() (time.Time, bool, error) {
	data, closer, err := s.db.Get([]byte(keySynced))
	if errors.Is(err, pebble.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get sync time: %w", err)
	}
	defer closer.Close()

	ms, err := decodeMillis(data)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
