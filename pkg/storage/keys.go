package storage

import (
	"encoding/binary"
	"fmt"
)

// Key schema for the market metadata cache
//
//   mkt:<market uuid>  → cached MarketInfo (JSON)
//   meta:synced        → last full-list refresh, unix ms (8 bytes, big endian)

// Key prefixes
const (
	prefixMarket = "mkt:"
	keySynced    = "meta:synced"
)

// marketKey returns the key for a market
// Format: "mkt:{uuid}"
func marketKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixMarket, id))
}

func marketPrefix() []byte {
	return []byte(prefixMarket)
}

func encodeMillis(ms int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(ms))
	return k[:]
}

func decodeMillis(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("timestamp must be 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
