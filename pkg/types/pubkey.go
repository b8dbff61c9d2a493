package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of an account or mint identity in bytes
const PubkeySize = 32

// Pubkey is a 32-byte public identity (account owner or token mint).
// Text form is base58; equality is byte-wise.
type Pubkey [PubkeySize]byte

// PubkeyFromBytes copies a 32-byte slice into a Pubkey
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubkey, PubkeySize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// ParsePubkey decodes a base58 string into a Pubkey
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: invalid base58 %q: %v", ErrInvalidPubkey, s, err)
	}
	return PubkeyFromBytes(raw)
}

// MustParsePubkey is ParsePubkey for compile-time constants; it panics on bad input.
func MustParsePubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw key bytes
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeySize)
	copy(out, p[:])
	return out
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
