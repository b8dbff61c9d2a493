package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/mr-tron/base58"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// KeypairSize is the raw keypair length: 32-byte secret seed followed by the 32-byte public key
const KeypairSize = ed25519.PrivateKeySize

// TradingKeypair holds an Ed25519 key pair used to sign orders and cancels
type TradingKeypair struct {
	private ed25519.PrivateKey
	public  types.Pubkey
}

// GenerateKeypair creates a new random key pair (useful for testing)
func GenerateKeypair() (*TradingKeypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: %v", types.ErrKey, err)
	}
	return fromPrivate(priv), nil
}

// KeypairFromBytes loads a key pair from its 64-byte form [secret(32) || public(32)].
// The public half must match the key derived from the secret.
func KeypairFromBytes(raw []byte) (*TradingKeypair, error) {
	if len(raw) != KeypairSize {
		return nil, fmt.Errorf("%w: keypair must be %d bytes, got %d", types.ErrKey, KeypairSize, len(raw))
	}
	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match secret key", types.ErrKey)
	}
	return fromPrivate(priv), nil
}

// KeypairFromFile loads a key pair from a JSON file holding an array of 64 byte values
func KeypairFromFile(path string) (*TradingKeypair, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file %q: %v", types.ErrKey, path, err)
	}

	var values []int
	if err := json.Unmarshal(content, &values); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", types.ErrKey, err)
	}
	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: value %d at index %d is not a byte", types.ErrKey, v, i)
		}
		raw[i] = byte(v)
	}

	return KeypairFromBytes(raw)
}

// KeypairFromBase58Secret derives a key pair from a base58-encoded 32-byte secret seed
func KeypairFromBase58Secret(secret string) (*TradingKeypair, error) {
	seed, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58: %v", types.ErrKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d", types.ErrKey, ed25519.SeedSize, len(seed))
	}
	return fromPrivate(ed25519.NewKeyFromSeed(seed)), nil
}

func fromPrivate(priv ed25519.PrivateKey) *TradingKeypair {
	var pub types.Pubkey
	copy(pub[:], priv[ed25519.SeedSize:])
	return &TradingKeypair{private: priv, public: pub}
}

// Pubkey returns the public key as an identity
func (k *TradingKeypair) Pubkey() types.Pubkey {
	return k.public
}

// PubkeyString returns the public key in base58
func (k *TradingKeypair) PubkeyString() string {
	return k.public.String()
}

// Bytes returns the 64-byte [secret || public] form
// WARNING: contains the secret key. Never log it.
func (k *TradingKeypair) Bytes() []byte {
	out := make([]byte, KeypairSize)
	copy(out, k.private)
	return out
}

// Sign signs a message and returns the 64-byte signature
func (k *TradingKeypair) Sign(message []byte) [SignatureSize]byte {
	var sig [SignatureSize]byte
	copy(sig[:], ed25519.Sign(k.private, message))
	return sig
}

func (k *TradingKeypair) String() string {
	return fmt.Sprintf("TradingKeypair{pubkey: %s}", k.PubkeyString())
}

// VerifySignature checks an Ed25519 signature over message by owner
func VerifySignature(owner types.Pubkey, message, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(owner[:]), message, signature)
}
