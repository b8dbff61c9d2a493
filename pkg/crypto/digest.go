package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// SignatureSize is the length of an Ed25519 signature
const SignatureSize = 64

// Domain-separation prefixes. They must byte-match the sequencer's verifier;
// an order and a cancel over the same fields never share signing input.
const (
	OrderPrefix  = "FRM_DEX_ORDER:"
	CancelPrefix = "FRM_DEX_CANCEL:"
)

// DomainPrefix returns the signing prefix for an intent category
func DomainPrefix(kind types.IntentKind) ([]byte, error) {
	switch kind {
	case types.KindOrder:
		return []byte(OrderPrefix), nil
	case types.KindCancel:
		return []byte(CancelPrefix), nil
	default:
		return nil, fmt.Errorf("%w: unknown intent kind %q", types.ErrSigning, string(kind))
	}
}

// SigningDigest computes SHA-256(prefix || encoded)
func SigningDigest(kind types.IntentKind, encoded []byte) ([sha256.Size]byte, error) {
	prefix, err := DomainPrefix(kind)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	h := sha256.New()
	h.Write(prefix)
	h.Write(encoded)

	var digest [sha256.Size]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// SigningMessage returns the bytes that are actually signed: the lowercase
// hex text of the digest, not the raw digest.
func SigningMessage(kind types.IntentKind, encoded []byte) ([]byte, error) {
	digest, err := SigningDigest(kind, encoded)
	if err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(digest[:])), nil
}

// Signature carries both forms of a signature
type Signature struct {
	Raw [SignatureSize]byte
	Hex string
}

// DigestSigner signs canonical intent encodings under domain separation
type DigestSigner struct {
	keypair *TradingKeypair
	log     *zap.Logger
}

// NewDigestSigner wraps a keypair. A nil logger disables debug output.
func NewDigestSigner(keypair *TradingKeypair, logger *zap.Logger) *DigestSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestSigner{keypair: keypair, log: logger}
}

// Pubkey returns the signer's identity
func (s *DigestSigner) Pubkey() types.Pubkey {
	return s.keypair.Pubkey()
}

// Sign hashes prefix||encoded, hex-encodes the digest and signs the hex text
func (s *DigestSigner) Sign(kind types.IntentKind, encoded []byte) (Signature, error) {
	message, err := SigningMessage(kind, encoded)
	if err != nil {
		return Signature{}, err
	}

	raw := s.keypair.Sign(message)
	sig := Signature{Raw: raw, Hex: hex.EncodeToString(raw[:])}

	s.log.Debug("intent_signed",
		zap.String("kind", string(kind)),
		zap.Int("encoded_len", len(encoded)),
		zap.ByteString("digest_hex", message),
		zap.String("signature", sig.Hex))

	return sig, nil
}

// VerifyDigest checks that signature was produced by owner over the given encoding
func VerifyDigest(owner types.Pubkey, kind types.IntentKind, encoded, signature []byte) (bool, error) {
	message, err := SigningMessage(kind, encoded)
	if err != nil {
		return false, err
	}
	return VerifySignature(owner, message, signature), nil
}
