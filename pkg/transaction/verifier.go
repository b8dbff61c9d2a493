package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/uhyunpark/fermitrade/pkg/codec"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/types"
)

// Verifier re-derives the canonical bytes of a signed request and checks
// its signature against the claimed owner. The sequencer remains the
// authority; this is a local self-check.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyOrderRequest verifies a signed order request.
// Returns (owner, valid, error)
func (v *Verifier) VerifyOrderRequest(req *SignedOrderRequest) (types.Pubkey, bool, error) {
	intent, err := req.Intent.ToIntent()
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("invalid order format: %w", err)
	}

	sigBytes, err := decodeSignature(req.Signature)
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("invalid signature: %w", err)
	}

	encoded, err := codec.EncodeOrderIntent(intent)
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("invalid order format: %w", err)
	}

	valid, err := crypto.VerifyDigest(intent.Owner, types.KindOrder, encoded, sigBytes)
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return types.Pubkey{}, false, fmt.Errorf("%w: order signature invalid", types.ErrSigning)
	}

	return intent.Owner, true, nil
}

// VerifyCancelRequest verifies a signed cancel request
func (v *Verifier) VerifyCancelRequest(req *CancelOrderRequest) (types.Pubkey, bool, error) {
	intent, err := req.ToIntent()
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("invalid cancel format: %w", err)
	}

	sigBytes, err := decodeSignature(req.Signature)
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("invalid signature: %w", err)
	}

	encoded, err := codec.EncodeCancelIntent(intent)
	if err != nil {
		return types.Pubkey{}, false, err
	}

	valid, err := crypto.VerifyDigest(intent.Owner, types.KindCancel, encoded, sigBytes)
	if err != nil {
		return types.Pubkey{}, false, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return types.Pubkey{}, false, fmt.Errorf("%w: cancel signature invalid", types.ErrSigning)
	}

	return intent.Owner, true, nil
}

// VerifySignedOrder checks a locally signed order
func (v *Verifier) VerifySignedOrder(s *SignedOrder) error {
	_, _, err := v.VerifyOrderRequest(&s.Request)
	return err
}

// VerifySignedCancel checks a locally signed cancel
func (v *Verifier) VerifySignedCancel(s *SignedCancel) error {
	_, _, err := v.VerifyCancelRequest(&s.Request)
	return err
}

// decodeSignature decodes a hex signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex signature: %v", types.ErrSigning, err)
	}

	if len(sigBytes) != crypto.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrSigning, crypto.SignatureSize, len(sigBytes))
	}

	return sigBytes, nil
}
