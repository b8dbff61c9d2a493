package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/uhyunpark/fermitrade/pkg/codec"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/types"
)

// SignedOrder is a signed perp order ready for submission
type SignedOrder struct {
	OrderID    uint64
	Intent     types.OrderIntent
	Request    SignedOrderRequest
	Signature  [crypto.SignatureSize]byte
	OwnerBytes [types.PubkeySize]byte
}

// JSON renders the request as {"intent": {...}, "signature": "<hex>"}
func (s *SignedOrder) JSON() ([]byte, error) {
	data, err := json.Marshal(&s.Request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return data, nil
}

// Kind is the signing category
func (s *SignedOrder) Kind() types.IntentKind { return types.KindOrder }

// SignedCancel is a signed cancel request ready for submission
type SignedCancel struct {
	OrderID    uint64
	Intent     types.CancelIntent
	Request    CancelOrderRequest
	Signature  [crypto.SignatureSize]byte
	OwnerBytes [types.PubkeySize]byte
}

// JSON renders the flat cancel request including its signature
func (s *SignedCancel) JSON() ([]byte, error) {
	data, err := json.Marshal(&s.Request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return data, nil
}

func (s *SignedCancel) Kind() types.IntentKind { return types.KindCancel }

// PerpOrderParams are the canonical-unit inputs of a perp order. Market kind
// is always perp and liquidation always false; leverage, position effect and
// margin mode are always present.
type PerpOrderParams struct {
	OrderID        uint64
	Side           types.Side
	Price          uint64
	Quantity       uint64
	Expiry         uint64
	BaseMint       types.Pubkey
	QuoteMint      types.Pubkey
	Leverage       uint64
	PositionEffect types.PositionEffect
	MarginMode     types.MarginMode
	MarginAmount   types.Option[uint64]
	ReduceOnly     bool
}

// SignPerpOrder builds the perp intent for the signer's identity and signs it
func SignPerpOrder(signer *crypto.DigestSigner, p PerpOrderParams) (*SignedOrder, error) {
	intent := types.OrderIntent{
		OrderID:        p.OrderID,
		Owner:          signer.Pubkey(),
		Side:           p.Side,
		Price:          p.Price,
		Quantity:       p.Quantity,
		Expiry:         p.Expiry,
		BaseMint:       p.BaseMint,
		QuoteMint:      p.QuoteMint,
		MarketKind:     types.Perp,
		Leverage:       types.Some(p.Leverage),
		PositionEffect: types.Some(p.PositionEffect),
		ReduceOnly:     p.ReduceOnly,
		MarginMode:     types.Some(p.MarginMode),
		MarginAmount:   p.MarginAmount,
		Liquidation:    false,
	}
	return SignOrder(signer, intent)
}

// SignOrder signs an arbitrary order intent. The intent owner must be the
// signer's public key.
func SignOrder(signer *crypto.DigestSigner, intent types.OrderIntent) (*SignedOrder, error) {
	owner := signer.Pubkey()
	if intent.Owner != owner {
		return nil, fmt.Errorf("%w: intent owner %s does not match signer %s", types.ErrSigning, intent.Owner, owner)
	}

	encoded, err := codec.EncodeOrderIntent(&intent)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(types.KindOrder, encoded)
	if err != nil {
		return nil, err
	}

	return &SignedOrder{
		OrderID: intent.OrderID,
		Intent:  intent,
		Request: SignedOrderRequest{
			Intent:    NewOrderIntentDTO(&intent),
			Signature: sig.Hex,
		},
		Signature:  sig.Raw,
		OwnerBytes: owner,
	}, nil
}

// SignCancel signs a cancel for orderID in the given market
func SignCancel(signer *crypto.DigestSigner, orderID uint64, baseMint, quoteMint types.Pubkey) (*SignedCancel, error) {
	owner := signer.Pubkey()
	intent := types.CancelIntent{
		OrderID:   orderID,
		Owner:     owner,
		BaseMint:  baseMint,
		QuoteMint: quoteMint,
	}

	encoded, err := codec.EncodeCancelIntent(&intent)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(types.KindCancel, encoded)
	if err != nil {
		return nil, err
	}

	return &SignedCancel{
		OrderID: orderID,
		Intent:  intent,
		Request: CancelOrderRequest{
			OrderID:   orderID,
			Owner:     owner.String(),
			BaseMint:  baseMint.String(),
			QuoteMint: quoteMint.String(),
			Signature: sig.Hex,
		},
		Signature:  sig.Raw,
		OwnerBytes: owner,
	}, nil
}
