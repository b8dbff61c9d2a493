package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// OrderIntentDTO is the JSON form of an order intent sent to the sequencer.
// Absent options are omitted here, unlike the binary layout where they are
// always tagged.
type OrderIntentDTO struct {
	OrderID        uint64  `json:"order_id"`
	Owner          string  `json:"owner"`
	Side           string  `json:"side"`
	Price          uint64  `json:"price"`
	Quantity       uint64  `json:"quantity"`
	Expiry         uint64  `json:"expiry"`
	BaseMint       string  `json:"base_mint"`
	QuoteMint      string  `json:"quote_mint"`
	MarketKind     string  `json:"market_kind"`
	Leverage       *uint64 `json:"leverage,omitempty"`
	PositionEffect *string `json:"position_effect,omitempty"`
	ReduceOnly     bool    `json:"reduce_only"`
	MarginMode     *string `json:"margin_mode,omitempty"`
	MarginAmount   *uint64 `json:"margin_amount,omitempty"`
	Liquidation    bool    `json:"liquidation"`
}

// SignedOrderRequest wraps an intent with its hex signature
type SignedOrderRequest struct {
	Intent    OrderIntentDTO `json:"intent"`
	Signature string         `json:"signature"`
}

// CancelOrderRequest is the flat JSON form of a signed cancel
type CancelOrderRequest struct {
	OrderID   uint64 `json:"order_id"`
	Owner     string `json:"owner"`
	BaseMint  string `json:"base_mint"`
	QuoteMint string `json:"quote_mint"`
	Signature string `json:"signature"`
}

func optText[T ~string](o types.Option[T]) *string {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	s := string(v)
	return &s
}

// NewOrderIntentDTO renders an intent in its JSON shape
func NewOrderIntentDTO(in *types.OrderIntent) OrderIntentDTO {
	return OrderIntentDTO{
		OrderID:        in.OrderID,
		Owner:          in.Owner.String(),
		Side:           string(in.Side),
		Price:          in.Price,
		Quantity:       in.Quantity,
		Expiry:         in.Expiry,
		BaseMint:       in.BaseMint.String(),
		QuoteMint:      in.QuoteMint.String(),
		MarketKind:     string(in.MarketKind),
		Leverage:       in.Leverage.Ptr(),
		PositionEffect: optText(in.PositionEffect),
		ReduceOnly:     in.ReduceOnly,
		MarginMode:     optText(in.MarginMode),
		MarginAmount:   in.MarginAmount.Ptr(),
		Liquidation:    in.Liquidation,
	}
}

// ToIntent converts the DTO back into an intent so its canonical bytes can
// be re-derived
func (d *OrderIntentDTO) ToIntent() (*types.OrderIntent, error) {
	owner, err := types.ParsePubkey(d.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	base, err := types.ParsePubkey(d.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base_mint: %w", err)
	}
	quote, err := types.ParsePubkey(d.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote_mint: %w", err)
	}

	in := &types.OrderIntent{
		OrderID:     d.OrderID,
		Owner:       owner,
		Side:        types.Side(d.Side),
		Price:       d.Price,
		Quantity:    d.Quantity,
		Expiry:      d.Expiry,
		BaseMint:    base,
		QuoteMint:   quote,
		MarketKind:  types.MarketKind(d.MarketKind),
		ReduceOnly:  d.ReduceOnly,
		Liquidation: d.Liquidation,
	}
	if d.Leverage != nil {
		in.Leverage = types.Some(*d.Leverage)
	}
	if d.PositionEffect != nil {
		in.PositionEffect = types.Some(types.PositionEffect(*d.PositionEffect))
	}
	if d.MarginMode != nil {
		in.MarginMode = types.Some(types.MarginMode(*d.MarginMode))
	}
	if d.MarginAmount != nil {
		in.MarginAmount = types.Some(*d.MarginAmount)
	}
	return in, nil
}

// ToIntent extracts the cancel intent
func (r *CancelOrderRequest) ToIntent() (*types.CancelIntent, error) {
	owner, err := types.ParsePubkey(r.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	base, err := types.ParsePubkey(r.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base_mint: %w", err)
	}
	quote, err := types.ParsePubkey(r.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote_mint: %w", err)
	}
	return &types.CancelIntent{
		OrderID:   r.OrderID,
		Owner:     owner,
		BaseMint:  base,
		QuoteMint: quote,
	}, nil
}

// ParseOrderRequest parses a signed order request from JSON
func ParseOrderRequest(data []byte) (*SignedOrderRequest, error) {
	var req SignedOrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal order request: %v", types.ErrSerialization, err)
	}
	if req.Signature == "" {
		return nil, fmt.Errorf("%w: missing signature", types.ErrSerialization)
	}
	return &req, nil
}

// ParseCancelRequest parses a signed cancel request from JSON
func ParseCancelRequest(data []byte) (*CancelOrderRequest, error) {
	var req CancelOrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal cancel request: %v", types.ErrSerialization, err)
	}
	if req.Signature == "" {
		return nil, fmt.Errorf("%w: missing signature", types.ErrSerialization)
	}
	return &req, nil
}
