package codec

import (
	"fmt"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// Encoded sizes
const (
	// OrderIntentMinSize is an order with every option absent
	OrderIntentMinSize = 136
	// OrderIntentMaxSize is an order with every option present
	OrderIntentMaxSize = 154
	CancelIntentSize   = 104
)

// EncodeOrderIntent serializes an order intent in field order:
// order_id, owner, side, price, quantity, expiry, base_mint, quote_mint,
// market_kind, leverage?, position_effect?, reduce_only, margin_mode?,
// margin_amount?, liquidation.
func EncodeOrderIntent(in *types.OrderIntent) ([]byte, error) {
	w := NewWriter(OrderIntentMaxSize)

	w.WriteU64(in.OrderID)
	w.WritePubkey(in.Owner)
	if err := w.WriteEnum(in.Side); err != nil {
		return nil, fmt.Errorf("encode side: %w", err)
	}
	w.WriteU64(in.Price)
	w.WriteU64(in.Quantity)
	w.WriteU64(in.Expiry)
	w.WritePubkey(in.BaseMint)
	w.WritePubkey(in.QuoteMint)
	if err := w.WriteEnum(in.MarketKind); err != nil {
		return nil, fmt.Errorf("encode market_kind: %w", err)
	}
	if err := WriteOption(w, in.Leverage, writeU64); err != nil {
		return nil, fmt.Errorf("encode leverage: %w", err)
	}
	if err := WriteOption(w, in.PositionEffect, writeEnum[types.PositionEffect]); err != nil {
		return nil, fmt.Errorf("encode position_effect: %w", err)
	}
	w.WriteBool(in.ReduceOnly)
	if err := WriteOption(w, in.MarginMode, writeEnum[types.MarginMode]); err != nil {
		return nil, fmt.Errorf("encode margin_mode: %w", err)
	}
	if err := WriteOption(w, in.MarginAmount, writeU64); err != nil {
		return nil, fmt.Errorf("encode margin_amount: %w", err)
	}
	w.WriteBool(in.Liquidation)

	return w.Bytes(), nil
}

// EncodeCancelIntent serializes order_id, owner, base_mint, quote_mint
func EncodeCancelIntent(in *types.CancelIntent) ([]byte, error) {
	w := NewWriter(CancelIntentSize)
	w.WriteU64(in.OrderID)
	w.WritePubkey(in.Owner)
	w.WritePubkey(in.BaseMint)
	w.WritePubkey(in.QuoteMint)
	return w.Bytes(), nil
}
