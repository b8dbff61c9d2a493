package types

import (
	"fmt"
	"strings"
)

// Enum values are text-typed so their wire discriminants can never follow
// declaration order. The *Codes tables below are the only source of the
// single-byte codes used by the canonical encoding and must match the
// sequencer's schema.

// Side of an order
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

var sideCodes = map[Side]uint8{
	Buy:  0,
	Sell: 1,
}

// Code returns the canonical discriminant
func (s Side) Code() (uint8, error) {
	c, ok := sideCodes[s]
	if !ok {
		return 0, fmt.Errorf("%w: unknown side %q", ErrSerialization, string(s))
	}
	return c, nil
}

// ParseSide accepts "buy"/"sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy", "long":
		return Buy, nil
	case "sell", "short":
		return Sell, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

// MarketKind tags the instrument type. This SDK only issues perpetual orders.
type MarketKind string

const (
	Perp MarketKind = "perp"
)

var marketKindCodes = map[MarketKind]uint8{
	Perp: 0,
}

func (k MarketKind) Code() (uint8, error) {
	c, ok := marketKindCodes[k]
	if !ok {
		return 0, fmt.Errorf("%w: unknown market kind %q", ErrSerialization, string(k))
	}
	return c, nil
}

// PositionEffect says whether an order opens or closes exposure
type PositionEffect string

const (
	Open  PositionEffect = "open"
	Close PositionEffect = "close"
)

var positionEffectCodes = map[PositionEffect]uint8{
	Open:  0,
	Close: 1,
}

func (p PositionEffect) Code() (uint8, error) {
	c, ok := positionEffectCodes[p]
	if !ok {
		return 0, fmt.Errorf("%w: unknown position effect %q", ErrSerialization, string(p))
	}
	return c, nil
}

func ParsePositionEffect(s string) (PositionEffect, error) {
	switch strings.ToLower(s) {
	case "open":
		return Open, nil
	case "close":
		return Close, nil
	default:
		return "", fmt.Errorf("%w: unknown position effect %q", ErrInvalidOrder, s)
	}
}

// MarginMode is Cross (collateral shared across positions) or Isolated
type MarginMode string

const (
	Cross    MarginMode = "cross"
	Isolated MarginMode = "isolated"
)

var marginModeCodes = map[MarginMode]uint8{
	Cross:    0,
	Isolated: 1,
}

func (m MarginMode) Code() (uint8, error) {
	c, ok := marginModeCodes[m]
	if !ok {
		return 0, fmt.Errorf("%w: unknown margin mode %q", ErrSerialization, string(m))
	}
	return c, nil
}

func ParseMarginMode(s string) (MarginMode, error) {
	switch strings.ToLower(s) {
	case "cross":
		return Cross, nil
	case "isolated":
		return Isolated, nil
	default:
		return "", fmt.Errorf("%w: unknown margin mode %q", ErrInvalidOrder, s)
	}
}

// IntentKind is the signing category of an intent. It selects the
// domain-separation prefix, the transaction id prefix and the payload "type".
type IntentKind string

const (
	KindOrder  IntentKind = "order"
	KindCancel IntentKind = "cancel"
)
