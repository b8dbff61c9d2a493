package api

import "github.com/uhyunpark/fermitrade/pkg/types"

// Request and response bodies of the gateway

// PlaceOrderRequest is the payload for POST /api/v1/orders. Price and
// quantity are in human units; the gateway converts them using the market's
// decimals.
type PlaceOrderRequest struct {
	MarketID       string  `json:"market_id"`
	Side           string  `json:"side"` // "buy" or "sell"
	Price          float64 `json:"price"`
	Quantity       float64 `json:"quantity"`
	Leverage       uint64  `json:"leverage"`
	PositionEffect string  `json:"position_effect,omitempty"` // default "open"
	MarginMode     string  `json:"margin_mode,omitempty"`     // default "cross"
	ReduceOnly     bool    `json:"reduce_only"`
}

// CancelRequest is the payload for POST /api/v1/orders/cancel
type CancelRequest struct {
	MarketID string `json:"market_id"`
	OrderID  uint64 `json:"order_id"`
}

// AccountResponse pairs the gateway's trading identity with its summary
type AccountResponse struct {
	Pubkey  string                `json:"pubkey"`
	Account *types.AccountSummary `json:"account"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// SubmissionsChannel carries every accepted order and cancel
const SubmissionsChannel = "submissions"

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["submissions"]
}

// WSAck confirms a subscribe or unsubscribe
type WSAck struct {
	Type     string   `json:"type"` // "subscribed" or "unsubscribed"
	Channels []string `json:"channels"`
}

// SubmissionUpdate is broadcast after the sequencer accepts a transaction
type SubmissionUpdate struct {
	Type           string `json:"type"` // "submission"
	Kind           string `json:"kind"` // "order" or "cancel"
	MarketID       string `json:"market_id"`
	OrderID        uint64 `json:"order_id"`
	SequenceNumber uint64 `json:"sequence_number"`
	ExpectedTick   uint64 `json:"expected_tick"`
	TxHash         string `json:"tx_hash"`
	Timestamp      int64  `json:"timestamp"` // Unix milliseconds
}
