package types

// OrderIntent is the signed form of a perp order. Field order mirrors the
// canonical binary layout.
type OrderIntent struct {
	OrderID        uint64
	Owner          Pubkey
	Side           Side
	Price          uint64 // quote units
	Quantity       uint64 // base units
	Expiry         uint64 // unix seconds
	BaseMint       Pubkey
	QuoteMint      Pubkey
	MarketKind     MarketKind
	Leverage       Option[uint64]
	PositionEffect Option[PositionEffect]
	ReduceOnly     bool
	MarginMode     Option[MarginMode]
	MarginAmount   Option[uint64] // collateral units
	Liquidation    bool           // always false for user orders
}

// CancelIntent identifies an order to cancel
type CancelIntent struct {
	OrderID   uint64
	Owner     Pubkey
	BaseMint  Pubkey
	QuoteMint Pubkey
}

// PerpOrder is a perpetual order in human units, as placed through the client
type PerpOrder struct {
	Side           Side
	Price          float64
	Quantity       float64
	Leverage       uint64
	PositionEffect PositionEffect
	MarginMode     MarginMode
	ReduceOnly     bool
}

// DefaultPerpOrder returns a 1x cross-margin opening buy with zero size
func DefaultPerpOrder() PerpOrder {
	return PerpOrder{
		Side:           Buy,
		Leverage:       1,
		PositionEffect: Open,
		MarginMode:     Cross,
	}
}

// SubmissionResult is what the sequencer assigns to an accepted transaction
type SubmissionResult struct {
	SequenceNumber uint64 `json:"sequence_number"`
	ExpectedTick   uint64 `json:"expected_tick"`
	TxHash         string `json:"tx_hash"`
}

// OrderResult is the outcome of placing an order
type OrderResult struct {
	OrderID uint64 `json:"order_id"`
	SubmissionResult
}

// CancelResult is the outcome of cancelling an order
type CancelResult struct {
	OrderID uint64 `json:"order_id"`
	SubmissionResult
}

// SequencerStatus holds aggregate counters reported by the sequencer
type SequencerStatus struct {
	CurrentTick           uint64  `json:"current_tick"`
	TotalTransactions     uint64  `json:"total_transactions"`
	PendingTransactions   uint64  `json:"pending_transactions"`
	UptimeSeconds         uint64  `json:"uptime_seconds"`
	TransactionsPerSecond float64 `json:"transactions_per_second"`
}
