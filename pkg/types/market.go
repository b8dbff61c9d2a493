package types

import "math/big"

// REST response types of the rollup node. They are consumed as-is; only the
// decimals and mints of MarketInfo feed the signing path.

// Default token mints
const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// Testnet token mints
	TestnetSOL  = "11111111111111111111111111111112"
	TestnetUSDC = "11111111111111111111111111111113"
)

// MarketInfo describes a tradeable market
type MarketInfo struct {
	UUID          string   `json:"uuid"`
	BaseMint      string   `json:"base_mint"`
	QuoteMint     string   `json:"quote_mint"`
	Name          string   `json:"name"`       // e.g. "SOL-PERP"
	CreatedAt     uint64   `json:"created_at"` // unix seconds
	Kind          string   `json:"kind"`       // "perp", "spot"
	BaseDecimals  uint8    `json:"base_decimals"`
	QuoteDecimals uint8    `json:"quote_decimals"`
	BaseLotSize   uint64   `json:"base_lot_size"`
	QuoteLotSize  uint64   `json:"quote_lot_size"`
	PriceDecimals *uint8   `json:"price_decimals,omitempty"`
	OpenInterest  *big.Int `json:"open_interest,omitempty"` // signed 128-bit on the node
}

// OrderbookEntry is a single resting order
type OrderbookEntry struct {
	OrderID  uint64 `json:"order_id"`
	Owner    string `json:"owner"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
	Side     string `json:"side"`
	Expiry   uint64 `json:"expiry"`
}

type Orderbook struct {
	Buys  []OrderbookEntry `json:"buys"`
	Sells []OrderbookEntry `json:"sells"`
}

// Depth is a Binance-style [price, size] snapshot
type Depth struct {
	LastUpdateID uint64      `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type Trade struct {
	BuyerOwner  string `json:"buyer_owner"`
	SellerOwner string `json:"seller_owner"`
	Price       uint64 `json:"price"`
	Quantity    uint64 `json:"quantity"`
	Timestamp   uint64 `json:"timestamp"`
	BaseMint    string `json:"base_mint"`
	QuoteMint   string `json:"quote_mint"`
}

type FundingEvent struct {
	MarketID        string `json:"market_id"`
	Timestamp       uint64 `json:"timestamp"`
	IntervalSeconds uint64 `json:"interval_seconds"`
	MarkPrice       uint64 `json:"mark_price"`
	IndexPrice      uint64 `json:"index_price"`
	PremiumRateBps  int64  `json:"premium_rate_bps"`
	FundingRateBps  int64  `json:"funding_rate_bps"`
	TotalPayment    string `json:"total_payment"`
}

// Position amounts are decimal strings as reported by the node
type Position struct {
	Owner             string  `json:"owner"`
	MarketID          string  `json:"market_id"`
	MarketName        *string `json:"market_name,omitempty"`
	BasePosition      string  `json:"base_position"`
	AverageEntryPrice string  `json:"average_entry_price"`
	MarkPrice         string  `json:"mark_price"`
	RealizedPnL       string  `json:"realized_pnl"`
	UnrealizedPnL     string  `json:"unrealized_pnl"`
	CumulativeFunding *string `json:"cumulative_funding,omitempty"`
}

type OpenOrder struct {
	OrderID    uint64  `json:"order_id"`
	MarketID   string  `json:"market_id"`
	MarketName *string `json:"market_name,omitempty"`
	Owner      string  `json:"owner"`
	Side       string  `json:"side"`
	Price      uint64  `json:"price"`
	Quantity   uint64  `json:"quantity"`
	Expiry     uint64  `json:"expiry"`
	Timestamp  *uint64 `json:"timestamp,omitempty"`
}

// AccountSummary carries collateral and margin snapshots
type AccountSummary struct {
	Owner                       *string  `json:"owner,omitempty"`
	USDCCollateral              float64  `json:"usdc_collateral"`
	EquitySnapshot              *float64 `json:"equity_snapshot,omitempty"`
	RealizedPnLSnapshot         *float64 `json:"realized_pnl_snapshot,omitempty"`
	UnrealizedPnLSnapshot       *float64 `json:"unrealized_pnl_snapshot,omitempty"`
	InitialMarginSnapshot       *float64 `json:"initial_margin_snapshot,omitempty"`
	MaintenanceMarginSnapshot   *float64 `json:"maintenance_margin_snapshot,omitempty"`
	FreeCollateralSnapshot      *float64 `json:"free_collateral_snapshot,omitempty"`
	AvailableWithdrawalSnapshot *float64 `json:"available_withdrawal_snapshot,omitempty"`
}

// Balances maps token mint to balance
type Balances map[string]TokenBalance

type TokenBalance struct {
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
}

// NodeStatus is the rollup node's /status response
type NodeStatus struct {
	BlockHeight    uint64 `json:"block_height"`
	AppliedBatches uint64 `json:"applied_batches"`
}
