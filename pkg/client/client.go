// Package client is the trading facade: it turns human-unit perp orders into
// signed envelopes, submits them to the sequencer and passes reads through
// to the rollup node.
package client

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/params"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/market"
	"github.com/uhyunpark/fermitrade/pkg/rpc"
	"github.com/uhyunpark/fermitrade/pkg/sequencer"
	"github.com/uhyunpark/fermitrade/pkg/storage"
	"github.com/uhyunpark/fermitrade/pkg/transaction"
	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

// OrderTTLSeconds is how long a placed order stays valid
const OrderTTLSeconds = 3600

// Submitter delivers envelopes to the sequencer
type Submitter interface {
	Submit(ctx context.Context, env *transaction.Envelope) (types.SubmissionResult, error)
	Status(ctx context.Context) (types.SequencerStatus, error)
	Close() error
}

// Reader is the rollup node's REST surface
type Reader interface {
	ListMarkets(ctx context.Context) ([]types.MarketInfo, error)
	GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error)
	GetDepth(ctx context.Context, marketID string) (*types.Depth, error)
	GetTrades(ctx context.Context, marketID string) ([]types.Trade, error)
	GetFunding(ctx context.Context, marketID string) ([]types.FundingEvent, error)
	GetAccount(ctx context.Context, owner string) (*types.AccountSummary, error)
	GetBalances(ctx context.Context, owner string) (types.Balances, error)
	GetPositions(ctx context.Context, owner string) ([]types.Position, error)
	GetUserOrders(ctx context.Context, owner string) ([]types.OpenOrder, error)
	GetStatus(ctx context.Context) (*types.NodeStatus, error)
	Airdrop(ctx context.Context, recipient, tokenMint string, amount uint64) error
}

var (
	_ Submitter = (*sequencer.Client)(nil)
	_ Reader    = (*rpc.Client)(nil)
)

// FermiClient places and cancels perp orders for one keypair
type FermiClient struct {
	keypair  *crypto.TradingKeypair
	signer   *crypto.DigestSigner
	builder  *transaction.Builder
	verifier *transaction.Verifier

	submitter Submitter
	reader    Reader
	markets   *market.Registry
	cache     *storage.MarketStore

	clock util.Clock
	log   *zap.Logger
}

type options struct {
	logger        *zap.Logger
	clock         util.Clock
	submitter     Submitter
	reader        Reader
	sequencerOpts []sequencer.Option
	selfVerify    bool
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock used for order ids, expiries and timestamps
func WithClock(c util.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSubmitter uses s instead of dialing the configured sequencer
func WithSubmitter(s Submitter) Option {
	return func(o *options) { o.submitter = s }
}

// WithReader uses r instead of a REST client for the configured node
func WithReader(r Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithSequencerOptions passes extra options to the sequencer dial
func WithSequencerOptions(opts ...sequencer.Option) Option {
	return func(o *options) { o.sequencerOpts = append(o.sequencerOpts, opts...) }
}

// WithSelfVerify re-verifies every signature locally before submission
func WithSelfVerify() Option {
	return func(o *options) { o.selfVerify = true }
}

// New connects to the sequencer and prepares the REST client and market
// registry
func New(ctx context.Context, keypair *crypto.TradingKeypair, cfg params.Config, opts ...Option) (*FermiClient, error) {
	o := options{logger: zap.NewNop(), clock: util.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &FermiClient{
		keypair: keypair,
		signer:  crypto.NewDigestSigner(keypair, o.logger),
		builder: transaction.NewBuilder(o.clock, o.logger),
		reader:  o.reader,
		clock:   o.clock,
		log:     o.logger,
	}
	if o.selfVerify {
		c.verifier = transaction.NewVerifier()
	}

	if c.reader == nil {
		c.reader = rpc.NewClient(cfg.Node.Endpoint,
			rpc.WithTimeout(cfg.Node.Timeout),
			rpc.WithLogger(o.logger))
	}

	registryOpts := []market.Option{
		market.WithTTL(cfg.MarketCache.TTL),
		market.WithClock(o.clock),
		market.WithLogger(o.logger),
	}
	if cfg.MarketCache.Dir != "" {
		store, err := storage.OpenMarketStore(filepath.Join(cfg.MarketCache.Dir, "markets"))
		if err != nil {
			return nil, err
		}
		c.cache = store
		registryOpts = append(registryOpts, market.WithCache(store))
	}
	c.markets = market.NewRegistry(c.reader, registryOpts...)
	if err := c.markets.Load(); err != nil {
		c.log.Warn("market_cache_unreadable", zap.Error(err))
	}

	c.submitter = o.submitter
	if c.submitter == nil {
		seqOpts := append([]sequencer.Option{
			sequencer.WithLogger(o.logger),
			sequencer.WithConnectTimeout(cfg.Sequencer.ConnectTimeout),
		}, o.sequencerOpts...)
		sub, err := sequencer.Connect(ctx, cfg.Sequencer.Endpoint, seqOpts...)
		if err != nil {
			if c.cache != nil {
				err = multierr.Append(err, c.cache.Close())
			}
			return nil, err
		}
		c.submitter = sub
	}

	c.log.Info("client_initialized", zap.String("account", keypair.PubkeyString()))
	return c, nil
}

// Pubkey returns the trading account identity
func (c *FermiClient) Pubkey() types.Pubkey {
	return c.keypair.Pubkey()
}

func (c *FermiClient) PubkeyString() string {
	return c.keypair.PubkeyString()
}

// PlacePerpOrder converts the order to canonical units using the market's
// decimals, signs it and submits it. The order id is the current time in
// microseconds and the order expires an hour from now.
func (c *FermiClient) PlacePerpOrder(ctx context.Context, marketID string, order types.PerpOrder) (*types.OrderResult, error) {
	if order.Leverage == 0 {
		return nil, fmt.Errorf("%w: leverage must be at least 1", types.ErrInvalidOrder)
	}

	m, err := c.markets.Lookup(ctx, marketID)
	if err != nil {
		return nil, err
	}

	price, err := ToCanonical(order.Price, m.QuoteDecimals)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	quantity, err := ToCanonical(order.Quantity, m.BaseDecimals)
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	margin, err := CalculateMargin(order.Price, order.Quantity, order.Leverage)
	if err != nil {
		return nil, fmt.Errorf("margin: %w", err)
	}
	baseMint, quoteMint, err := market.ParseMints(m)
	if err != nil {
		return nil, err
	}

	// TODO: two orders in the same microsecond share an id. Add a per-client
	// counter once the sequencer's dedup rules are settled.
	orderID := util.NowMicros(c.clock)
	expiry := util.NowSeconds(c.clock) + OrderTTLSeconds

	signed, err := transaction.SignPerpOrder(c.signer, transaction.PerpOrderParams{
		OrderID:        orderID,
		Side:           order.Side,
		Price:          price,
		Quantity:       quantity,
		Expiry:         expiry,
		BaseMint:       baseMint,
		QuoteMint:      quoteMint,
		Leverage:       order.Leverage,
		PositionEffect: order.PositionEffect,
		MarginMode:     order.MarginMode,
		MarginAmount:   types.Some(margin),
		ReduceOnly:     order.ReduceOnly,
	})
	if err != nil {
		return nil, err
	}
	if c.verifier != nil {
		if err := c.verifier.VerifySignedOrder(signed); err != nil {
			return nil, err
		}
	}

	env, err := c.builder.BuildOrder(signed)
	if err != nil {
		return nil, err
	}

	c.log.Info("placing_perp_order",
		zap.String("market", marketID),
		zap.String("side", string(order.Side)),
		zap.Float64("price", order.Price),
		zap.Float64("quantity", order.Quantity),
		zap.Uint64("leverage", order.Leverage),
		zap.Uint64("order_id", orderID))

	res, err := c.submitter.Submit(ctx, env)
	if err != nil {
		return nil, err
	}

	c.log.Info("order_placed",
		zap.Uint64("order_id", orderID),
		zap.String("tx_hash", res.TxHash))

	return &types.OrderResult{OrderID: orderID, SubmissionResult: res}, nil
}

// CancelOrder signs and submits a cancel for orderID in marketID
func (c *FermiClient) CancelOrder(ctx context.Context, marketID string, orderID uint64) (*types.CancelResult, error) {
	baseMint, quoteMint, err := c.markets.Mints(ctx, marketID)
	if err != nil {
		return nil, err
	}

	signed, err := transaction.SignCancel(c.signer, orderID, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}
	if c.verifier != nil {
		if err := c.verifier.VerifySignedCancel(signed); err != nil {
			return nil, err
		}
	}

	env, err := c.builder.BuildCancel(signed)
	if err != nil {
		return nil, err
	}

	c.log.Info("cancelling_order", zap.String("market", marketID), zap.Uint64("order_id", orderID))

	res, err := c.submitter.Submit(ctx, env)
	if err != nil {
		return nil, err
	}

	c.log.Info("order_cancelled",
		zap.Uint64("order_id", orderID),
		zap.String("tx_hash", res.TxHash))

	return &types.CancelResult{OrderID: orderID, SubmissionResult: res}, nil
}

// Airdrop requests testnet USDC for this account. amount is in whole USDC.
func (c *FermiClient) Airdrop(ctx context.Context, amount float64) error {
	micro, err := ToCanonical(amount, MarginDecimals)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrAirdrop, err)
	}
	return c.reader.Airdrop(ctx, c.PubkeyString(), types.TestnetUSDC, micro)
}

// AirdropTo requests amount base units of tokenMint for recipient (testnet only)
func (c *FermiClient) AirdropTo(ctx context.Context, recipient, tokenMint string, amount uint64) error {
	return c.reader.Airdrop(ctx, recipient, tokenMint, amount)
}

// Markets lists all markets through the registry, refetching once the
// cached list is older than the TTL
func (c *FermiClient) Markets(ctx context.Context) ([]types.MarketInfo, error) {
	return c.markets.List(ctx)
}

// Market returns one market's metadata from the registry
func (c *FermiClient) Market(ctx context.Context, marketID string) (*types.MarketInfo, error) {
	return c.markets.Lookup(ctx, marketID)
}

func (c *FermiClient) Orderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	return c.reader.GetOrderbook(ctx, marketID)
}

func (c *FermiClient) Depth(ctx context.Context, marketID string) (*types.Depth, error) {
	return c.reader.GetDepth(ctx, marketID)
}

func (c *FermiClient) Trades(ctx context.Context, marketID string) ([]types.Trade, error) {
	return c.reader.GetTrades(ctx, marketID)
}

func (c *FermiClient) Funding(ctx context.Context, marketID string) ([]types.FundingEvent, error) {
	return c.reader.GetFunding(ctx, marketID)
}

// Positions returns this account's positions
func (c *FermiClient) Positions(ctx context.Context) ([]types.Position, error) {
	return c.reader.GetPositions(ctx, c.PubkeyString())
}

// AllPositions returns every account's positions
func (c *FermiClient) AllPositions(ctx context.Context) ([]types.Position, error) {
	return c.reader.GetPositions(ctx, "")
}

// MyOrders returns this account's open orders
func (c *FermiClient) MyOrders(ctx context.Context) ([]types.OpenOrder, error) {
	return c.reader.GetUserOrders(ctx, c.PubkeyString())
}

func (c *FermiClient) Account(ctx context.Context) (*types.AccountSummary, error) {
	return c.reader.GetAccount(ctx, c.PubkeyString())
}

func (c *FermiClient) Balances(ctx context.Context) (types.Balances, error) {
	return c.reader.GetBalances(ctx, c.PubkeyString())
}

func (c *FermiClient) NodeStatus(ctx context.Context) (*types.NodeStatus, error) {
	return c.reader.GetStatus(ctx)
}

func (c *FermiClient) SequencerStatus(ctx context.Context) (types.SequencerStatus, error) {
	return c.submitter.Status(ctx)
}

// Close releases the sequencer channel and the market cache
func (c *FermiClient) Close() error {
	var err error
	if c.submitter != nil {
		err = multierr.Append(err, c.submitter.Close())
	}
	if c.cache != nil {
		err = multierr.Append(err, c.cache.Close())
	}
	return err
}
