package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/fermitrade/params"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/rpc"
	"github.com/uhyunpark/fermitrade/pkg/transaction"
	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

type fakeSubmitter struct {
	mu        sync.Mutex
	envelopes []*transaction.Envelope
	err       error
	closeErr  error
	closed    bool
}

func (f *fakeSubmitter) Submit(_ context.Context, env *transaction.Envelope) (types.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.SubmissionResult{}, f.err
	}
	f.envelopes = append(f.envelopes, env)
	return types.SubmissionResult{
		SequenceNumber: uint64(len(f.envelopes)),
		ExpectedTick:   500,
		TxHash:         "0xhash_" + env.TxID,
	}, nil
}

func (f *fakeSubmitter) Status(context.Context) (types.SequencerStatus, error) {
	return types.SequencerStatus{CurrentTick: 500, TotalTransactions: 3}, nil
}

func (f *fakeSubmitter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeSubmitter) last(t *testing.T) *transaction.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.envelopes)
	return f.envelopes[len(f.envelopes)-1]
}

type airdropCall struct {
	Recipient string `json:"recipient"`
	TokenMint string `json:"token_mint"`
	Amount    uint64 `json:"amount"`
}

type testNode struct {
	*httptest.Server
	mu         sync.Mutex
	airdrops   []airdropCall
	owners     []string
	marketHits int
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	node := &testNode{}

	r := mux.NewRouter()
	r.HandleFunc("/markets", func(w http.ResponseWriter, _ *http.Request) {
		node.mu.Lock()
		node.marketHits++
		node.mu.Unlock()
		json.NewEncoder(w).Encode([]types.MarketInfo{{
			UUID:          "sol-perp",
			Name:          "SOL-PERP",
			Kind:          "perp",
			BaseMint:      types.TestnetSOL,
			QuoteMint:     types.TestnetUSDC,
			BaseDecimals:  9,
			QuoteDecimals: 6,
		}})
	})
	r.HandleFunc("/positions", func(w http.ResponseWriter, req *http.Request) {
		node.mu.Lock()
		node.owners = append(node.owners, req.URL.Query().Get("owner"))
		node.mu.Unlock()
		w.Write([]byte("[]"))
	})
	r.HandleFunc("/airdrop", func(w http.ResponseWriter, req *http.Request) {
		var call airdropCall
		json.NewDecoder(req.Body).Decode(&call)
		node.mu.Lock()
		node.airdrops = append(node.airdrops, call)
		node.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	}).Methods(http.MethodPost)

	node.Server = httptest.NewServer(r)
	t.Cleanup(node.Close)
	return node
}

var testInstant = time.Unix(1_700_000_000, 0)

func newTestClient(t *testing.T, opts ...Option) (*FermiClient, *fakeSubmitter, *testNode) {
	t.Helper()

	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	node := newTestNode(t)
	sub := &fakeSubmitter{}

	cfg := params.Default()
	cfg.Node.Endpoint = node.URL

	base := []Option{
		WithSubmitter(sub),
		WithReader(rpc.NewClient(node.URL)),
		WithClock(util.NewFixedClock(testInstant)),
		WithSelfVerify(),
	}
	c, err := New(context.Background(), kp, cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, sub, node
}

// envelopeIntent pulls the order request back out of an envelope payload
func envelopeIntent(t *testing.T, env *transaction.Envelope) *transaction.SignedOrderRequest {
	t.Helper()
	body := strings.TrimPrefix(string(env.Payload), transaction.PayloadPrefix)
	req, err := transaction.ParseOrderRequest([]byte(body))
	require.NoError(t, err)
	return req
}

func TestPlacePerpOrder(t *testing.T) {
	c, sub, _ := newTestClient(t)

	order := types.DefaultPerpOrder()
	order.Price = 185.50
	order.Quantity = 0.1
	order.Leverage = 10

	res, err := c.PlacePerpOrder(context.Background(), "sol-perp", order)
	require.NoError(t, err)

	wantID := uint64(testInstant.UnixMicro())
	assert.Equal(t, wantID, res.OrderID)
	assert.Equal(t, uint64(1), res.SequenceNumber)
	assert.Equal(t, uint64(500), res.ExpectedTick)

	env := sub.last(t)
	assert.Equal(t, "frm_order_1700000000000000_1700000000000000", env.TxID)
	assert.Equal(t, wantID, env.Nonce)
	assert.Equal(t, c.Pubkey().Bytes(), env.PublicKey)
	assert.Equal(t, "0xhash_"+env.TxID, res.TxHash)

	req := envelopeIntent(t, env)
	intent := req.Intent
	assert.Equal(t, wantID, intent.OrderID)
	assert.Equal(t, uint64(185_500_000), intent.Price)
	assert.Equal(t, uint64(100_000_000), intent.Quantity)
	assert.Equal(t, uint64(1_700_003_600), intent.Expiry)
	assert.Equal(t, "perp", intent.MarketKind)
	assert.Equal(t, "Buy", intent.Side)
	require.NotNil(t, intent.MarginAmount)
	assert.Equal(t, uint64(1_855_000), *intent.MarginAmount)
	require.NotNil(t, intent.Leverage)
	assert.Equal(t, uint64(10), *intent.Leverage)
	assert.Equal(t, "open", *intent.PositionEffect)
	assert.Equal(t, "cross", *intent.MarginMode)

	// Signature in the payload verifies against the envelope's key
	owner, ok, err := transaction.NewVerifier().VerifyOrderRequest(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, c.Pubkey(), owner)
}

func TestPlacePerpOrderZeroLeverage(t *testing.T) {
	c, sub, _ := newTestClient(t)

	order := types.DefaultPerpOrder()
	order.Price = 100
	order.Quantity = 1
	order.Leverage = 0

	_, err := c.PlacePerpOrder(context.Background(), "sol-perp", order)
	assert.True(t, errors.Is(err, types.ErrInvalidOrder))
	assert.Empty(t, sub.envelopes)
}

func TestPlacePerpOrderUnknownMarket(t *testing.T) {
	c, sub, _ := newTestClient(t)

	_, err := c.PlacePerpOrder(context.Background(), "doge-perp", types.DefaultPerpOrder())
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Empty(t, sub.envelopes)
}

func TestPlacePerpOrderNegativePrice(t *testing.T) {
	c, _, _ := newTestClient(t)

	order := types.DefaultPerpOrder()
	order.Price = -1
	order.Quantity = 1
	_, err := c.PlacePerpOrder(context.Background(), "sol-perp", order)
	assert.True(t, errors.Is(err, types.ErrDecimalConversion))
}

func TestPlacePerpOrderRejected(t *testing.T) {
	c, sub, _ := newTestClient(t)
	sub.err = &types.SubmissionError{Code: "InvalidArgument", Message: "expired"}

	order := types.DefaultPerpOrder()
	order.Price = 100
	order.Quantity = 1
	_, err := c.PlacePerpOrder(context.Background(), "sol-perp", order)
	assert.True(t, errors.Is(err, types.ErrSubmission))
}

func TestCancelOrder(t *testing.T) {
	c, sub, _ := newTestClient(t)

	res, err := c.CancelOrder(context.Background(), "sol-perp", 12345)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), res.OrderID)

	env := sub.last(t)
	assert.Equal(t, "frm_cancel_12345_1700000000000000", env.TxID)
	assert.Equal(t, uint64(12345), env.Nonce)

	body := strings.TrimPrefix(string(env.Payload), transaction.PayloadPrefix)
	req, err := transaction.ParseCancelRequest([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, types.TestnetSOL, req.BaseMint)
	assert.Equal(t, types.TestnetUSDC, req.QuoteMint)
	assert.Contains(t, body, `"type":"cancel"`)

	_, ok, err := transaction.NewVerifier().VerifyCancelRequest(req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelSignatureDiffersFromOrder(t *testing.T) {
	c, sub, _ := newTestClient(t)
	ctx := context.Background()

	order := types.DefaultPerpOrder()
	order.Price = 185.5
	order.Quantity = 1
	order.Leverage = 10
	placed, err := c.PlacePerpOrder(ctx, "sol-perp", order)
	require.NoError(t, err)
	orderEnv := sub.last(t)

	_, err = c.CancelOrder(ctx, "sol-perp", placed.OrderID)
	require.NoError(t, err)
	cancelEnv := sub.last(t)

	assert.NotEqual(t, orderEnv.Signature, cancelEnv.Signature)
}

func TestAirdrop(t *testing.T) {
	c, _, node := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Airdrop(ctx, 1000.0))
	require.NoError(t, c.AirdropTo(ctx, "recipient", types.TestnetSOL, 5))

	node.mu.Lock()
	defer node.mu.Unlock()
	require.Len(t, node.airdrops, 2)
	assert.Equal(t, airdropCall{Recipient: c.PubkeyString(), TokenMint: types.TestnetUSDC, Amount: 1_000_000_000}, node.airdrops[0])
	assert.Equal(t, airdropCall{Recipient: "recipient", TokenMint: types.TestnetSOL, Amount: 5}, node.airdrops[1])
}

func TestReadsUseOwnPubkey(t *testing.T) {
	c, _, node := newTestClient(t)
	ctx := context.Background()

	_, err := c.Positions(ctx)
	require.NoError(t, err)
	_, err = c.AllPositions(ctx)
	require.NoError(t, err)

	node.mu.Lock()
	assert.Equal(t, []string{c.PubkeyString(), ""}, node.owners)
	node.mu.Unlock()

	markets, err := c.Markets(ctx)
	require.NoError(t, err)
	assert.Len(t, markets, 1)

	st, err := c.SequencerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), st.CurrentTick)
}

func TestCloseCombinesErrors(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	node := newTestNode(t)

	cfg := params.Default()
	cfg.Node.Endpoint = node.URL
	cfg.MarketCache.Dir = t.TempDir()

	sub := &fakeSubmitter{closeErr: errors.New("channel already closed")}
	c, err := New(context.Background(), kp, cfg, WithSubmitter(sub))
	require.NoError(t, err)

	// Populate the persistent cache
	_, err = c.Market(context.Background(), "sol-perp")
	require.NoError(t, err)

	err = c.Close()
	assert.ErrorContains(t, err, "channel already closed")
	assert.True(t, sub.closed)
}

func TestNewRejectsBadConfig(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	cfg := params.Default()
	cfg.Sequencer.Endpoint = ""
	_, err = New(context.Background(), kp, cfg, WithSubmitter(&fakeSubmitter{}))
	assert.True(t, errors.Is(err, types.ErrConfig))
}

func TestNewFailsWithoutSequencer(t *testing.T) {
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	cfg := params.Default()
	cfg.Sequencer.Endpoint = "ftp://nowhere"
	_, err = New(context.Background(), kp, cfg)
	assert.True(t, errors.Is(err, types.ErrConnection))
}

func TestMarketsServedFromRegistry(t *testing.T) {
	c, _, node := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		markets, err := c.Markets(ctx)
		require.NoError(t, err)
		require.Len(t, markets, 1)
		assert.Equal(t, "sol-perp", markets[0].UUID)
	}
	m, err := c.Market(ctx, "sol-perp")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), m.BaseDecimals)

	// The clock is frozen inside the TTL, so one fetch serves everything
	node.mu.Lock()
	defer node.mu.Unlock()
	assert.Equal(t, 1, node.marketHits)
}
