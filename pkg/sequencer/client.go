package sequencer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/uhyunpark/fermitrade/pkg/transaction"
	"github.com/uhyunpark/fermitrade/pkg/types"
)

const DefaultConnectTimeout = 10 * time.Second

// Client submits envelopes to a Continuum sequencer over one shared gRPC
// channel. Calls are serialized: at most one RPC is in flight per client,
// and a caller's context also bounds its wait for that slot.
type Client struct {
	inflight chan struct{}

	mu       sync.Mutex // guards conn
	conn     *grpc.ClientConn
	endpoint string

	log            *zap.Logger
	dialOpts       []grpc.DialOption
	connectTimeout time.Duration
}

type Option func(*Client)

// WithDialOptions appends extra grpc dial options
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithConnectTimeout bounds how long Connect waits for the channel to be ready
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// ParseEndpoint turns http(s)://host[:port] into a grpc target and whether
// TLS is required
func ParseEndpoint(endpoint string) (target string, secure bool, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("%w: invalid endpoint %q: %v", types.ErrConnection, endpoint, err)
	}

	var port string
	switch u.Scheme {
	case "http":
		port = "80"
	case "https":
		port, secure = "443", true
	default:
		return "", false, fmt.Errorf("%w: invalid endpoint %q: scheme must be http or https", types.ErrConnection, endpoint)
	}
	if u.Hostname() == "" {
		return "", false, fmt.Errorf("%w: invalid endpoint %q: missing host", types.ErrConnection, endpoint)
	}
	if p := u.Port(); p != "" {
		port = p
	}

	return "passthrough:///" + net.JoinHostPort(u.Hostname(), port), secure, nil
}

// Connect opens the channel and waits until it is ready or the connect
// timeout elapses
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	c := &Client{
		inflight:       make(chan struct{}, 1),
		endpoint:       endpoint,
		log:            zap.NewNop(),
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	target, secure, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if secure {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	c.log.Info("sequencer_connecting", zap.String("endpoint", endpoint))

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, c.dialOpts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: connection failed: %v", types.ErrConnection, err)
	}

	if err := waitReady(ctx, conn, c.connectTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: connection failed: %v", types.ErrConnection, err)
	}

	c.conn = conn
	c.log.Info("sequencer_connected", zap.String("endpoint", endpoint))
	return c, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("channel shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("not ready after %s (last state %s)", timeout, state)
		}
	}
}

// Submit sends one envelope. There is no retry: a failed submission is
// returned to the caller as is.
func (c *Client) Submit(ctx context.Context, env *transaction.Envelope) (types.SubmissionResult, error) {
	req := &SubmitTransactionRequest{Transaction: &Transaction{
		TxID:      env.TxID,
		Payload:   env.Payload,
		Signature: env.Signature,
		PublicKey: env.PublicKey,
		Nonce:     env.Nonce,
		Timestamp: env.Timestamp,
	}}
	resp := &SubmitTransactionResponse{}

	c.log.Debug("submitting_transaction",
		zap.String("tx_id", env.TxID),
		zap.String("endpoint", c.endpoint))

	if err := c.invoke(ctx, SubmitTransactionMethod, req, resp, submissionError); err != nil {
		c.log.Warn("submission_failed", zap.String("tx_id", env.TxID), zap.Error(err))
		return types.SubmissionResult{}, err
	}

	c.log.Info("transaction_submitted",
		zap.String("tx_id", env.TxID),
		zap.Uint64("sequence_number", resp.SequenceNumber),
		zap.Uint64("expected_tick", resp.ExpectedTick),
		zap.String("tx_hash", resp.TxHash))

	return types.SubmissionResult{
		SequenceNumber: resp.SequenceNumber,
		ExpectedTick:   resp.ExpectedTick,
		TxHash:         resp.TxHash,
	}, nil
}

// Status queries the sequencer's aggregate counters
func (c *Client) Status(ctx context.Context) (types.SequencerStatus, error) {
	resp := &GetStatusResponse{}
	if err := c.invoke(ctx, GetStatusMethod, &GetStatusRequest{}, resp, statusError); err != nil {
		return types.SequencerStatus{}, err
	}
	return types.SequencerStatus{
		CurrentTick:           resp.CurrentTick,
		TotalTransactions:     resp.TotalTransactions,
		PendingTransactions:   resp.PendingTransactions,
		UptimeSeconds:         resp.UptimeSeconds,
		TransactionsPerSecond: resp.TransactionsPerSecond,
	}, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp Message, rejected func(*status.Status) error) error {
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", types.ErrConnection, ctx.Err())
	}
	defer func() { <-c.inflight }()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: client is closed", types.ErrConnection)
	}

	err := conn.Invoke(ctx, method, req, resp, grpc.ForceCodec(Codec{}))
	if err == nil {
		return nil
	}
	// The caller gave up; nothing was rejected remotely
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", types.ErrConnection, ctxErr)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", types.ErrConnection, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%w: %s", types.ErrConnection, st.Message())
	}
	return rejected(st)
}

// submissionError is the sequencer refusing a transaction
func submissionError(st *status.Status) error {
	return &types.SubmissionError{Code: st.Code().String(), Message: st.Message()}
}

func statusError(st *status.Status) error {
	return fmt.Errorf("%w: sequencer status: %s: %s", types.ErrRPC, st.Code(), st.Message())
}

// Close releases the channel. An RPC in flight and any later call fail with
// ErrConnection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
