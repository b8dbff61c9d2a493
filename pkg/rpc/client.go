// Package rpc reads market and account data from the rollup node's REST API.
// Responses are decoded as-is; nothing here touches the signing path.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

const DefaultTimeout = 10 * time.Second

// Client is the REST client for a Fermi rollup node
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.log = logger }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the node URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// statusError is a non-2xx response
type statusError struct {
	op   string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: failed to fetch %s: HTTP %d", types.ErrRPC, e.op, e.code)
}

func (e *statusError) Unwrap() error { return types.ErrRPC }

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request: %v", types.ErrRPC, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRPC, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", types.ErrRPC, method, path, err)
	}
	return resp, nil
}

// getJSON fetches path and decodes a 2xx body into out
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("rpc_request_failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &statusError{op: op, code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", types.ErrRPC, op, err)
	}
	return nil
}

// ListMarkets returns all markets
func (c *Client) ListMarkets(ctx context.Context) ([]types.MarketInfo, error) {
	var markets []types.MarketInfo
	if err := c.getJSON(ctx, "markets", "/markets", &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetMarket finds a market by uuid in the full list
func (c *Client) GetMarket(ctx context.Context, marketID string) (*types.MarketInfo, error) {
	markets, err := c.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if markets[i].UUID == marketID {
			return &markets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: market %s", types.ErrNotFound, marketID)
}

// getMarketResource fetches /markets/{id}/{leaf}. A 4xx there means the market is unknown.
func (c *Client) getMarketResource(ctx context.Context, marketID, leaf string, out any) error {
	path := fmt.Sprintf("/markets/%s/%s", url.PathEscape(marketID), leaf)
	err := c.getJSON(ctx, leaf, path, out)
	if isClientError(err) {
		return fmt.Errorf("%w: market %s", types.ErrNotFound, marketID)
	}
	return err
}

func (c *Client) GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	var ob types.Orderbook
	if err := c.getMarketResource(ctx, marketID, "orderbook", &ob); err != nil {
		return nil, err
	}
	return &ob, nil
}

func (c *Client) GetDepth(ctx context.Context, marketID string) (*types.Depth, error) {
	var depth types.Depth
	if err := c.getMarketResource(ctx, marketID, "depth", &depth); err != nil {
		return nil, err
	}
	return &depth, nil
}

func (c *Client) GetTrades(ctx context.Context, marketID string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := c.getMarketResource(ctx, marketID, "trades", &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func (c *Client) GetFunding(ctx context.Context, marketID string) ([]types.FundingEvent, error) {
	var events []types.FundingEvent
	if err := c.getMarketResource(ctx, marketID, "funding", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetAccount returns the account summary. An unknown account (4xx) yields
// an empty summary for that owner.
func (c *Client) GetAccount(ctx context.Context, owner string) (*types.AccountSummary, error) {
	var acc types.AccountSummary
	err := c.getJSON(ctx, "account", "/accounts/"+url.PathEscape(owner), &acc)
	if isClientError(err) {
		return &types.AccountSummary{Owner: &owner}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetBalances returns token balances keyed by mint; empty when the owner
// has none yet
func (c *Client) GetBalances(ctx context.Context, owner string) (types.Balances, error) {
	balances := types.Balances{}
	err := c.getJSON(ctx, "balances", "/balances/"+url.PathEscape(owner), &balances)
	if isClientError(err) {
		return types.Balances{}, nil
	}
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// GetPositions lists positions, filtered by owner when owner is non-empty
func (c *Client) GetPositions(ctx context.Context, owner string) ([]types.Position, error) {
	path := "/positions"
	if owner != "" {
		path += "?" + url.Values{"owner": {owner}}.Encode()
	}
	var positions []types.Position
	if err := c.getJSON(ctx, "positions", path, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetUserOrders lists an owner's open orders
func (c *Client) GetUserOrders(ctx context.Context, owner string) ([]types.OpenOrder, error) {
	var orders []types.OpenOrder
	if err := c.getJSON(ctx, "user orders", "/orders/user/"+url.PathEscape(owner), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetStatus returns the node's status
func (c *Client) GetStatus(ctx context.Context) (*types.NodeStatus, error) {
	var st types.NodeStatus
	if err := c.getJSON(ctx, "status", "/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

type airdropRequest struct {
	Recipient string `json:"recipient"`
	TokenMint string `json:"token_mint"`
	Amount    uint64 `json:"amount"`
}

type airdropResponse struct {
	Success *bool   `json:"success"`
	Error   *string `json:"error"`
}

// Airdrop requests testnet tokens. amount is in the token's base units.
func (c *Client) Airdrop(ctx context.Context, recipient, tokenMint string, amount uint64) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/airdrop", airdropRequest{
		Recipient: recipient,
		TokenMint: tokenMint,
		Amount:    amount,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body airdropResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		msg := "Failed to parse response"
		body.Error = &msg
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if body.Error != nil {
			return fmt.Errorf("%w: %s", types.ErrAirdrop, *body.Error)
		}
		return fmt.Errorf("%w: HTTP %d", types.ErrAirdrop, resp.StatusCode)
	}
	if body.Error != nil {
		return fmt.Errorf("%w: %s", types.ErrAirdrop, *body.Error)
	}

	c.log.Info("airdrop_requested",
		zap.String("recipient", recipient),
		zap.String("token_mint", tokenMint),
		zap.Uint64("amount", amount))
	return nil
}
