// Package api is a local trading gateway. It holds one trading keypair and
// exposes order placement, cancels and a few reads over HTTP, with a
// WebSocket feed of accepted submissions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/pkg/storage"
	"github.com/uhyunpark/fermitrade/pkg/types"
)

// Trader is the part of the trading client the gateway drives
type Trader interface {
	PubkeyString() string
	Markets(ctx context.Context) ([]types.MarketInfo, error)
	Market(ctx context.Context, marketID string) (*types.MarketInfo, error)
	Account(ctx context.Context) (*types.AccountSummary, error)
	SequencerStatus(ctx context.Context) (types.SequencerStatus, error)
	PlacePerpOrder(ctx context.Context, marketID string, order types.PerpOrder) (*types.OrderResult, error)
	CancelOrder(ctx context.Context, marketID string, orderID uint64) (*types.CancelResult, error)
}

const shutdownTimeout = 5 * time.Second

// Server handles REST API and WebSocket connections
type Server struct {
	trader  Trader
	router  *mux.Router
	hub     *Hub
	journal storage.Journal
	cors    *cors.Cors
	origins []string
	log     *zap.Logger
}

type Option func(*Server)

// WithJournal records every accepted submission
func WithJournal(j storage.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// NewServer creates a gateway around trader. Browsers may only reach it from
// allowedOrigins.
func NewServer(trader Trader, allowedOrigins []string, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		trader:  trader,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		journal: storage.NewNopJournal(),
		cors: cors.New(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}),
		origins: allowedOrigins,
		log:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/account", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/sequencer/status", s.handleGetSequencerStatus).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Hub exposes the WebSocket hub; it must be running for /ws to accept
// connections
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router behind the request guard and CORS
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.guard(s.router))
}

// guard refuses any request whose Origin is outside the allowed list, and
// any POST that is not application/json. Only JSON writes force a browser
// preflight. An empty list admits no browser origin at all.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" && (len(s.origins) == 0 || !s.cors.OriginAllowed(r)) {
			respondError(w, http.StatusForbidden, "origin not allowed", r.Header.Get("Origin"))
			return
		}
		if r.Method == http.MethodPost {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				respondError(w, http.StatusUnsupportedMediaType, "content type must be application/json", r.Header.Get("Content-Type"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("gateway_stopped")
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.trader.Markets(r.Context())
	if err != nil {
		s.respondFailure(w, "list markets", err)
		return
	}
	respondJSON(w, markets)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	m, err := s.trader.Market(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get market", err)
		return
	}
	respondJSON(w, m)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.trader.Account(r.Context())
	if err != nil {
		s.respondFailure(w, "get account", err)
		return
	}
	respondJSON(w, AccountResponse{Pubkey: s.trader.PubkeyString(), Account: account})
}

func (s *Server) handleGetSequencerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.trader.SequencerStatus(r.Context())
	if err != nil {
		s.respondFailure(w, "sequencer status", err)
		return
	}
	respondJSON(w, st)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := req.toPerpOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	res, err := s.trader.PlacePerpOrder(r.Context(), req.MarketID, order)
	if err != nil {
		s.respondFailure(w, "place order", err)
		return
	}

	s.publish("ORDER_SUBMIT", SubmissionUpdate{
		Type:           "submission",
		Kind:           string(types.KindOrder),
		MarketID:       req.MarketID,
		OrderID:        res.OrderID,
		SequenceNumber: res.SequenceNumber,
		ExpectedTick:   res.ExpectedTick,
		TxHash:         res.TxHash,
		Timestamp:      time.Now().UnixMilli(),
	})

	respondJSON(w, res)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.MarketID == "" {
		respondError(w, http.StatusBadRequest, "missing market_id", "")
		return
	}

	res, err := s.trader.CancelOrder(r.Context(), req.MarketID, req.OrderID)
	if err != nil {
		s.respondFailure(w, "cancel order", err)
		return
	}

	s.publish("ORDER_CANCEL", SubmissionUpdate{
		Type:           "submission",
		Kind:           string(types.KindCancel),
		MarketID:       req.MarketID,
		OrderID:        res.OrderID,
		SequenceNumber: res.SequenceNumber,
		ExpectedTick:   res.ExpectedTick,
		TxHash:         res.TxHash,
		Timestamp:      time.Now().UnixMilli(),
	})

	respondJSON(w, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// publish journals an accepted submission and pushes it to subscribers
func (s *Server) publish(event string, update SubmissionUpdate) {
	if err := s.journal.Append(event, update); err != nil {
		s.log.Warn("journal_append_failed", zap.String("event", event), zap.Error(err))
	}
	s.hub.BroadcastToChannel(SubmissionsChannel, update)
}

// toPerpOrder validates the request and fills defaults
func (req *PlaceOrderRequest) toPerpOrder() (types.PerpOrder, error) {
	order := types.DefaultPerpOrder()

	if req.MarketID == "" {
		return order, errors.New("missing market_id")
	}
	side, err := types.ParseSide(req.Side)
	if err != nil {
		return order, err
	}
	order.Side = side
	order.Price = req.Price
	order.Quantity = req.Quantity
	order.Leverage = req.Leverage
	order.ReduceOnly = req.ReduceOnly

	if req.PositionEffect != "" {
		if order.PositionEffect, err = types.ParsePositionEffect(req.PositionEffect); err != nil {
			return order, err
		}
	}
	if req.MarginMode != "" {
		if order.MarginMode, err = types.ParseMarginMode(req.MarginMode); err != nil {
			return order, err
		}
	}
	return order, nil
}

// ==============================
// Helper Functions
// ==============================

// statusFor maps client errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidOrder), errors.Is(err, types.ErrDecimalConversion):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSubmission):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("gateway_request_failed", zap.String("op", op), zap.Error(err))
	}
	respondError(w, status, fmt.Sprintf("%s failed", op), err.Error())
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
