// Package httpapi serves a read-only JSON view of the persisted exchange
// state.
//
// Routes:
//
//	GET /state                   block height, current era, last settled era
//	GET /eras/{era}/round        ranked round of an era
//	GET /eras/{era}/payouts      payout journal of an era
//	GET /accounts/{account}      point and token balance of an account
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// StateReader is the read side of the store consumed by the API.
type StateReader interface {
	BlockHeight(ctx context.Context) (idx.Block, error)
	LastSettledEra(ctx context.Context) (model.Era, bool, error)
	Round(ctx context.Context, era model.Era) (model.Round, bool, error)
	RefreshMarker(ctx context.Context, era model.Era) (idx.Block, bool, error)
	Payouts(ctx context.Context, era model.Era) ([]model.Payout, error)
	IsChallenged(ctx context.Context, era model.Era) (bool, error)
	TotalPoints(ctx context.Context, account model.AccountID) (model.PointAmount, error)
	TokenBalance(ctx context.Context, account model.AccountID) (model.TokenAmount, error)
}

// Server runs the inspection API until its context is cancelled.
type Server struct {
	done chan struct{}
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Listener net.Listener

	State StateReader

	// EraLength converts the stored block height into the current era.
	EraLength uint64
}

// NewServer starts serving on cfg.Listener. The server closes when ctx is
// cancelled.
func NewServer(ctx context.Context, log *slog.Logger, cfg ServerConfig) *Server {
	srv := &http.Server{
		Handler: NewHandler(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s := &Server{
		done: make(chan struct{}),
	}
	go s.serve(log, cfg.Listener, srv)
	go s.waitForShutdown(ctx, srv)

	return s
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	<-s.done
}

func (s *Server) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-s.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (s *Server) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(s.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

// NewHandler returns the API router.
func NewHandler(log *slog.Logger, cfg ServerConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/state", handleState(log, cfg)).Methods("GET")
	r.HandleFunc("/eras/{era}/round", handleRound(log, cfg)).Methods("GET")
	r.HandleFunc("/eras/{era}/payouts", handlePayouts(log, cfg)).Methods("GET")
	r.HandleFunc("/accounts/{account}", handleAccount(log, cfg)).Methods("GET")

	return r
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	BlockHeight    idx.Block  `json:"block_height"`
	CurrentEra     model.Era  `json:"current_era"`
	LastSettledEra *model.Era `json:"last_settled_era,omitempty"`
}

func handleState(log *slog.Logger, cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		height, err := cfg.State.BlockHeight(ctx)
		if err != nil {
			internalError(w, log, err)
			return
		}
		clock := exchange.NewEraClock(exchange.NewManualClock(height), cfg.EraLength)
		resp := StateResponse{BlockHeight: height, CurrentEra: clock.CurrentEra()}

		last, ok, err := cfg.State.LastSettledEra(ctx)
		if err != nil {
			internalError(w, log, err)
			return
		}
		if ok {
			resp.LastSettledEra = &last
		}

		writeJSON(w, log, resp)
	}
}

// RoundResponse is the body of GET /eras/{era}/round.
// LastRefresh is the block at which entry points were last re-read.
type RoundResponse struct {
	model.RoundView
	Challenged  bool       `json:"challenged"`
	LastRefresh *idx.Block `json:"last_refresh,omitempty"`
}

func handleRound(log *slog.Logger, cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		era, ok := eraParam(w, req)
		if !ok {
			return
		}
		ctx := req.Context()

		round, found, err := cfg.State.Round(ctx, era)
		if err != nil {
			internalError(w, log, err)
			return
		}
		if !found {
			http.Error(w, fmt.Sprintf("no round for era %d", era), http.StatusNotFound)
			return
		}
		challenged, err := cfg.State.IsChallenged(ctx, era)
		if err != nil {
			internalError(w, log, err)
			return
		}

		resp := RoundResponse{RoundView: model.NewRoundView(era, round), Challenged: challenged}
		marker, ok, err := cfg.State.RefreshMarker(ctx, era)
		if err != nil {
			internalError(w, log, err)
			return
		}
		if ok {
			resp.LastRefresh = &marker
		}
		writeJSON(w, log, resp)
	}
}

func handlePayouts(log *slog.Logger, cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		era, ok := eraParam(w, req)
		if !ok {
			return
		}

		payouts, err := cfg.State.Payouts(req.Context(), era)
		if err != nil {
			internalError(w, log, err)
			return
		}

		writeJSON(w, log, payouts)
	}
}

// AccountResponse is the body of GET /accounts/{account}.
type AccountResponse struct {
	Account model.AccountID   `json:"account"`
	Points  model.PointAmount `json:"points"`
	Tokens  model.TokenAmount `json:"tokens"`
}

func handleAccount(log *slog.Logger, cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw := mux.Vars(req)["account"]
		if !common.IsHexAddress(raw) {
			http.Error(w, fmt.Sprintf("invalid account %q", raw), http.StatusBadRequest)
			return
		}
		account := common.HexToAddress(raw)
		ctx := req.Context()

		points, err := cfg.State.TotalPoints(ctx, account)
		if err != nil {
			internalError(w, log, err)
			return
		}
		tokens, err := cfg.State.TokenBalance(ctx, account)
		if err != nil {
			internalError(w, log, err)
			return
		}

		writeJSON(w, log, AccountResponse{Account: account, Points: points, Tokens: tokens})
	}
}

func eraParam(w http.ResponseWriter, req *http.Request) (model.Era, bool) {
	raw := mux.Vars(req)["era"]
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid era %q", raw), http.StatusBadRequest)
		return 0, false
	}
	return model.Era(v), true
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to marshal response", "err", err)
	}
}

func internalError(w http.ResponseWriter, log *slog.Logger, err error) {
	log.Warn("Inspection request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
