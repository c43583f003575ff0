package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/store"
)

// session is an open database with an engine over it. The engine's clock
// starts at the persisted block height.
type session struct {
	ctx    context.Context
	opts   *RootOptions
	store  *store.Store
	clock  *exchange.ManualClock
	engine *exchange.Engine
	log    *slog.Logger
	out    *OutputFormatter
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	out := newFormatter(cmd, opts)

	log.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	height, err := st.BlockHeight(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read block height", err)
	}
	clock := exchange.NewManualClock(height)

	sink, err := exchange.NewRewardSink(cfg.RewardMode, st, st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create reward sink", err)
	}
	eng, err := exchange.New(st, clock, st, sink, cfg.Params(),
		exchange.WithLogger(log),
		exchange.WithChallengeGate(st),
	)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	return &session{
		ctx:    ctx,
		opts:   opts,
		store:  st,
		clock:  clock,
		engine: eng,
		log:    log,
		out:    out,
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("error closing database", "error", err)
	}
}

// reject reports an exchange rejection in the configured format and turns
// it into an ExitFailure. Other errors pass through unchanged.
func (s *session) reject(err error) error {
	code := exchange.CodeOf(err)
	if code == "" {
		return err
	}
	var details map[string]string
	var ee *exchange.ExchangeError
	if errors.As(err, &ee) {
		details = map[string]string{"era": ee.Era.String()}
		if ee.Account != nil {
			details["account"] = ee.Account.Hex()
		}
	}
	if outErr := s.out.Error(string(code), err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "request rejected", err)
}

func parseAccount(raw string) (model.AccountID, error) {
	if !common.IsHexAddress(raw) {
		return model.AccountID{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid account %q: expected a 20-byte hex address", raw))
	}
	return common.HexToAddress(raw), nil
}

func parseUint(name, raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: expected an unsigned integer", name, raw))
	}
	return v, nil
}
