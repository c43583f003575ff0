package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// Default policy values.
const (
	DefaultEraLength      = 10
	DefaultMaxRewardCount = 3
	DefaultHistoryDepth   = 3
)

// Params is the engine configuration, fixed at construction.
type Params struct {
	// EraLength is the number of blocks per era.
	EraLength uint64

	// MaxRewardCount caps the number of applications per round.
	MaxRewardCount uint32

	// HistoryDepth is the number of settled eras kept before pruning.
	HistoryDepth uint32

	// Precision is the number of decimal digits of settlement proportions.
	Precision uint8

	// ResortOnRefresh re-ranks a round after its points are refreshed.
	ResortOnRefresh bool
}

// DefaultParams returns the observed production policy.
func DefaultParams() Params {
	return Params{
		EraLength:      DefaultEraLength,
		MaxRewardCount: DefaultMaxRewardCount,
		HistoryDepth:   DefaultHistoryDepth,
		Precision:      model.DefaultPrecision,
	}
}

// Validate checks that p can drive an engine.
func (p Params) Validate() error {
	var errs []error
	if p.EraLength == 0 {
		errs = append(errs, errors.New("era length must be positive"))
	}
	if p.MaxRewardCount == 0 {
		errs = append(errs, errors.New("max reward count must be positive"))
	}
	if p.HistoryDepth == 0 {
		errs = append(errs, errors.New("history depth must be positive"))
	}
	if p.Precision > model.MaxPrecision {
		errs = append(errs, fmt.Errorf("precision must be at most %d", model.MaxPrecision))
	}
	return errors.Join(errs...)
}

// Engine orchestrates application intake and round settlement.
//
// Each call runs to completion against the store before returning; the host
// must not interleave two calls against the same state. The block clock only
// advances between calls.
type Engine struct {
	store    StateStore
	clock    EraClock
	registry *Registry
	sink     RewardSink
	gate     ChallengeGate
	batches  BatchIDGenerator
	params   Params
	log      *slog.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithChallengeGate sets the dispute gate consulted before settlement.
// Default: NoChallenges.
func WithChallengeGate(gate ChallengeGate) Option {
	return func(e *Engine) {
		e.gate = gate
	}
}

// WithBatchIDGenerator sets the payout batch naming. Default: UUIDv7Generator.
func WithBatchIDGenerator(g BatchIDGenerator) Option {
	return func(e *Engine) {
		e.batches = g
	}
}

// New creates an Engine.
func New(store StateStore, clock Clock, points PointSource, sink RewardSink, params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if store == nil || clock == nil || points == nil || sink == nil {
		return nil, errors.New("store, clock, point source and reward sink are required")
	}

	e := &Engine{
		store:   store,
		clock:   NewEraClock(clock, params.EraLength),
		sink:    sink,
		gate:    NoChallenges{},
		batches: UUIDv7Generator{},
		params:  params,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = NewRegistry(points, e.clock, params.MaxRewardCount, params.ResortOnRefresh, e.log)
	return e, nil
}

// Clock returns the engine's era clock.
func (e *Engine) Clock() EraClock {
	return e.clock
}

// Params returns the engine configuration.
func (e *Engine) Params() Params {
	return e.params
}

// Apply admits account into the current era's round and returns that era.
func (e *Engine) Apply(ctx context.Context, account model.AccountID) (model.Era, error) {
	era := e.clock.CurrentEra()
	tx := NewTxn(e.store)
	if err := e.registry.Apply(ctx, tx, era, account); err != nil {
		if IsRejection(err) {
			e.log.Debug("application rejected", "era", era, "account", account.Hex(), "code", CodeOf(err))
		}
		return era, err
	}
	if err := tx.Commit(ctx); err != nil {
		return era, fmt.Errorf("apply era %d: %w", era, err)
	}
	return era, nil
}

// Refresh re-syncs the point snapshots of era's round and persists them.
// See Registry.Refresh for the return value.
func (e *Engine) Refresh(ctx context.Context, era model.Era) (bool, error) {
	tx := NewTxn(e.store)
	fresh, err := e.registry.Refresh(ctx, tx, era)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("refresh era %d: %w", era, err)
	}
	return fresh, nil
}

// Settlement is the outcome of a successful Settle call.
type Settlement struct {
	Era    model.Era         `json:"era"`
	Batch  string            `json:"batch"`
	Digest string            `json:"digest"`
	Mint   model.TokenAmount `json:"mint"`
	Round  model.Round       `json:"round"`
}

// Settle closes era and distributes mint across its ranked applicants.
//
// All checks run before anything is written; a rejected call leaves no
// trace. On success the frozen round, the new last settled era, the payout
// journal and history pruning are committed together, then each payout is
// handed to the reward sink. Sink failures are reported as *DeliveryError
// alongside the committed Settlement.
func (e *Engine) Settle(ctx context.Context, era model.Era, mint model.TokenAmount) (*Settlement, error) {
	current := e.clock.CurrentEra()
	if era >= current {
		return nil, newEraError(CodeEraNotEnded, era, "current era is %d", current)
	}

	tx := NewTxn(e.store)
	round, ok, err := tx.Round(ctx, era)
	if err != nil {
		return nil, err
	}
	if !ok || len(round) == 0 {
		return nil, newEraError(CodeEmptyRound, era, "no applications for era")
	}

	last, settledBefore, err := tx.LastSettledEra(ctx)
	if err != nil {
		return nil, err
	}
	if settledBefore && last >= era {
		return nil, newEraError(CodeAlreadySettled, era, "last settled era is %d", last)
	}

	challenged, err := e.gate.IsChallenged(ctx, era)
	if err != nil {
		return nil, fmt.Errorf("settle era %d: challenge gate: %w", era, err)
	}
	if challenged {
		return nil, newEraError(CodeEraChallenged, era, "era is under challenge")
	}

	if _, err := e.registry.Refresh(ctx, tx, era); err != nil {
		return nil, err
	}
	round, _, err = tx.Round(ctx, era)
	if err != nil {
		return nil, err
	}
	if round.IsSettled() {
		return nil, newEraError(CodeAlreadySettled, era, "round already carries settlement data")
	}

	settled, err := Distribute(era, round, mint, e.params.Precision)
	if err != nil {
		return nil, err
	}
	digest, err := model.SettlementDigest(era, settled)
	if err != nil {
		return nil, err
	}

	batch := e.batches.Generate()
	payouts := make([]model.Payout, len(settled))
	for i, app := range settled {
		payouts[i] = model.Payout{
			Batch:   batch,
			Era:     era,
			Account: app.Account,
			Amount:  app.Settlement.TakeToken,
		}
	}

	tx.PutRound(era, settled)
	tx.SetLastSettledEra(era)
	tx.AddPayouts(payouts...)
	if pruned, ok := e.pruneThrough(era); ok {
		tx.PruneThrough(pruned)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("settle era %d: %w", era, err)
	}

	e.log.Info("era settled",
		"era", era,
		"batch", batch,
		"mint", mint.String(),
		"entries", len(settled),
		"digest", digest,
	)

	result := &Settlement{Era: era, Batch: batch, Digest: digest, Mint: mint, Round: settled}
	if err := e.deliver(ctx, payouts); err != nil {
		return result, err
	}
	return result, nil
}

// pruneThrough returns the newest era that falls out of the retained history
// once era is settled.
func (e *Engine) pruneThrough(era model.Era) (model.Era, bool) {
	depth := model.Era(e.params.HistoryDepth)
	if era < depth {
		return 0, false
	}
	return era - depth, true
}

// DeliverPending retries every undelivered payout. Returns the number of
// payouts delivered.
func (e *Engine) DeliverPending(ctx context.Context) (int, error) {
	pending, err := e.store.PendingPayouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending payouts: %w", err)
	}
	err = e.deliver(ctx, pending)
	var de *DeliveryError
	if errors.As(err, &de) {
		return len(pending) - len(de.Failed), err
	}
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (e *Engine) deliver(ctx context.Context, payouts []model.Payout) error {
	var (
		failed  []model.Payout
		lastErr error
	)
	for _, p := range payouts {
		if err := e.sink.Settle(ctx, p.Account, p.Amount); err != nil {
			e.log.Warn("payout not delivered",
				"era", p.Era, "batch", p.Batch, "account", p.Account.Hex(), "amount", p.Amount.String(), "error", err)
			failed = append(failed, p)
			lastErr = err
			continue
		}
		if err := e.store.MarkDelivered(ctx, p.Batch, p.Account); err != nil {
			return fmt.Errorf("mark payout %s delivered: %w", p.Batch, err)
		}
		e.log.Debug("payout delivered", "era", p.Era, "batch", p.Batch, "account", p.Account.Hex(), "amount", p.Amount.String())
	}
	if len(failed) > 0 {
		return &DeliveryError{Failed: failed, Err: lastErr}
	}
	return nil
}

// Round returns era's full stored round.
func (e *Engine) Round(ctx context.Context, era model.Era) (model.Round, bool, error) {
	return e.store.Round(ctx, era)
}

// RewardList returns era's round truncated to the configured capacity.
func (e *Engine) RewardList(ctx context.Context, era model.Era) (model.Round, error) {
	return e.registry.RewardList(ctx, NewTxn(e.store), era)
}

// Payouts lists the payout journal of era.
func (e *Engine) Payouts(ctx context.Context, era model.Era) ([]model.Payout, error) {
	return e.store.Payouts(ctx, era)
}

// State is a snapshot of the engine's position.
type State struct {
	BlockHeight    idx.Block  `json:"block_height"`
	CurrentEra     model.Era  `json:"current_era"`
	LastSettledEra *model.Era `json:"last_settled_era,omitempty"`
}

// State reports the clock position and the last settled era.
func (e *Engine) State(ctx context.Context) (State, error) {
	s := State{
		BlockHeight: e.clock.BlockHeight(),
		CurrentEra:  e.clock.CurrentEra(),
	}
	last, ok, err := e.store.LastSettledEra(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load last settled era: %w", err)
	}
	if ok {
		s.LastSettledEra = &last
	}
	return s, nil
}
