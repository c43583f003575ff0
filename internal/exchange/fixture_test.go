package exchange

import (
	"context"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/ledger"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/testutil"
)

var (
	alice = testutil.Account("alice")
	bob   = testutil.Account("bob")
	carol = testutil.Account("carol")
	dave  = testutil.Account("dave")
	erin  = testutil.Account("erin")
)

// fixture wires an engine to in-memory collaborators.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *ManualClock
	points *ledger.Points
	tokens *ledger.Tokens
	store  *MemoryStore
	engine *Engine
}

type fixtureOption func(*Params, *[]Option)

func withParams(mutate func(*Params)) fixtureOption {
	return func(p *Params, _ *[]Option) { mutate(p) }
}

func withOptions(opts ...Option) fixtureOption {
	return func(_ *Params, o *[]Option) { *o = append(*o, opts...) }
}

func newFixture(t *testing.T, fopts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		clock:  NewManualClock(0),
		points: ledger.NewPoints(),
		tokens: ledger.NewTokens(),
		store:  NewMemoryStore(),
	}

	params := DefaultParams()
	opts := []Option{
		WithLogger(testutil.Logger(t)),
		WithBatchIDGenerator(NewFixedGenerator("batch-1", "batch-2", "batch-3", "batch-4", "batch-5", "batch-6")),
	}
	for _, fo := range fopts {
		fo(&params, &opts)
	}

	eng, err := New(f.store, f.clock, f.points, TokenSink{Book: f.tokens}, params, opts...)
	require.NoError(t, err)
	f.engine = eng
	return f
}

func (f *fixture) at(height uint64) {
	f.clock.Set(idx.Block(height))
}

func (f *fixture) give(account model.AccountID, points model.PointAmount) {
	f.points.Set(account, points)
}

func (f *fixture) apply(account model.AccountID) error {
	_, err := f.engine.Apply(f.ctx, account)
	return err
}

func (f *fixture) mustApply(accounts ...model.AccountID) {
	f.t.Helper()
	for _, a := range accounts {
		require.NoError(f.t, f.apply(a), "apply %s", a.Hex())
	}
}

func (f *fixture) round(era model.Era) model.Round {
	f.t.Helper()
	r, _, err := f.store.Round(f.ctx, era)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) settle(era model.Era, mint uint64) (*Settlement, error) {
	return f.engine.Settle(f.ctx, era, model.NewTokenAmount(mint))
}

// accounts lists a round's accounts in rank order.
func accounts(r model.Round) []model.AccountID {
	out := make([]model.AccountID, len(r))
	for i, app := range r {
		out[i] = app.Account
	}
	return out
}

func takes(r model.Round) []string {
	out := make([]string, len(r))
	for i, app := range r {
		if app.Settlement != nil {
			out[i] = app.Settlement.TakeToken.String()
		}
	}
	return out
}
