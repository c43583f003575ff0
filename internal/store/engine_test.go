package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/testutil"
)

// TestEngineOverStore runs a full exchange cycle with the store acting as
// state, point source, token book and challenge gate.
func TestEngineOverStore(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	clock := exchange.NewManualClock(50)

	eng, err := exchange.New(s, clock, s, exchange.TokenSink{Book: s}, exchange.DefaultParams(),
		exchange.WithLogger(testutil.Logger(t)),
		exchange.WithChallengeGate(s),
		exchange.WithBatchIDGenerator(exchange.NewFixedGenerator("batch-5")),
	)
	require.NoError(t, err)

	require.NoError(t, s.SetPoints(ctx, alice, 50))
	require.NoError(t, s.SetPoints(ctx, bob, 30))
	require.NoError(t, s.SetPoints(ctx, carol, 20))
	for _, a := range []model.AccountID{alice, bob, carol} {
		_, err := eng.Apply(ctx, a)
		require.NoError(t, err)
	}

	clock.Set(60)
	require.NoError(t, s.SetChallenged(ctx, 5, true))
	_, err = eng.Settle(ctx, 5, model.NewTokenAmount(100))
	require.ErrorIs(t, err, exchange.ErrEraChallenged)

	require.NoError(t, s.SetChallenged(ctx, 5, false))
	settlement, err := eng.Settle(ctx, 5, model.NewTokenAmount(100))
	require.NoError(t, err)
	assert.Equal(t, "batch-5", settlement.Batch)

	round, ok, err := s.Round(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, settlement.Round, round)
	assert.Empty(t, exchange.Audit(5, round, 3))

	digest, err := model.SettlementDigest(5, round)
	require.NoError(t, err)
	assert.Equal(t, settlement.Digest, digest, "stored round reproduces the digest")

	for account, want := range map[model.AccountID]string{alice: "50", bob: "30", carol: "20"} {
		bal, err := s.TokenBalance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, want, bal.String())
	}

	pending, err := s.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = eng.Settle(ctx, 5, model.NewTokenAmount(100))
	require.ErrorIs(t, err, exchange.ErrAlreadySettled)
}
