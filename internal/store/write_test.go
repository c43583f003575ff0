package store

import (
	"context"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

func eraPtr(e model.Era) *model.Era { return &e }

func TestCommit_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	top := model.PointAmount(^uint64(0))
	settled := model.Round{
		{Account: alice, Points: 3, Settlement: &model.SettlementInfo{
			Proportion: model.FractionFromRational(3, 4, model.DefaultPrecision),
			PayPoint:   3,
			TakeToken:  model.MustParseTokenAmount("750000000000000000000"),
		}},
		{Account: bob, Points: 1, Settlement: &model.SettlementInfo{
			Proportion: model.FractionFromRational(1, 4, model.DefaultPrecision),
			PayPoint:   1,
			TakeToken:  model.MustParseTokenAmount("250000000000000000000"),
		}},
	}
	open := model.Round{{Account: carol, Points: top}, {Account: alice, Points: 7}}

	err := s.Commit(ctx, &exchange.Update{
		Rounds:      map[model.Era]model.Round{4: settled, 5: open},
		Markers:     map[model.Era]idx.Block{5: 52},
		LastSettled: eraPtr(4),
	})
	require.NoError(t, err)

	got, ok, err := s.Round(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, settled, got)

	got, ok, err = s.Round(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, open, got)
	assert.Equal(t, top, got[0].Points, "full uint64 range survives storage")

	_, ok, err = s.Round(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	marker, ok, err := s.RefreshMarker(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 52, marker)

	last, ok, err := s.LastSettledEra(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Era(4), last)

	eras, err := s.Eras(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Era{4, 5}, eras)
}

func TestCommit_ReplacesRound(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Commit(ctx, &exchange.Update{Rounds: map[model.Era]model.Round{
		1: {{Account: alice, Points: 5}, {Account: bob, Points: 3}, {Account: carol, Points: 1}},
	}}))
	require.NoError(t, s.Commit(ctx, &exchange.Update{Rounds: map[model.Era]model.Round{
		1: {{Account: carol, Points: 9}, {Account: alice, Points: 5}},
	}}))

	got, _, err := s.Round(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Round{{Account: carol, Points: 9}, {Account: alice, Points: 5}}, got)
}

func TestCommit_DuplicatePayoutRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	p := model.Payout{Batch: "b1", Era: 1, Account: alice, Amount: model.NewTokenAmount(3)}
	require.NoError(t, s.Commit(ctx, &exchange.Update{Payouts: []model.Payout{p}}))

	err := s.Commit(ctx, &exchange.Update{
		Rounds:      map[model.Era]model.Round{2: {{Account: bob, Points: 1}}},
		LastSettled: eraPtr(2),
		Payouts:     []model.Payout{p},
	})
	require.Error(t, err)

	_, ok, err := s.Round(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok, "failed commit writes nothing")
	_, ok, err = s.LastSettledEra(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommit_Prune(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for era := model.Era(1); era <= 4; era++ {
		require.NoError(t, s.Commit(ctx, &exchange.Update{
			Rounds:  map[model.Era]model.Round{era: {{Account: alice, Points: 1}}},
			Markers: map[model.Era]idx.Block{era: idx.Block(era * 10)},
			Payouts: []model.Payout{{Batch: "b" + era.String(), Era: era, Account: alice, Amount: model.NewTokenAmount(1)}},
		}))
	}
	require.NoError(t, s.MarkDelivered(ctx, "b1", alice))

	require.NoError(t, s.Commit(ctx, &exchange.Update{PruneThrough: eraPtr(2)}))

	eras, err := s.Eras(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Era{3, 4}, eras)

	_, ok, err := s.RefreshMarker(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	payouts, err := s.Payouts(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	payouts, err = s.Payouts(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, payouts, 1)

	// Era 2 was never delivered, so it stays in the journal.
	pending, err := s.PendingPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, model.Era(2), pending[0].Era)
}

func TestPayouts_Delivery(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Commit(ctx, &exchange.Update{Payouts: []model.Payout{
		{Batch: "b2", Era: 2, Account: bob, Amount: model.NewTokenAmount(6)},
		{Batch: "b2", Era: 2, Account: alice, Amount: model.NewTokenAmount(4)},
	}}))
	require.NoError(t, s.Commit(ctx, &exchange.Update{Payouts: []model.Payout{
		{Batch: "b1", Era: 1, Account: carol, Amount: model.NewTokenAmount(1)},
	}}))

	pending, err := s.PendingPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []model.AccountID{carol, bob, alice},
		[]model.AccountID{pending[0].Account, pending[1].Account, pending[2].Account})
	assert.Equal(t, "6", pending[1].Amount.String())

	require.NoError(t, s.MarkDelivered(ctx, "b2", bob))
	require.Error(t, s.MarkDelivered(ctx, "b9", bob))

	pending, err = s.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	era2, err := s.Payouts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, era2, 2)
	assert.True(t, era2[0].Delivered)
	assert.False(t, era2[1].Delivered)
}

func TestPointLedger(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	got, err := s.TotalPoints(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, got)

	require.NoError(t, s.SetPoints(ctx, alice, 10))
	require.NoError(t, s.CreditPoints(ctx, alice, 5))
	require.NoError(t, s.CreditPoints(ctx, bob, 2))

	got, err = s.TotalPoints(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, model.PointAmount(15), got)

	require.NoError(t, s.SetPoints(ctx, carol, model.PointAmount(^uint64(0))))
	require.Error(t, s.CreditPoints(ctx, carol, 1))

	all, err := s.Points(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTokenBalances(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.CreditTokens(ctx, alice, model.MustParseTokenAmount("100000000000000000000")))
	require.NoError(t, s.CreditTokens(ctx, alice, model.NewTokenAmount(1)))
	require.NoError(t, s.CreditTokens(ctx, bob, model.NewTokenAmount(9)))

	bal, err := s.TokenBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000001", bal.String())

	bal, err = s.TokenBalance(ctx, carol)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	supply, err := s.TokenSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000010", supply.String())
}

func TestChallenges(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SetChallenged(ctx, 3, true))
	require.NoError(t, s.SetChallenged(ctx, 3, true))
	require.NoError(t, s.SetChallenged(ctx, 5, true))

	ok, err := s.IsChallenged(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	eras, err := s.ChallengedEras(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Era{3, 5}, eras)

	require.NoError(t, s.SetChallenged(ctx, 3, false))
	ok, err = s.IsChallenged(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlockHeight(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	h, err := s.BlockHeight(ctx)
	require.NoError(t, err)
	assert.Zero(t, h)

	require.NoError(t, s.SetBlockHeight(ctx, 42))
	require.NoError(t, s.SetBlockHeight(ctx, 42))
	require.Error(t, s.SetBlockHeight(ctx, 41))

	h, err = s.BlockHeight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, h)
}
