package exchange

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/testutil"
)

func TestDistribute_EqualPoints(t *testing.T) {
	round := model.Round{
		{Account: alice, Points: 1},
		{Account: bob, Points: 1},
		{Account: carol, Points: 1},
	}

	settled, err := Distribute(1, round, model.NewTokenAmount(10), model.DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "3", "4"}, takes(settled))
	assert.Nil(t, round[0].Settlement, "input round is not modified")
}

func TestDistribute_ExactSplit(t *testing.T) {
	round := model.Round{
		{Account: alice, Points: 50},
		{Account: bob, Points: 30},
		{Account: carol, Points: 20},
	}

	settled, err := Distribute(5, round, model.NewTokenAmount(100), model.DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, []string{"50", "30", "20"}, takes(settled))
	assert.Empty(t, Audit(5, settled, 3))
}

func TestDistribute_SingleEntryTakesAll(t *testing.T) {
	round := model.Round{{Account: alice, Points: 7}}

	settled, err := Distribute(2, round, model.NewTokenAmount(99), model.DefaultPrecision)
	require.NoError(t, err)
	assert.True(t, settled[0].Settlement.Proportion.IsOne())
	assert.Equal(t, "99", settled[0].Settlement.TakeToken.String())
	assert.Equal(t, model.PointAmount(7), settled[0].Settlement.PayPoint)
}

func TestDistribute_ZeroPointsLastTakesAll(t *testing.T) {
	round := model.Round{
		{Account: alice, Points: 0},
		{Account: bob, Points: 0},
	}

	settled, err := Distribute(2, round, model.NewTokenAmount(10), model.DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "10"}, takes(settled))
}

func TestDistribute_ZeroMint(t *testing.T) {
	round := model.Round{
		{Account: alice, Points: 2},
		{Account: bob, Points: 1},
	}

	settled, err := Distribute(2, round, model.TokenAmount{}, model.DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0"}, takes(settled))
	assert.True(t, settled[0].Settlement.Proportion.Add(settled[1].Settlement.Proportion).IsOne())
}

func TestDistribute_LargeMint(t *testing.T) {
	round := model.Round{
		{Account: alice, Points: 2},
		{Account: bob, Points: 1},
	}
	mint := model.MustParseTokenAmount("1000000000000000000000000")

	settled, err := Distribute(3, round, mint, model.DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, "666666666000000000000000", settled[0].Settlement.TakeToken.String())
	assert.Equal(t, "333333334000000000000000", settled[1].Settlement.TakeToken.String())
}

func TestDistribute_Rejections(t *testing.T) {
	_, err := Distribute(1, nil, model.NewTokenAmount(10), model.DefaultPrecision)
	require.ErrorIs(t, err, ErrEmptyRound)

	top := model.PointAmount(^uint64(0))
	_, err = Distribute(1, model.Round{{Account: alice, Points: top}, {Account: bob, Points: 1}}, model.NewTokenAmount(10), model.DefaultPrecision)
	require.ErrorIs(t, err, ErrPointOverflow)
}

func TestDistribute_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		n := 1 + rng.Intn(6)
		round := make(model.Round, n)
		for i := range round {
			round[i] = model.Application{
				Account: testutil.Account(string(rune('a' + i))),
				Points:  model.PointAmount(1 + rng.Intn(1_000_000)),
			}
		}
		round.SortDescending()
		mint := model.NewTokenAmount(uint64(rng.Int63n(1 << 40)))
		precision := uint8(rng.Intn(model.MaxPrecision + 1))

		settled, err := Distribute(1, round, mint, precision)
		require.NoError(t, err)

		var paid model.TokenAmount
		sum := model.ZeroFraction(precision)
		for _, app := range settled {
			require.NotNil(t, app.Settlement)
			paid = paid.Add(app.Settlement.TakeToken)
			sum = sum.Add(app.Settlement.Proportion)
		}
		require.Zero(t, paid.Cmp(mint), "run %d: paid %s of %s", run, paid, mint)
		require.True(t, sum.IsOne(), "run %d: proportions sum to %s", run, sum)
		require.Empty(t, Audit(1, settled, uint32(n)), "run %d", run)
	}
}
