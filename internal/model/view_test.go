package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundView_Open(t *testing.T) {
	v := NewRoundView(3, Round{{Account: alice, Points: 9}, {Account: bob, Points: 4}})

	assert.False(t, v.Settled)
	assert.Empty(t, v.Digest)
	assert.Empty(t, v.Mint)
	require.Len(t, v.Entries, 2)
	assert.Equal(t, EntryView{Rank: 2, Account: bob.Hex(), Points: 4}, v.Entries[1])
}

func TestNewRoundView_Settled(t *testing.T) {
	round := Round{
		{Account: alice, Points: 3, Settlement: &SettlementInfo{
			Proportion: FractionFromRational(3, 4, 2), PayPoint: 3, TakeToken: NewTokenAmount(75),
		}},
		{Account: bob, Points: 1, Settlement: &SettlementInfo{
			Proportion: FractionFromRational(1, 4, 2), PayPoint: 1, TakeToken: NewTokenAmount(25),
		}},
	}

	v := NewRoundView(8, round)
	assert.True(t, v.Settled)
	assert.Equal(t, "100", v.Mint)
	assert.Equal(t, "0.75", v.Entries[0].Proportion)
	assert.Equal(t, "25", v.Entries[1].TakeToken)

	digest, err := SettlementDigest(8, round)
	require.NoError(t, err)
	assert.Equal(t, digest, v.Digest)
}
