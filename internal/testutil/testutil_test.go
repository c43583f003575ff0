package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAccount_Deterministic(t *testing.T) {
	assert.Equal(t, Account("alice"), Account("alice"))
	assert.NotEqual(t, Account("alice"), Account("bob"))
	assert.Equal(t, common.HexToAddress("0x000000000000000000000000000000616c696365"), Account("alice"))
}

func TestLogger(t *testing.T) {
	log := Logger(t)
	log.Info("logger attached", "test", t.Name())
}
