// Package testutil provides deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/neilotoole/slogt"

	"github.com/roach88/pointex/internal/model"
)

// Account derives a stable address from a readable name, so scenarios and
// tests can say "alice" instead of a hex address. Names longer than an
// address keep their trailing bytes.
func Account(name string) model.AccountID {
	return common.BytesToAddress([]byte(name))
}

// Logger returns a logger that writes through t.Log.
func Logger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
