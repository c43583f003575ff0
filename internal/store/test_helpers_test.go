package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/testutil"
)

var (
	alice = testutil.Account("alice")
	bob   = testutil.Account("bob")
	carol = testutil.Account("carol")
)

// createTestStore opens a fresh database file under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pointex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
