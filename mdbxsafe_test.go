package mdbxsafe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv opens a fresh environment in a per-test temp directory and
// arranges for it to be closed when the test ends.
func testEnv(t *testing.T, flags EnvFlags) *Env {
	t.Helper()
	env, err := NewEnv().
		SetMapSize(1 << 30).
		SetMaxDBs(8).
		SetFlags(flags).
		Open(t.TempDir(), 0o644)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

// testDB opens the root database of env.
func testDB(t *testing.T, env *Env) Database {
	t.Helper()
	db, err := env.OpenDB("")
	require.NoError(t, err)
	return db
}

// put writes one entry through a short-lived transaction.
func put(t *testing.T, env *Env, db Database, key, val string) {
	t.Helper()
	require.NoError(t, env.Update(func(txn *RwTxn) error {
		return txn.Put(db, []byte(key), []byte(val), 0)
	}))
}
