package mdbxsafe

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEnvOpenClose(t *testing.T) {
	env, err := NewEnv().Open(t.TempDir(), 0o644)
	require.NoError(t, err)
	require.NotEmpty(t, env.Path())

	env.Close()
	env.Close() // idempotent

	_, err = env.BeginRoTxn()
	require.Equal(t, ErrInvalid, KindOf(err))
}

func TestEnvReopenPersists(t *testing.T) {
	dir := t.TempDir()

	env, err := NewEnv().Open(dir, 0o644)
	require.NoError(t, err)
	db := testDB(t, env)
	put(t, env, db, "durable", "yes")
	env.Close()

	env, err = NewEnv().Open(dir, 0o644)
	require.NoError(t, err)
	defer env.Close()

	db = testDB(t, env)
	err = env.View(func(txn *RoTxn) error {
		v, err := txn.Get(db, []byte("durable"))
		require.NoError(t, err)
		require.Equal(t, []byte("yes"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestEnvReadOnly(t *testing.T) {
	dir := t.TempDir()

	env, err := NewEnv().Open(dir, 0o644)
	require.NoError(t, err)
	db := testDB(t, env)
	put(t, env, db, "k", "v")
	env.Close()

	env, err = NewEnv().SetFlags(ReadOnly).Open(dir, 0o644)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.BeginRwTxn()
	require.Error(t, err)

	db = testDB(t, env)
	err = env.View(func(txn *RoTxn) error {
		v, err := txn.Get(db, []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestEnvStatInfo(t *testing.T) {
	env := testEnv(t, 0)
	db := testDB(t, env)
	for _, k := range []string{"a", "b", "c"} {
		put(t, env, db, k, "v")
	}

	stat, err := env.Stat()
	require.NoError(t, err)
	require.NotZero(t, stat.PageSize)
	require.Equal(t, uint64(3), stat.Entries)

	info, err := env.Info()
	require.NoError(t, err)
	require.Equal(t, int64(1<<30), info.MapSize)
	require.NotZero(t, info.LastTxnID)
	require.NotZero(t, info.MaxReaders)
}

func TestEnvReaderTracking(t *testing.T) {
	env := testEnv(t, 0)

	txn, err := env.BeginRoTxn()
	require.NoError(t, err)

	info, err := env.Info()
	require.NoError(t, err)
	require.NotZero(t, info.NumReaders)

	txn.Abort()

	cleared, err := env.ReaderCheck()
	require.NoError(t, err)
	require.Zero(t, cleared)
}

func TestEnvSync(t *testing.T) {
	env := testEnv(t, SafeNoSync)
	db := testDB(t, env)
	put(t, env, db, "k", "v")
	require.NoError(t, env.Sync(true))
}

// A large map size must not be allocated up front: the data file stays
// sparse until pages are actually written.
func TestEnvSparseAllocation(t *testing.T) {
	dir := t.TempDir()
	env, err := NewEnv().SetMapSize(1 << 30).Open(dir, 0o644)
	require.NoError(t, err)
	defer env.Close()

	db := testDB(t, env)
	put(t, env, db, "k", "v")

	var st unix.Stat_t
	require.NoError(t, unix.Stat(filepath.Join(dir, "mdbx.dat"), &st))
	require.Less(t, st.Blocks*512, int64(1<<24),
		"data file should be sparse, not pre-allocated to the map size")
}

func TestEnvCloseWaitsForReaders(t *testing.T) {
	env, err := NewEnv().Open(t.TempDir(), 0o644)
	require.NoError(t, err)

	txn, err := env.BeginRoTxn()
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		env.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a transaction was live")
	case <-time.After(50 * time.Millisecond):
	}

	txn.Abort()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the last transaction ended")
	}
}

func TestNamedDatabases(t *testing.T) {
	env := testEnv(t, 0)

	first, err := env.CreateDB("first", 0)
	require.NoError(t, err)
	second, err := env.CreateDB("second", 0)
	require.NoError(t, err)
	require.NotEqual(t, first.DBI(), second.DBI())

	put(t, env, first, "k", "one")
	put(t, env, second, "k", "two")

	err = env.View(func(txn *RoTxn) error {
		v, err := txn.Get(first, []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("one"), v)

		v, err = txn.Get(second, []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("two"), v)
		return nil
	})
	require.NoError(t, err)

	// Cached handle comes back for a matching reopen.
	again, err := env.OpenDB("first")
	require.NoError(t, err)
	require.Equal(t, first.DBI(), again.DBI())

	// Same name with different flags is refused.
	_, err = env.CreateDB("first", DupSort)
	require.Equal(t, ErrIncompatible, KindOf(err))

	_, err = env.OpenDB("missing")
	require.True(t, IsNotFound(err))
}

// Re-creating a database whose handle was adopted from disk must stay
// idempotent: the on-disk flags, not the adopted handle's zero flags,
// decide compatibility.
func TestCreateDBAfterAdoptedOpen(t *testing.T) {
	dir := t.TempDir()

	env, err := NewEnv().SetMaxDBs(8).Open(dir, 0o644)
	require.NoError(t, err)
	db, err := env.CreateDB("dups", DupSort)
	require.NoError(t, err)
	put(t, env, db, "k", "v")
	env.Close()

	// A fresh environment has no flag knowledge; OpenDB adopts the
	// database as it exists on disk.
	env, err = NewEnv().SetMaxDBs(8).Open(dir, 0o644)
	require.NoError(t, err)
	defer env.Close()

	adopted, err := env.OpenDB("dups")
	require.NoError(t, err)
	require.Zero(t, adopted.Flags())

	// Matching flags succeed and make the cached handle authoritative.
	db, err = env.CreateDB("dups", DupSort)
	require.NoError(t, err)
	require.Equal(t, DupSort, db.Flags())

	again, err := env.OpenDB("dups")
	require.NoError(t, err)
	require.Equal(t, DupSort, again.Flags())

	// Mismatched flags are still refused, now by the stored flags.
	_, err = env.CreateDB("dups", 0)
	require.Equal(t, ErrIncompatible, KindOf(err))
}
