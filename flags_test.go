package mdbxsafe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagStrings(t *testing.T) {
	require.Equal(t, "", EnvFlags(0).String())
	require.Equal(t, "NoSubdir|ReadOnly", (NoSubdir | ReadOnly).String())
	require.Equal(t, "DupSort|DupFixed", (DupSort | DupFixed).String())
	require.Equal(t, "NoOverwrite|Append", (NoOverwrite | Append).String())
}

func TestFlagTranslationDistinct(t *testing.T) {
	// Every wrapper bit must map to a distinct, non-zero engine bit set.
	seen := map[uint]string{}
	for _, b := range envFlagBits {
		require.NotZero(t, b.engine, b.name)
		require.NotContains(t, seen, b.engine, b.name)
		seen[b.engine] = b.name
	}
	seen = map[uint]string{}
	for _, b := range dbFlagBits {
		require.NotZero(t, b.engine, b.name)
		require.NotContains(t, seen, b.engine, b.name)
		seen[b.engine] = b.name
	}
	seen = map[uint]string{}
	for _, b := range writeFlagBits {
		require.NotZero(t, b.engine, b.name)
		require.NotContains(t, seen, b.engine, b.name)
		seen[b.engine] = b.name
	}
}

func TestAppendFlag(t *testing.T) {
	env := testEnv(t, 0)
	db := testDB(t, env)

	err := env.Update(func(txn *RwTxn) error {
		for _, k := range []string{"a", "b", "c"} {
			if err := txn.Put(db, []byte(k), []byte("v"), Append); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	// Appending out of order violates the ordering assertion.
	err = env.Update(func(txn *RwTxn) error {
		return txn.Put(db, []byte("aa"), []byte("v"), Append)
	})
	require.Error(t, err)
}
