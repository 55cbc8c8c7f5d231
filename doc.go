// Package mdbxsafe is a safety layer over libmdbx, an embedded
// memory-mapped transactional key-value database, reached through the
// github.com/erigontech/mdbx-go bindings.
//
// The engine's concurrency and memory-safety rules are easy to violate
// through the raw handle API: using a cursor after its transaction ends,
// committing a transaction twice, opening a second write transaction
// while one is active, or holding a value slice after the snapshot
// backing it is gone. This package encodes those rules in the types.
// Write operations exist only on read-write handles, ended handles fail
// every operation with ErrBadTxn instead of corrupting the engine, and
// cleanup ordering (cursors before transactions before the environment)
// is enforced at runtime.
//
// Key properties:
//   - Single writer, multiple readers; a second BeginRwTxn blocks until
//     the active write transaction commits or aborts
//   - Read-only transactions see a consistent snapshot for their lifetime
//   - RoTxn/RwTxn and RoCursor/RwCursor are distinct types, so write
//     calls on a read-only handle do not compile
//   - Env.Close waits for every live transaction before releasing the map
//
// Basic usage:
//
//	env, err := mdbxsafe.NewEnv().
//	    SetMapSize(1 << 30).
//	    SetMaxDBs(4).
//	    Open("/path/to/db", 0644)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	db, err := env.CreateDB("accounts", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	txn, err := env.BeginRwTxn()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer txn.Abort()
//
//	if err := txn.Put(db, []byte("key"), []byte("value"), 0); err != nil {
//	    log.Fatal(err)
//	}
//	if err := txn.Commit(); err != nil {
//	    log.Fatal(err)
//	}
//
// Value slices returned by Get and cursor operations point into the
// engine's memory map. They are valid only until the transaction ends or,
// inside a write transaction, until the next mutation. Use GetCopy (or
// copy the bytes) to retain data past those points.
package mdbxsafe
