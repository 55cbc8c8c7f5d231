package mdbxsafe

import (
	"os"
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Stat is a point-in-time snapshot of database size counters. Plain
// value, no lifecycle.
type Stat struct {
	PageSize      uint   // Size of a database page
	Depth         uint   // Height of the B-tree
	BranchPages   uint64 // Number of internal pages
	LeafPages     uint64 // Number of leaf pages
	OverflowPages uint64 // Number of overflow pages
	Entries       uint64 // Number of data items
}

// EnvInfo is a point-in-time snapshot of environment counters.
type EnvInfo struct {
	MapSize    int64  // Configured map size in bytes
	LastTxnID  uint64 // ID of the last committed transaction
	MaxReaders uint   // Configured reader slot count
	NumReaders uint   // Reader slots currently in use
}

// EnvBuilder accumulates environment configuration. Setters are pure
// mutations and never fail; Open performs all validation.
type EnvBuilder struct {
	flags      EnvFlags
	mapSize    int64
	maxDBs     uint64
	maxReaders uint64
}

// NewEnv returns a builder with defaults: engine-defined map size, one
// named database, engine-defined reader limit, no flags.
func NewEnv() *EnvBuilder {
	return &EnvBuilder{maxDBs: 1}
}

// SetFlags replaces the open flags.
func (b *EnvBuilder) SetFlags(flags EnvFlags) *EnvBuilder {
	b.flags = flags
	return b
}

// SetMapSize sets the map size ceiling in bytes. The backing file grows
// sparsely toward this ceiling; it is not allocated up front.
func (b *EnvBuilder) SetMapSize(size int64) *EnvBuilder {
	b.mapSize = size
	return b
}

// SetMaxDBs sets the maximum number of named databases.
func (b *EnvBuilder) SetMaxDBs(n uint64) *EnvBuilder {
	b.maxDBs = n
	return b
}

// SetMaxReaders sets the size of the reader slot table.
func (b *EnvBuilder) SetMaxReaders(n uint64) *EnvBuilder {
	b.maxReaders = n
	return b
}

// Open creates or opens the backing store at path. Unless NoSubdir is
// set, path must name a directory (created if absent); the engine keeps a
// data file and a lock file inside it. On failure no partially-open
// environment is left behind.
func (b *EnvBuilder) Open(path string, mode os.FileMode) (*Env, error) {
	eng, err := mdbx.NewEnv(mdbx.Default)
	if err != nil {
		return nil, fromEngine(err)
	}

	if b.maxDBs > 0 {
		if err := eng.SetOption(mdbx.OptMaxDB, b.maxDBs); err != nil {
			eng.Close()
			return nil, fromEngine(err)
		}
	}
	if b.maxReaders > 0 {
		if err := eng.SetOption(mdbx.OptMaxReaders, b.maxReaders); err != nil {
			eng.Close()
			return nil, fromEngine(err)
		}
	}
	if b.mapSize > 0 {
		// Pin the upper bound; no auto-growth past the ceiling, a full
		// map surfaces as ErrMapFull.
		if err := eng.SetGeometry(-1, -1, int(b.mapSize), -1, -1, -1); err != nil {
			eng.Close()
			return nil, fromEngine(err)
		}
	}

	engFlags := b.flags.engine()
	if b.flags&ReadOnly == 0 {
		engFlags |= mdbx.Create
	}
	if b.flags&NoSubdir == 0 && b.flags&ReadOnly == 0 {
		if err := os.MkdirAll(path, mode|0700); err != nil {
			eng.Close()
			return nil, WrapError(ErrOther, err)
		}
	}

	if err := eng.Open(path, engFlags, mode); err != nil {
		eng.Close()
		return nil, fromEngine(err)
	}

	return &Env{
		eng:   eng,
		path:  path,
		flags: b.flags,
		dbis:  make(map[string]Database),
	}, nil
}

// Env is the open handle to one memory-mapped storage region. It is safe
// to share across goroutines: reads run concurrently, while write
// transaction creation is serialized by an internal gate. Env is the root
// owner of every transaction, cursor, and database handle derived from
// it, and Close waits for all of them to end.
type Env struct {
	eng   *mdbx.Env
	path  string
	flags EnvFlags

	// mu guards closed and the database cache. Held shared by
	// transaction begin so Close cannot tear the engine down between the
	// closed check and the WaitGroup add.
	mu     sync.RWMutex
	closed bool
	dbis   map[string]Database

	// writeMu is the single-writer admission gate. Held from BeginRwTxn
	// until the transaction commits or aborts.
	writeMu sync.Mutex

	// txnWg counts live transactions; Close waits on it before releasing
	// the engine handle.
	txnWg sync.WaitGroup
}

// Path returns the path the environment was opened at.
func (env *Env) Path() string {
	return env.path
}

// Flags returns the flags the environment was opened with.
func (env *Env) Flags() EnvFlags {
	return env.flags
}

// BeginRoTxn starts a read-only transaction pinned to the current
// snapshot. Any number may be active concurrently; each occupies a
// reader slot until it ends (or is Reset), and slot exhaustion fails
// with ErrReadersFull.
func (env *Env) BeginRoTxn() (*RoTxn, error) {
	env.mu.RLock()
	defer env.mu.RUnlock()

	if env.closed {
		return nil, NewError(ErrInvalid)
	}

	raw, err := env.eng.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, fromEngine(err)
	}

	env.txnWg.Add(1)
	return &RoTxn{txn: txn{env: env, eng: raw}}, nil
}

// BeginRwTxn starts a read-write transaction. Only one may be active per
// environment; a second call blocks until the first commits or aborts.
// The calling goroutine is pinned to its OS thread until the transaction
// ends and must drive it to completion itself.
func (env *Env) BeginRwTxn() (*RwTxn, error) {
	env.writeMu.Lock()

	env.mu.RLock()
	if env.closed {
		env.mu.RUnlock()
		env.writeMu.Unlock()
		return nil, NewError(ErrInvalid)
	}
	if env.flags&ReadOnly != 0 {
		env.mu.RUnlock()
		env.writeMu.Unlock()
		return nil, NewError(ErrInvalid)
	}

	runtime.LockOSThread()
	raw, err := env.eng.BeginTxn(nil, 0)
	if err != nil {
		runtime.UnlockOSThread()
		env.mu.RUnlock()
		env.writeMu.Unlock()
		return nil, fromEngine(err)
	}

	env.txnWg.Add(1)
	env.mu.RUnlock()
	return &RwTxn{txn: txn{env: env, eng: raw}, top: true}, nil
}

// OpenDB returns a handle to an existing database, running a short
// read-only transaction for the lookup. Empty name means the unnamed
// root database. Fails with ErrNotFound if the name does not exist.
// Handles are cached: opening the same name twice returns the same
// Database.
func (env *Env) OpenDB(name string) (Database, error) {
	if db, ok := env.cachedDB(name); ok {
		return db, nil
	}

	t, err := env.BeginRoTxn()
	if err != nil {
		return Database{}, err
	}
	defer t.Abort()

	db, err := t.OpenDB(name)
	if err != nil {
		return Database{}, err
	}
	return db, nil
}

// CreateDB returns a handle to a database, creating it if absent,
// running a short read-write transaction. Creating an existing database
// is idempotent, but a flag set differing from the one it was created
// with fails with ErrIncompatible.
func (env *Env) CreateDB(name string, flags DBFlags) (Database, error) {
	if db, ok := env.cachedDB(name); ok && db.known && db.flags == flags {
		return db, nil
	}

	t, err := env.BeginRwTxn()
	if err != nil {
		return Database{}, err
	}

	db, err := t.CreateDB(name, flags)
	if err != nil {
		t.Abort()
		return Database{}, err
	}
	if err := t.Commit(); err != nil {
		return Database{}, err
	}
	return db, nil
}

func (env *Env) cachedDB(name string) (Database, bool) {
	env.mu.RLock()
	db, ok := env.dbis[name]
	env.mu.RUnlock()
	return db, ok
}

// storeDB publishes a handle to the cache. An entry with authoritative
// flags is never displaced by one adopted from an existing database.
func (env *Env) storeDB(db Database) {
	env.mu.Lock()
	old, ok := env.dbis[db.name]
	if !ok || (db.known && !old.known) {
		env.dbis[db.name] = db
	}
	env.mu.Unlock()
}

// Stat returns a snapshot of the root database's size counters. Never
// blocks writers.
func (env *Env) Stat() (*Stat, error) {
	env.mu.RLock()
	defer env.mu.RUnlock()

	if env.closed {
		return nil, NewError(ErrInvalid)
	}

	st, err := env.eng.Stat()
	if err != nil {
		return nil, fromEngine(err)
	}
	return &Stat{
		PageSize:      uint(st.PSize),
		Depth:         uint(st.Depth),
		BranchPages:   uint64(st.BranchPages),
		LeafPages:     uint64(st.LeafPages),
		OverflowPages: uint64(st.OverflowPages),
		Entries:       uint64(st.Entries),
	}, nil
}

// Info returns a snapshot of environment counters. Never blocks writers.
func (env *Env) Info() (*EnvInfo, error) {
	env.mu.RLock()
	defer env.mu.RUnlock()

	if env.closed {
		return nil, NewError(ErrInvalid)
	}

	info, err := env.eng.Info(nil)
	if err != nil {
		return nil, fromEngine(err)
	}
	return &EnvInfo{
		MapSize:    int64(info.MapSize),
		LastTxnID:  uint64(info.LastTxnID),
		MaxReaders: uint(info.MaxReaders),
		NumReaders: uint(info.NumReaders),
	}, nil
}

// Sync flushes buffered writes to disk. With force set the flush is
// synchronous. Useful with SafeNoSync/NoMetaSync environments.
func (env *Env) Sync(force bool) error {
	env.mu.RLock()
	defer env.mu.RUnlock()

	if env.closed {
		return NewError(ErrInvalid)
	}
	return fromEngine(env.eng.Sync(force, false))
}

// ReaderCheck clears reader slots abandoned by dead processes and
// returns the number cleared.
func (env *Env) ReaderCheck() (int, error) {
	env.mu.RLock()
	defer env.mu.RUnlock()

	if env.closed {
		return 0, NewError(ErrInvalid)
	}

	n, err := env.eng.ReaderCheck()
	if err != nil {
		return n, fromEngine(err)
	}
	return n, nil
}

// View runs fn inside a read-only transaction, aborting it when fn
// returns.
func (env *Env) View(fn func(*RoTxn) error) error {
	t, err := env.BeginRoTxn()
	if err != nil {
		return err
	}
	defer t.Abort()
	return fn(t)
}

// Update runs fn inside a read-write transaction, committing if fn
// returns nil and aborting otherwise.
func (env *Env) Update(fn func(*RwTxn) error) error {
	t, err := env.BeginRwTxn()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		t.Abort()
		return err
	}
	return t.Commit()
}

// Close shuts the environment down. It waits for every live transaction
// (including inactive read-only ones) to end before releasing the engine
// handle, so no cursor or value slice can outlive the mapping through
// this ordering. Idempotent.
func (env *Env) Close() {
	env.mu.Lock()
	if env.closed {
		env.mu.Unlock()
		return
	}
	env.closed = true
	env.mu.Unlock()

	env.txnWg.Wait()
	env.eng.Close()
}
