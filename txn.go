package mdbxsafe

import (
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Txn is the read capability common to RoTxn and RwTxn, for helpers
// that only read and do not care which kind of transaction drives them.
type Txn interface {
	Get(db Database, key []byte) ([]byte, error)
	GetCopy(db Database, key []byte) ([]byte, error)
	OpenDB(name string) (Database, error)
	OpenRoCursor(db Database) (*RoCursor, error)
	StatDB(db Database) (*Stat, error)
	ID() (uint64, error)
}

var (
	_ Txn = (*RoTxn)(nil)
	_ Txn = (*RwTxn)(nil)
)

// txn carries the state shared by read-only and read-write transactions.
// eng is nil once the transaction has ended; every operation checks it
// and fails with ErrBadTxn after that point.
type txn struct {
	env     *Env
	eng     *mdbx.Txn
	cursors []*cursor
}

func (t *txn) valid() error {
	if t.eng == nil {
		return NewError(ErrBadTxn)
	}
	return nil
}

// closeAllCursors closes every cursor still open on this transaction.
// Runs before the transaction ends so no cursor handle outlives it.
func (t *txn) closeAllCursors() {
	for _, c := range t.cursors {
		c.invalidate()
	}
	t.cursors = nil
}

func (t *txn) track(c *cursor) {
	t.cursors = append(t.cursors, c)
}

// Get returns the value stored under key in db. The returned slice
// points into the memory map and is valid only until the transaction
// ends or, in a read-write transaction, until the next write; use
// GetCopy when the value must outlive either. Missing keys fail with
// ErrNotFound. For DupSort databases this returns the first duplicate.
func (t *txn) Get(db Database, key []byte) ([]byte, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := db.valid(); err != nil {
		return nil, err
	}
	v, err := t.eng.Get(db.dbi, key)
	if err != nil {
		return nil, fromEngine(err)
	}
	return v, nil
}

// GetCopy is Get with the value copied into freshly allocated memory,
// safe to retain after the transaction ends.
func (t *txn) GetCopy(db Database, key []byte) ([]byte, error) {
	v, err := t.Get(db, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// OpenDB returns a handle to an existing database. Empty name means the
// unnamed root database. Missing names fail with ErrNotFound. The handle
// is shared through the environment cache and stays usable across
// transactions.
func (t *txn) OpenDB(name string) (Database, error) {
	if err := t.valid(); err != nil {
		return Database{}, err
	}
	if db, ok := t.env.cachedDB(name); ok {
		return db, nil
	}

	var (
		dbi mdbx.DBI
		err error
	)
	if name == "" {
		dbi, err = t.eng.OpenRoot(0)
	} else {
		dbi, err = t.eng.OpenDBI(name, mdbx.DBAccede, nil, nil)
	}
	if err != nil {
		return Database{}, fromEngine(err)
	}

	db := Database{dbi: dbi, name: name, ok: true}
	t.env.storeDB(db)
	return db, nil
}

// StatDB returns size counters for one database as seen by this
// transaction's snapshot.
func (t *txn) StatDB(db Database) (*Stat, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := db.valid(); err != nil {
		return nil, err
	}
	st, err := t.eng.StatDBI(db.dbi)
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

// ID returns the engine-assigned transaction identifier.
func (t *txn) ID() (uint64, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	return uint64(t.eng.ID()), nil
}

// RoTxn is a read-only transaction: a consistent snapshot of the
// environment taken at begin time. It never sees writes committed after
// it began. Not safe for concurrent use by multiple goroutines.
type RoTxn struct {
	txn
}

// Abort ends the transaction, closing any cursors still open on it and
// releasing its reader slot. Idempotent. Every RoTxn must end in Abort
// (directly or via Reset-then-InactiveTxn.Abort) or the environment's
// Close will wait forever.
func (t *RoTxn) Abort() {
	if t.eng == nil {
		return
	}
	t.closeAllCursors()
	t.eng.Abort()
	t.eng = nil
	t.env.txnWg.Done()
}

// Reset detaches the transaction from its snapshot, releasing the
// reader slot while keeping the handle allocated for cheap reuse via
// Renew. The RoTxn is consumed: after Reset it is invalid and only the
// returned InactiveTxn may be used.
func (t *RoTxn) Reset() (*InactiveTxn, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	t.closeAllCursors()
	eng := t.eng
	t.eng = nil
	eng.Reset()
	return &InactiveTxn{env: t.env, eng: eng}, nil
}

// InactiveTxn is a read-only transaction between Reset and Renew. It
// holds no snapshot and supports no data operations; it exists only to
// be Renewed or Aborted.
type InactiveTxn struct {
	env *Env
	eng *mdbx.Txn
}

// Renew re-attaches the transaction to the current snapshot. The
// InactiveTxn is consumed; on success only the returned RoTxn may be
// used.
func (t *InactiveTxn) Renew() (*RoTxn, error) {
	if t.eng == nil {
		return nil, NewError(ErrBadTxn)
	}
	if err := t.eng.Renew(); err != nil {
		eng := t.eng
		t.eng = nil
		eng.Abort()
		t.env.txnWg.Done()
		return nil, fromEngine(err)
	}
	eng := t.eng
	t.eng = nil
	return &RoTxn{txn: txn{env: t.env, eng: eng}}, nil
}

// Abort releases the inactive handle. Idempotent.
func (t *InactiveTxn) Abort() {
	if t.eng == nil {
		return
	}
	t.eng.Abort()
	t.eng = nil
	t.env.txnWg.Done()
}

// RwTxn is a read-write transaction. At most one is active per
// environment; it reads its own uncommitted writes and must commit or
// abort on the goroutine that began it, which stays pinned to its OS
// thread until then.
type RwTxn struct {
	txn
	top    bool // holds the write gate and the OS thread pin
	parent *RwTxn
	child  *RwTxn
	newDBs []Database // created this txn, published to the cache on commit
}

// blocked reports whether a live nested transaction currently owns this
// handle.
func (t *RwTxn) blocked() error {
	if t.child != nil {
		return NewError(ErrBadTxn)
	}
	return nil
}

// Put stores val under key in db. Default behavior inserts or
// overwrites; see WriteFlags for NoOverwrite, NoDupData, Append and
// AppendDup. A full map fails with ErrMapFull and the transaction can
// still be aborted cleanly.
func (t *RwTxn) Put(db Database, key, val []byte, flags WriteFlags) error {
	if err := t.valid(); err != nil {
		return err
	}
	if err := t.blocked(); err != nil {
		return err
	}
	if err := db.valid(); err != nil {
		return err
	}
	return fromEngine(t.eng.Put(db.dbi, key, val, flags.engine()))
}

// PutReserve allocates n zero-filled bytes under key and returns a
// slice into the map for the caller to fill in place, skipping one copy
// for large values. The slice is valid only until the next write on
// this transaction. Not supported on DupSort databases.
func (t *RwTxn) PutReserve(db Database, key []byte, n int, flags WriteFlags) ([]byte, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := t.blocked(); err != nil {
		return nil, err
	}
	if err := db.valid(); err != nil {
		return nil, err
	}
	cur, err := t.eng.OpenCursor(db.dbi)
	if err != nil {
		return nil, fromEngine(err)
	}
	defer cur.Close()
	buf, err := cur.PutReserve(key, n, flags.engine())
	if err != nil {
		return nil, fromEngine(err)
	}
	return buf, nil
}

// Del removes data under key in db. With val nil the key is removed
// entirely (all duplicates in a DupSort database); with val non-nil only
// that exact duplicate is removed. A missing target fails with
// ErrNotFound.
func (t *RwTxn) Del(db Database, key, val []byte) error {
	if err := t.valid(); err != nil {
		return err
	}
	if err := t.blocked(); err != nil {
		return err
	}
	if err := db.valid(); err != nil {
		return err
	}
	return fromEngine(t.eng.Del(db.dbi, key, val))
}

// Clear removes every entry from db, keeping the database itself.
func (t *RwTxn) Clear(db Database) error {
	return t.drop(db, false)
}

// Drop deletes db and its handle from the environment. The handle is
// invalid afterwards in every transaction.
func (t *RwTxn) Drop(db Database) error {
	if err := t.drop(db, true); err != nil {
		return err
	}
	t.env.mu.Lock()
	delete(t.env.dbis, db.name)
	t.env.mu.Unlock()
	return nil
}

func (t *RwTxn) drop(db Database, del bool) error {
	if err := t.valid(); err != nil {
		return err
	}
	if err := t.blocked(); err != nil {
		return err
	}
	if err := db.valid(); err != nil {
		return err
	}
	return fromEngine(t.eng.Drop(db.dbi, del))
}

// CreateDB returns a handle to a named database, creating it if absent.
// Creating an existing database is idempotent, but a flag set differing
// from the one it was created with fails with ErrIncompatible. Handles
// created here become visible to other transactions once this
// transaction commits.
func (t *RwTxn) CreateDB(name string, flags DBFlags) (Database, error) {
	if err := t.valid(); err != nil {
		return Database{}, err
	}
	if err := t.blocked(); err != nil {
		return Database{}, err
	}
	if db, ok := t.env.cachedDB(name); ok && db.known {
		if db.flags != flags {
			return Database{}, NewError(ErrIncompatible)
		}
		return db, nil
	}
	// Cache miss, or a handle adopted from an existing database whose
	// flags we never learned: open with the requested flags and let the
	// engine arbitrate the mismatch.

	var (
		dbi mdbx.DBI
		err error
	)
	if name == "" {
		dbi, err = t.eng.OpenRoot(flags.engine())
	} else {
		dbi, err = t.eng.OpenDBI(name, flags.engine()|mdbx.Create, nil, nil)
	}
	if err != nil {
		return Database{}, fromEngine(err)
	}

	db := Database{dbi: dbi, flags: flags, name: name, ok: true, known: true}
	t.newDBs = append(t.newDBs, db)
	return db, nil
}

// Begin starts a nested transaction. Writes made in the child are
// invisible to the parent until the child commits and are discarded if
// it aborts. The parent is unusable while the child is live.
func (t *RwTxn) Begin() (*RwTxn, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := t.blocked(); err != nil {
		return nil, err
	}
	raw, err := t.env.eng.BeginTxn(t.eng, 0)
	if err != nil {
		return nil, fromEngine(err)
	}
	child := &RwTxn{txn: txn{env: t.env, eng: raw}, parent: t}
	t.child = child
	return child, nil
}

// Commit makes every write in this transaction durable and visible,
// atomically. The transaction is consumed whether or not Commit
// succeeds; on failure the writes are discarded, as if aborted.
func (t *RwTxn) Commit() error {
	if err := t.valid(); err != nil {
		return err
	}
	if err := t.blocked(); err != nil {
		return err
	}
	t.closeAllCursors()
	eng := t.eng
	t.eng = nil
	_, err := eng.Commit()
	t.release(err == nil)
	return fromEngine(err)
}

// Abort discards every write in this transaction, aborting any live
// nested transaction first. Idempotent.
func (t *RwTxn) Abort() {
	if t.eng == nil {
		return
	}
	if t.child != nil {
		t.child.Abort()
	}
	t.closeAllCursors()
	eng := t.eng
	t.eng = nil
	eng.Abort()
	t.release(false)
}

func (t *RwTxn) release(committed bool) {
	if committed {
		if t.parent != nil {
			t.parent.newDBs = append(t.parent.newDBs, t.newDBs...)
		} else {
			for _, db := range t.newDBs {
				t.env.storeDB(db)
			}
		}
	}
	t.newDBs = nil

	if t.parent != nil {
		t.parent.child = nil
		t.parent = nil
		return
	}
	t.env.txnWg.Done()
	runtime.UnlockOSThread()
	t.env.writeMu.Unlock()
}
