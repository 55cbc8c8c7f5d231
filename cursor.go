package mdbxsafe

import (
	"github.com/erigontech/mdbx-go/mdbx"
)

// cursor carries the state shared by read-only and read-write cursors.
// eng is nil once the cursor is closed, by hand or because its
// transaction ended; every operation checks it.
type cursor struct {
	eng *mdbx.Cursor
	db  Database
}

func (c *cursor) invalidate() {
	if c.eng == nil {
		return
	}
	c.eng.Close()
	c.eng = nil
}

// Close releases the cursor. Idempotent; also runs automatically when
// the owning transaction ends.
func (c *cursor) Close() {
	c.invalidate()
}

func (c *cursor) get(setKey, setVal []byte, op uint) ([]byte, []byte, error) {
	if c.eng == nil {
		return nil, nil, NewError(ErrInvalid)
	}
	k, v, err := c.eng.Get(setKey, setVal, op)
	if err != nil {
		return nil, nil, fromEngine(err)
	}
	return k, v, nil
}

// First positions at the first key and returns it with its value (the
// first duplicate in a DupSort database). An empty database fails with
// ErrNotFound. All positioning methods return slices into the memory
// map, valid only until the transaction ends or writes.
func (c *cursor) First() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.First)
}

// Last positions at the last key (last duplicate in a DupSort database).
func (c *cursor) Last() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.Last)
}

// Next advances to the next entry; in a DupSort database duplicates of
// the current key come first, in order. Stepping past the end fails
// with ErrNotFound and leaves the position unchanged.
func (c *cursor) Next() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.Next)
}

// Prev steps back one entry, the mirror of Next.
func (c *cursor) Prev() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.Prev)
}

// Current returns the entry at the current position without moving.
// Fails with ErrNotFound when the cursor is unpositioned.
func (c *cursor) Current() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.GetCurrent)
}

// SeekKey positions at exactly key, failing with ErrNotFound if absent.
func (c *cursor) SeekKey(key []byte) ([]byte, []byte, error) {
	return c.get(key, nil, mdbx.SetKey)
}

// SeekRange positions at the first key greater than or equal to key.
func (c *cursor) SeekRange(key []byte) ([]byte, []byte, error) {
	return c.get(key, nil, mdbx.SetRange)
}

// FirstDup positions at the first duplicate of the current key.
// DupSort databases only.
func (c *cursor) FirstDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.FirstDup)
}

// LastDup positions at the last duplicate of the current key.
func (c *cursor) LastDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.LastDup)
}

// NextDup advances to the next duplicate of the current key, failing
// with ErrNotFound at the end of the run.
func (c *cursor) NextDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.NextDup)
}

// PrevDup steps back to the previous duplicate of the current key.
func (c *cursor) PrevDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.PrevDup)
}

// NextNoDup advances to the first duplicate of the next key, skipping
// the rest of the current run.
func (c *cursor) NextNoDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.NextNoDup)
}

// PrevNoDup steps back to the last duplicate of the previous key.
func (c *cursor) PrevNoDup() ([]byte, []byte, error) {
	return c.get(nil, nil, mdbx.PrevNoDup)
}

// SeekBoth positions at exactly the (key, val) pair in a DupSort
// database.
func (c *cursor) SeekBoth(key, val []byte) ([]byte, []byte, error) {
	return c.get(key, val, mdbx.GetBoth)
}

// SeekBothRange positions at key and its first duplicate greater than
// or equal to val.
func (c *cursor) SeekBothRange(key, val []byte) ([]byte, []byte, error) {
	return c.get(key, val, mdbx.GetBothRange)
}

// Count returns the number of duplicates of the current key. DupSort
// databases only.
func (c *cursor) Count() (uint64, error) {
	if c.eng == nil {
		return 0, NewError(ErrInvalid)
	}
	n, err := c.eng.Count()
	if err != nil {
		return 0, fromEngine(err)
	}
	return uint64(n), nil
}

// Iter scans the whole database in key order, duplicates included.
func (c *cursor) Iter() *Iter {
	return &Iter{c: c, op: mdbx.First, next: mdbx.Next}
}

// IterFrom scans in key order starting at the first key greater than or
// equal to start.
func (c *cursor) IterFrom(start []byte) *Iter {
	return &Iter{c: c, start: start, op: mdbx.SetRange, next: mdbx.Next}
}

// IterDupOf scans the duplicates of one key, in duplicate order. An
// absent key yields an empty scan.
func (c *cursor) IterDupOf(key []byte) *Iter {
	return &Iter{c: c, start: key, op: mdbx.SetKey, next: mdbx.NextDup}
}

// IterDup walks a DupSort database one key at a time; Dups exposes the
// current key's duplicate run.
func (c *cursor) IterDup() *DupIter {
	return &DupIter{c: c}
}

// RoCursor is a cursor over a read-only transaction's snapshot.
type RoCursor struct {
	cursor
}

// OpenRoCursor returns a positioned-read cursor over db, tied to this
// transaction: it is closed automatically when the transaction ends.
func (t *txn) OpenRoCursor(db Database) (*RoCursor, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := db.valid(); err != nil {
		return nil, err
	}
	eng, err := t.eng.OpenCursor(db.dbi)
	if err != nil {
		return nil, fromEngine(err)
	}
	c := &RoCursor{cursor: cursor{eng: eng, db: db}}
	t.track(&c.cursor)
	return c, nil
}

// RwCursor is a cursor over a read-write transaction. It supports
// positioned writes in addition to every read operation.
type RwCursor struct {
	cursor
}

// OpenRwCursor returns a read-write cursor over db, tied to this
// transaction.
func (t *RwTxn) OpenRwCursor(db Database) (*RwCursor, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if err := t.blocked(); err != nil {
		return nil, err
	}
	if err := db.valid(); err != nil {
		return nil, err
	}
	eng, err := t.eng.OpenCursor(db.dbi)
	if err != nil {
		return nil, fromEngine(err)
	}
	c := &RwCursor{cursor: cursor{eng: eng, db: db}}
	t.track(&c.cursor)
	return c, nil
}

// Put stores val under key and leaves the cursor positioned on the new
// entry. Same flag semantics as RwTxn.Put.
func (c *RwCursor) Put(key, val []byte, flags WriteFlags) error {
	if c.eng == nil {
		return NewError(ErrInvalid)
	}
	return fromEngine(c.eng.Put(key, val, flags.engine()))
}

// PutReserve allocates n zero-filled bytes under key and returns a
// slice into the map for the caller to fill, valid until the next write
// on the transaction.
func (c *RwCursor) PutReserve(key []byte, n int, flags WriteFlags) ([]byte, error) {
	if c.eng == nil {
		return nil, NewError(ErrInvalid)
	}
	buf, err := c.eng.PutReserve(key, n, flags.engine())
	if err != nil {
		return nil, fromEngine(err)
	}
	return buf, nil
}

// PutMulti stores multiple fixed-size duplicate values under key in one
// call. page holds the values back to back, each stride bytes long.
// DupFixed databases only.
func (c *RwCursor) PutMulti(key, page []byte, stride int, flags WriteFlags) error {
	if c.eng == nil {
		return NewError(ErrInvalid)
	}
	return fromEngine(c.eng.PutMulti(key, page, stride, flags.engine()))
}

// Del removes the entry at the current position. With allDups set, every
// duplicate of the current key is removed.
func (c *RwCursor) Del(allDups bool) error {
	if c.eng == nil {
		return NewError(ErrInvalid)
	}
	var flags uint
	if allDups {
		flags = mdbx.AllDups
	}
	return fromEngine(c.eng.Del(flags))
}

// Iter is a forward scan over a cursor. Next reports whether an entry
// was produced; after it returns false, Err distinguishes normal
// exhaustion (nil) from a real failure. Key and Value are slices into
// the memory map, overwritten by the next call to Next.
type Iter struct {
	c       *cursor
	start   []byte
	op      uint
	next    uint
	started bool
	done    bool
	key     []byte
	val     []byte
	err     error
}

// Next advances to the next entry. The first call performs the scan's
// initial positioning.
func (it *Iter) Next() bool {
	if it.done {
		return false
	}
	var k, v []byte
	var err error
	if !it.started {
		it.started = true
		k, v, err = it.c.get(it.start, nil, it.op)
	} else {
		k, v, err = it.c.get(nil, nil, it.next)
	}
	if err != nil {
		it.done = true
		it.key, it.val = nil, nil
		if !IsNotFound(err) {
			it.err = err
		}
		return false
	}
	it.key, it.val = k, v
	return true
}

// Key returns the current entry's key.
func (it *Iter) Key() []byte { return it.key }

// Value returns the current entry's value.
func (it *Iter) Value() []byte { return it.val }

// Err returns the failure that stopped the scan, if any.
func (it *Iter) Err() error { return it.err }

// DupIter walks distinct keys of a DupSort database. Next advances to
// the next key; Dups returns a scan over that key's duplicate run. The
// inner scan shares the cursor, so finish with it before calling Next
// again (Next jumps to the next key regardless of where the run was
// left).
type DupIter struct {
	c       *cursor
	started bool
	done    bool
	key     []byte
	err     error
}

// Next advances to the first duplicate of the next distinct key.
func (it *DupIter) Next() bool {
	if it.done {
		return false
	}
	var op uint = mdbx.NextNoDup
	if !it.started {
		it.started = true
		op = mdbx.First
	}
	k, _, err := it.c.get(nil, nil, op)
	if err != nil {
		it.done = true
		it.key = nil
		if !IsNotFound(err) {
			it.err = err
		}
		return false
	}
	it.key = k
	return true
}

// Key returns the current key.
func (it *DupIter) Key() []byte { return it.key }

// Dups returns a scan over the current key's duplicates, starting at
// the position Next left the cursor on.
func (it *DupIter) Dups() *Iter {
	return &Iter{c: it.c, op: mdbx.GetCurrent, next: mdbx.NextDup}
}

// Err returns the failure that stopped the walk, if any.
func (it *DupIter) Err() error { return it.err }
