package mdbxsafe

import (
	"github.com/erigontech/mdbx-go/mdbx"
)

// Database is an opaque handle to a named (or the unnamed root) key/value
// namespace inside an environment. It is a plain value: freely copyable,
// comparable with ==, and valid for the whole life of the environment
// that produced it. Databases are never individually closed by ordinary
// callers; the environment owns them.
type Database struct {
	dbi   mdbx.DBI
	flags DBFlags
	name  string
	ok    bool
	// known marks flags as authoritative: the handle was created through
	// this wrapper rather than adopted from an existing database.
	known bool
}

// DBI returns the engine-level identifier.
func (d Database) DBI() uint32 {
	return uint32(d.dbi)
}

// Flags returns the flags the database was created with. Authoritative
// only for handles created through CreateDB in this process; a handle
// from OpenDB on a pre-existing database adopted the on-disk flags and
// reports zero here.
func (d Database) Flags() DBFlags {
	return d.flags
}

// Name returns the database name. Empty for the unnamed root database.
func (d Database) Name() string {
	return d.name
}

// valid rejects handles that did not come from an open/create call. The
// zero Database would otherwise alias the engine's internal free-page
// table, which must never be touched by callers.
func (d Database) valid() error {
	if !d.ok {
		return NewError(ErrBadDBI)
	}
	return nil
}
