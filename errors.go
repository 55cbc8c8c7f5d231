package mdbxsafe

import (
	"errors"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Error represents a failure of an engine call or a misuse of a handle,
// tagged with one of the closed set of kinds below.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mdbxsafe: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("mdbxsafe: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind identifies a failure category. The numeric values are the engine's
// native result codes, which form a fixed external enumeration.
type Kind int

const (
	// ErrKeyExist indicates the key (or key/value pair in a
	// duplicate-sorted database) already exists
	ErrKeyExist Kind = -30799

	// ErrNotFound indicates the requested key/data pair was not found.
	// Cursor iteration reports exhaustion with this kind.
	ErrNotFound Kind = -30798

	// ErrPageNotFound indicates a requested page was not found (corruption)
	ErrPageNotFound Kind = -30797

	// ErrCorrupted indicates the database is corrupted
	ErrCorrupted Kind = -30796

	// ErrPanic indicates a fatal environment error
	ErrPanic Kind = -30795

	// ErrVersionMismatch indicates the file version doesn't match the engine
	ErrVersionMismatch Kind = -30794

	// ErrInvalid indicates the file is not a valid database, or a handle
	// was used in a state where it is not usable
	ErrInvalid Kind = -30793

	// ErrMapFull indicates the configured map size was reached
	ErrMapFull Kind = -30792

	// ErrDBsFull indicates the configured max named databases was reached
	ErrDBsFull Kind = -30791

	// ErrReadersFull indicates the reader slot table is exhausted
	ErrReadersFull Kind = -30790

	// ErrTxnFull indicates the transaction has too many dirty pages
	ErrTxnFull Kind = -30788

	// ErrCursorFull indicates cursor stack overflow (corruption)
	ErrCursorFull Kind = -30787

	// ErrPageFull indicates a page has no space (internal error)
	ErrPageFull Kind = -30786

	// ErrIncompatible indicates an operation or flag set incompatible
	// with how the database was created
	ErrIncompatible Kind = -30784

	// ErrBadReaderSlot indicates a reader slot was corrupted or reused
	ErrBadReaderSlot Kind = -30783

	// ErrBadTxn indicates the transaction handle has already ended or is
	// otherwise unusable
	ErrBadTxn Kind = -30782

	// ErrBadValSize indicates an invalid key or value size
	ErrBadValSize Kind = -30781

	// ErrBadDBI indicates the database handle is invalid
	ErrBadDBI Kind = -30780

	// ErrBusy indicates another write transaction is running
	ErrBusy Kind = -30778

	// ErrOther tags engine result codes outside the closed enumeration,
	// and OS/I/O failures. The native code (or errno) travels in the
	// wrapped error.
	ErrOther Kind = -1
)

var kindMessages = map[Kind]string{
	ErrKeyExist:        "key/data pair already exists",
	ErrNotFound:        "key/data pair not found",
	ErrPageNotFound:    "requested page not found",
	ErrCorrupted:       "database is corrupted",
	ErrPanic:           "fatal environment error",
	ErrVersionMismatch: "database version mismatch",
	ErrInvalid:         "invalid database or handle state",
	ErrMapFull:         "environment map size limit reached",
	ErrDBsFull:         "environment max named databases reached",
	ErrReadersFull:     "environment reader slots exhausted",
	ErrTxnFull:         "transaction has too many dirty pages",
	ErrCursorFull:      "cursor stack overflow",
	ErrPageFull:        "page has no space",
	ErrIncompatible:    "incompatible operation or flags",
	ErrBadReaderSlot:   "reader slot corrupted",
	ErrBadTxn:          "transaction has ended or is invalid",
	ErrBadValSize:      "invalid key or value size",
	ErrBadDBI:          "invalid database handle",
	ErrBusy:            "another write transaction is running",
	ErrOther:           "engine error",
}

// NewError creates a new Error with the given kind.
func NewError(kind Kind) *Error {
	msg, ok := kindMessages[kind]
	if !ok {
		msg = fmt.Sprintf("unknown error kind %d", kind)
	}
	return &Error{Kind: kind, Message: msg}
}

// WrapError creates a new Error wrapping another error.
func WrapError(kind Kind, err error) *Error {
	e := NewError(kind)
	e.Err = err
	return e
}

// kinds probed when the engine error does not expose its errno through
// the unwrap chain. Ordered by how likely they are in practice.
var probeKinds = []Kind{
	ErrNotFound, ErrKeyExist, ErrMapFull, ErrIncompatible, ErrReadersFull,
	ErrDBsFull, ErrTxnFull, ErrBadValSize, ErrBadDBI, ErrBadTxn, ErrBusy,
	ErrCorrupted, ErrPageNotFound, ErrCursorFull, ErrPageFull,
	ErrBadReaderSlot, ErrVersionMismatch, ErrPanic, ErrInvalid,
}

// fromEngine converts an engine (mdbx-go) error into an *Error carrying
// the matching kind. Non-engine errors (OS, path, permission failures)
// come back as ErrOther with the original error wrapped. A nil input
// returns nil.
func fromEngine(err error) error {
	if err == nil {
		return nil
	}

	var errno mdbx.Errno
	if errors.As(err, &errno) {
		return kindError(Kind(errno), err)
	}

	// The engine wraps result codes in operation errors that predate
	// errors.Unwrap. Probe the known codes through the engine's own
	// matcher.
	for _, k := range probeKinds {
		if mdbx.IsErrno(err, mdbx.Errno(k)) {
			return kindError(k, err)
		}
	}

	return WrapError(ErrOther, err)
}

// kindError maps a native code to an *Error, collapsing codes outside
// the closed enumeration into ErrOther.
func kindError(k Kind, err error) *Error {
	if _, ok := kindMessages[k]; !ok {
		return WrapError(ErrOther, err)
	}
	e := NewError(k)
	e.Err = err
	return e
}

// KindOf returns the kind carried by err, or ErrOther if err is not an
// *Error from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrOther
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrNotFound
	}
	return false
}

// IsKeyExist returns true if the error is ErrKeyExist.
func IsKeyExist(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrKeyExist
	}
	return false
}

// IsMapFull returns true if the error is ErrMapFull.
func IsMapFull(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrMapFull
	}
	return false
}

// IsCorrupted returns true if the error indicates database corruption.
func IsCorrupted(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrCorrupted || e.Kind == ErrPageNotFound
	}
	return false
}
