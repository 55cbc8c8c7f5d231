package mdbxsafe

import (
	"strings"

	"github.com/erigontech/mdbx-go/mdbx"
)

// EnvFlags configure how an environment is opened. Combine with |.
type EnvFlags uint32

const (
	// NoSubdir means the path is a data file, not a directory
	NoSubdir EnvFlags = 1 << iota

	// ReadOnly opens the environment without write access
	ReadOnly

	// Exclusive opens in exclusive mode; the caller manages any
	// cross-process coordination itself
	Exclusive

	// Accede adopts the mode already in use by other processes
	Accede

	// WriteMap mutates through the shared mapping (faster, riskier)
	WriteMap

	// NoMetaSync skips the meta page sync after commit
	NoMetaSync

	// SafeNoSync skips data sync on commit but keeps steady commit points
	SafeNoSync

	// UtterlyNoSync skips all syncing (dangerous)
	UtterlyNoSync

	// NoReadahead disables OS readahead on the map
	NoReadahead

	// NoMemInit skips zeroing of freshly allocated memory
	NoMemInit

	// LifoReclaim reuses freed pages in LIFO order
	LifoReclaim
)

var envFlagBits = []struct {
	flag   EnvFlags
	engine uint
	name   string
}{
	{NoSubdir, mdbx.NoSubdir, "NoSubdir"},
	{ReadOnly, mdbx.Readonly, "ReadOnly"},
	{Exclusive, mdbx.Exclusive, "Exclusive"},
	{Accede, mdbx.Accede, "Accede"},
	{WriteMap, mdbx.WriteMap, "WriteMap"},
	{NoMetaSync, mdbx.NoMetaSync, "NoMetaSync"},
	{SafeNoSync, mdbx.SafeNoSync, "SafeNoSync"},
	{UtterlyNoSync, mdbx.UtterlyNoSync, "UtterlyNoSync"},
	{NoReadahead, mdbx.NoReadahead, "NoReadahead"},
	{NoMemInit, mdbx.NoMemInit, "NoMemInit"},
	{LifoReclaim, mdbx.LifoReclaim, "LifoReclaim"},
}

// engine translates the typed set into the engine's bit values.
func (f EnvFlags) engine() uint {
	var out uint
	for _, b := range envFlagBits {
		if f&b.flag != 0 {
			out |= b.engine
		}
	}
	return out
}

func (f EnvFlags) String() string {
	var names []string
	for _, b := range envFlagBits {
		if f&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, "|")
}

// DBFlags configure how a database behaves, fixed at creation time.
type DBFlags uint32

const (
	// ReverseKey compares keys back-to-front
	ReverseKey DBFlags = 1 << iota

	// DupSort keeps multiple values per key, sorted
	DupSort

	// DupFixed stores fixed-size values in a DupSort database
	DupFixed

	// ReverseDup compares duplicate values back-to-front
	ReverseDup
)

var dbFlagBits = []struct {
	flag   DBFlags
	engine uint
	name   string
}{
	{ReverseKey, mdbx.ReverseKey, "ReverseKey"},
	{DupSort, mdbx.DupSort, "DupSort"},
	{DupFixed, mdbx.DupFixed, "DupFixed"},
	{ReverseDup, mdbx.ReverseDup, "ReverseDup"},
}

func (f DBFlags) engine() uint {
	var out uint
	for _, b := range dbFlagBits {
		if f&b.flag != 0 {
			out |= b.engine
		}
	}
	return out
}

func (f DBFlags) String() string {
	var names []string
	for _, b := range dbFlagBits {
		if f&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, "|")
}

// WriteFlags modify the semantics of Put and cursor mutations.
type WriteFlags uint32

const (
	// NoOverwrite fails with ErrKeyExist if the key already exists, even
	// in a DupSort database
	NoOverwrite WriteFlags = 1 << iota

	// NoDupData fails with ErrKeyExist if the exact key/value duplicate
	// already exists (DupSort only)
	NoDupData

	// Current overwrites the value at the cursor's current position
	Current

	// AllDups applies the operation to every duplicate of the key
	AllDups

	// Append asserts the key sorts after every existing key; violating
	// the assertion fails the put
	Append

	// AppendDup is Append for duplicate values under one key
	AppendDup
)

var writeFlagBits = []struct {
	flag   WriteFlags
	engine uint
	name   string
}{
	{NoOverwrite, mdbx.NoOverwrite, "NoOverwrite"},
	{NoDupData, mdbx.NoDupData, "NoDupData"},
	{Current, mdbx.Current, "Current"},
	{AllDups, mdbx.AllDups, "AllDups"},
	{Append, mdbx.Append, "Append"},
	{AppendDup, mdbx.AppendDup, "AppendDup"},
}

func (f WriteFlags) engine() uint {
	var out uint
	for _, b := range writeFlagBits {
		if f&b.flag != 0 {
			out |= b.engine
		}
	}
	return out
}

func (f WriteFlags) String() string {
	var names []string
	for _, b := range writeFlagBits {
		if f&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, "|")
}
