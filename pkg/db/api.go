package db

import "errors"

// ErrKeyNotFound is returned by Keyspace.Get when the key is absent.
// It is ordinary control flow, not an engine failure.
var ErrKeyNotFound = errors.New("db: key not found")

// Database is a handle to one isolated database instance holding zero or
// more named keyspaces. Implementations own the underlying storage; closing
// the database releases every keyspace in it.
type Database interface {
	// OpenKeyspace returns a handle to the named keyspace, creating it if
	// it does not exist yet.
	OpenKeyspace(name string) (Keyspace, error)
	// Keyspaces lists the names of all keyspaces in the database.
	Keyspaces() ([]string, error)
	// DropKeyspace removes the named keyspace and all of its data.
	// It reports whether the keyspace existed.
	DropKeyspace(name string) (bool, error)
	Close() error
}

// Keyspace is an ordered byte-key/byte-value container within a Database.
type Keyspace interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// NewIterator returns a full-scan iterator over the keyspace in
	// byte-lexicographic key order.
	NewIterator() (Iterator, error)
}

// Iterator provides sequential access over a keyspace's key-value pairs.
// A fresh iterator is un-positioned; the first Next positions it at the
// first pair. Iterators must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	// Error reports the failure that stopped iteration, if any.
	Error() error
	Close() error
}
