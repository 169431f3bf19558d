// Package storage defines the pluggable two-level storage contract:
// namespaces contain named objects, each object an ordered byte-key/byte-value
// container. Backends implement the contract over an embedded engine and
// translate engine failures into SystemError through their own error mapper.
package storage

import "errors"

// Domain errors are expected, named outcomes of specific operations. Callers
// branch on them with errors.Is as part of normal control flow. They are
// never wrapped around a SystemError or vice versa; a system failure always
// takes precedence over a domain condition, and namespace absence always
// takes precedence over object absence.
var (
	ErrNamespaceAlreadyExists = errors.New("storage: namespace already exists")
	ErrNamespaceDoesNotExist  = errors.New("storage: namespace does not exist")
	ErrObjectAlreadyExists    = errors.New("storage: object already exists")
	ErrObjectDoesNotExist     = errors.New("storage: object does not exist")
)

type (
	// Key is a row key, unique within an object.
	Key []byte
	// Value is an opaque row value. Any column packing is the caller's
	// concern; the storage layer stores the blob verbatim.
	Value []byte
)

// Row is a single key/value pair within an object.
type Row struct {
	Key   Key
	Value Value
}

// Backend is the storage contract. A backend instance owns a set of
// namespaces, each holding independently named objects. The contract defines
// no internal locking: callers serialize access to one instance, while the
// backing engine provides its own safety for single-key operations.
//
// Every operation may also fail with a *SystemError when the backing engine
// itself fails; callers distinguish the two layers with errors.Is on the
// domain sentinels and errors.As on *SystemError.
type Backend interface {
	// CreateNamespace registers a new namespace backed by a fresh, isolated
	// engine database. Fails with ErrNamespaceAlreadyExists.
	CreateNamespace(namespace string) error
	// DropNamespace releases the namespace's database and with it every
	// object the namespace owns. Fails with ErrNamespaceDoesNotExist.
	DropNamespace(namespace string) error
	// CreateObject creates a named object inside an existing namespace.
	// Fails with ErrNamespaceDoesNotExist or ErrObjectAlreadyExists.
	CreateObject(namespace, object string) error
	// DropObject removes an object and its rows. Fails with
	// ErrNamespaceDoesNotExist or ErrObjectDoesNotExist.
	DropObject(namespace, object string) error
	// Write upserts the given rows in order and returns the number written.
	// A repeated key overwrites the prior value. On an engine failure the
	// operation aborts immediately; rows written before the failure stay
	// written and are included in the returned count. Fails with
	// ErrNamespaceDoesNotExist or ErrObjectDoesNotExist.
	Write(namespace, object string, rows []Row) (int, error)
	// Read returns a cursor over all rows of the object. Existence of the
	// namespace and object is checked eagerly; row production is lazy.
	// Fails with ErrNamespaceDoesNotExist or ErrObjectDoesNotExist.
	Read(namespace, object string) (ReadCursor, error)
	// Delete removes the listed keys and returns how many were actually
	// removed. Removing an absent key is not an error and does not count.
	// The partial-effect policy of Write applies. Fails with
	// ErrNamespaceDoesNotExist or ErrObjectDoesNotExist.
	Delete(namespace, object string, keys []Key) (int, error)
}

// ReadCursor is a lazy, single-pass, non-restartable row stream. Next
// reports whether another result is available; Row returns it — either a
// row or the *SystemError that position produced. An error for one position
// is independent of prior positions succeeding.
type ReadCursor interface {
	Next() bool
	Row() (Row, error)
	Close() error
}
