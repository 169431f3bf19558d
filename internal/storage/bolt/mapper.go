package bolt

import (
	"errors"
	"fmt"
	"io/fs"

	bolt "go.etcd.io/bbolt"

	"github.com/imor/database/internal/storage"
)

// mapError translates a bbolt failure into the contract's SystemError. The
// translation covers bbolt's whole sentinel set explicitly; anything outside
// it maps to an unrecoverable error, never anything innocuous.
func mapError(err error) *storage.SystemError {
	switch {
	case errors.Is(err, bolt.ErrBucketNotFound):
		return storage.Unrecoverable("bucket backing an open object can't be found")
	case errors.Is(err, bolt.ErrChecksum),
		errors.Is(err, bolt.ErrInvalid),
		errors.Is(err, bolt.ErrVersionMismatch):
		return storage.UnrecoverableWithCause("namespace database file is corrupted", err)
	case errors.Is(err, bolt.ErrKeyRequired),
		errors.Is(err, bolt.ErrKeyTooLarge),
		errors.Is(err, bolt.ErrValueTooLarge),
		errors.Is(err, bolt.ErrBucketNameRequired),
		errors.Is(err, bolt.ErrIncompatibleValue):
		return storage.Unrecoverable(fmt.Sprintf("unsupported operation was used on bbolt: %v", err))
	case errors.Is(err, bolt.ErrTimeout):
		return storage.IOError(err)
	case errors.Is(err, bolt.ErrDatabaseNotOpen),
		errors.Is(err, bolt.ErrDatabaseReadOnly),
		errors.Is(err, bolt.ErrTxClosed),
		errors.Is(err, bolt.ErrTxNotWritable),
		errors.Is(err, bolt.ErrBucketExists):
		return storage.Unrecoverable(fmt.Sprintf("bbolt reported a broken adapter invariant: %v", err))
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return storage.IOError(err)
	}
	return storage.UnrecoverableWithCause("unexpected bbolt failure", err)
}
