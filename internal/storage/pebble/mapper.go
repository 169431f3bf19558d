package pebble

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/imor/database/internal/storage"
	kvpebble "github.com/imor/database/pkg/db/pebble"
)

// mapError translates an engine failure into the contract's SystemError.
// The translation is total over the engine's error codes; a code outside
// the known set maps to an unrecoverable error, never anything innocuous.
func mapError(err error) *storage.SystemError {
	var engineErr *kvpebble.Error
	if !errors.As(err, &engineErr) {
		return storage.UnrecoverableWithCause("unexpected storage engine failure", err)
	}
	switch engineErr.Code {
	case kvpebble.CodeKeyspaceNotFound:
		if !utf8.Valid(engineErr.Resource) {
			return storage.Unrecoverable(fmt.Sprintf(
				"system keyspace with undecodable name %v can't be found", engineErr.Resource))
		}
		return storage.Unrecoverable(fmt.Sprintf(
			"system keyspace [%s] can't be found", engineErr.Resource))
	case kvpebble.CodeUnsupported:
		return storage.Unrecoverable(fmt.Sprintf(
			"unsupported operation [%s] was used on the storage engine", engineErr.Operation))
	case kvpebble.CodeCorruption:
		if engineErr.Location != "" {
			return storage.UnrecoverableWithCause(fmt.Sprintf(
				"storage engine encountered corruption at %s", engineErr.Location), engineErr.Err)
		}
		return storage.UnrecoverableWithCause("storage engine encountered corruption", engineErr.Err)
	case kvpebble.CodeBug:
		return storage.Unrecoverable(fmt.Sprintf(
			"storage engine encountered reportable bug: %v", engineErr.Err))
	case kvpebble.CodeIO:
		return storage.IOError(engineErr.Err)
	}
	return storage.UnrecoverableWithCause(fmt.Sprintf(
		"storage engine failure with unknown code %d", engineErr.Code), engineErr)
}
