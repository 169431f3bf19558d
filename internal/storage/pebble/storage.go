// Package pebble implements the storage contract over the pebble-backed
// keyspace engine. A namespace owns one ephemeral engine database; an object
// maps to one named keyspace inside it.
package pebble

import (
	"errors"
	"slices"

	"github.com/imor/database/internal/storage"
	"github.com/imor/database/pkg/db"
	kvpebble "github.com/imor/database/pkg/db/pebble"
)

// Backend implements storage.Backend. The zero value is not usable; use New.
type Backend struct {
	namespaces map[string]db.Database
}

func New() *Backend {
	return &Backend{namespaces: make(map[string]db.Database)}
}

func (b *Backend) CreateNamespace(namespace string) error {
	if _, ok := b.namespaces[namespace]; ok {
		return storage.ErrNamespaceAlreadyExists
	}
	database, err := kvpebble.Open("")
	if err != nil {
		return mapError(err)
	}
	b.namespaces[namespace] = database
	return nil
}

func (b *Backend) DropNamespace(namespace string) error {
	database, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	delete(b.namespaces, namespace)
	if err := database.Close(); err != nil {
		return mapError(err)
	}
	return nil
}

func (b *Backend) CreateObject(namespace, object string) error {
	database, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	names, err := database.Keyspaces()
	if err != nil {
		return mapError(err)
	}
	if slices.Contains(names, object) {
		return storage.ErrObjectAlreadyExists
	}
	if _, err := database.OpenKeyspace(object); err != nil {
		return mapError(err)
	}
	return nil
}

func (b *Backend) DropObject(namespace, object string) error {
	database, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	existed, err := database.DropKeyspace(object)
	if err != nil {
		return mapError(err)
	}
	if !existed {
		return storage.ErrObjectDoesNotExist
	}
	return nil
}

func (b *Backend) Write(namespace, object string, rows []storage.Row) (int, error) {
	keyspace, err := b.openObject(namespace, object)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, row := range rows {
		if err := keyspace.Put(row.Key, row.Value); err != nil {
			return written, mapError(err)
		}
		written++
	}
	return written, nil
}

func (b *Backend) Read(namespace, object string) (storage.ReadCursor, error) {
	keyspace, err := b.openObject(namespace, object)
	if err != nil {
		return nil, err
	}
	iter, err := keyspace.NewIterator()
	if err != nil {
		return nil, mapError(err)
	}
	return &cursor{iter: iter}, nil
}

func (b *Backend) Delete(namespace, object string, keys []storage.Key) (int, error) {
	keyspace, err := b.openObject(namespace, object)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		_, err := keyspace.Get(key)
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return deleted, mapError(err)
		}
		if err := keyspace.Delete(key); err != nil {
			return deleted, mapError(err)
		}
		deleted++
	}
	return deleted, nil
}

// Close releases every namespace. The backend is unusable afterwards.
func (b *Backend) Close() error {
	var firstErr error
	for name, database := range b.namespaces {
		if err := database.Close(); err != nil && firstErr == nil {
			firstErr = mapError(err)
		}
		delete(b.namespaces, name)
	}
	return firstErr
}

// openObject resolves namespace and object, in that order of precedence,
// and returns a keyspace handle for the object.
func (b *Backend) openObject(namespace, object string) (db.Keyspace, error) {
	database, ok := b.namespaces[namespace]
	if !ok {
		return nil, storage.ErrNamespaceDoesNotExist
	}
	names, err := database.Keyspaces()
	if err != nil {
		return nil, mapError(err)
	}
	if !slices.Contains(names, object) {
		return nil, storage.ErrObjectDoesNotExist
	}
	keyspace, err := database.OpenKeyspace(object)
	if err != nil {
		return nil, mapError(err)
	}
	return keyspace, nil
}

// cursor adapts an engine iterator to the contract's row stream. A failed
// value read or a terminal iterator error is surfaced as one error result;
// positions before it are unaffected.
type cursor struct {
	iter     db.Iterator
	row      storage.Row
	err      error
	reported bool
}

func (c *cursor) Next() bool {
	if c.iter.Next() {
		key := c.iter.Key()
		value, err := c.iter.Value()
		if err != nil {
			c.row, c.err = storage.Row{}, mapError(err)
		} else {
			c.row, c.err = storage.Row{Key: key, Value: value}, nil
		}
		return true
	}
	if err := c.iter.Error(); err != nil && !c.reported {
		c.reported = true
		c.row, c.err = storage.Row{}, mapError(err)
		return true
	}
	return false
}

func (c *cursor) Row() (storage.Row, error) {
	return c.row, c.err
}

func (c *cursor) Close() error {
	if err := c.iter.Close(); err != nil {
		return mapError(err)
	}
	return nil
}
