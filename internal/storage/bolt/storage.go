// Package bolt implements the storage contract over bbolt. A namespace owns
// one bbolt database file under the backend's data directory; objects map to
// buckets. Data survives Close, but the namespace registry does not: the
// contract does not require namespaces to be re-attachable across instances.
package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/imor/database/internal/storage"
)

// Backend implements storage.Backend.
type Backend struct {
	dataDir    string
	namespaces map[string]*namespaceDB
}

// namespaceDB is one namespace's database file. Namespace names are
// arbitrary strings, so files get uuid names instead. It tracks the read
// transactions held by open cursors: bbolt's Close blocks until every
// transaction finishes, so the ones still open must be rolled back before
// the database can be closed.
type namespaceDB struct {
	db   *bolt.DB
	path string

	mu      sync.Mutex
	cursors map[*cursor]struct{}
}

func (n *namespaceDB) track(c *cursor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cursors == nil {
		n.cursors = make(map[*cursor]struct{})
	}
	n.cursors[c] = struct{}{}
}

func (n *namespaceDB) untrack(c *cursor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cursors, c)
}

func (n *namespaceDB) releaseCursors() {
	n.mu.Lock()
	open := make([]*cursor, 0, len(n.cursors))
	for c := range n.cursors {
		open = append(open, c)
	}
	n.cursors = nil
	n.mu.Unlock()

	for _, c := range open {
		_ = c.release()
	}
}

func New(dataDir string) (*Backend, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Backend{
		dataDir:    dataDir,
		namespaces: make(map[string]*namespaceDB),
	}, nil
}

func (b *Backend) CreateNamespace(namespace string) error {
	if _, ok := b.namespaces[namespace]; ok {
		return storage.ErrNamespaceAlreadyExists
	}
	path := filepath.Join(b.dataDir, uuid.NewString()+".db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return mapError(err)
	}
	b.namespaces[namespace] = &namespaceDB{db: db, path: path}
	return nil
}

func (b *Backend) DropNamespace(namespace string) error {
	ns, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	delete(b.namespaces, namespace)
	ns.releaseCursors()
	if err := ns.db.Close(); err != nil {
		return mapError(err)
	}
	if err := ns.remove(); err != nil {
		return storage.IOError(err)
	}
	return nil
}

func (b *Backend) CreateObject(namespace, object string) error {
	ns, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	err := ns.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket([]byte(object))
		return err
	})
	if errors.Is(err, bolt.ErrBucketExists) {
		return storage.ErrObjectAlreadyExists
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (b *Backend) DropObject(namespace, object string) error {
	ns, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	err := ns.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(object))
	})
	if errors.Is(err, bolt.ErrBucketNotFound) {
		return storage.ErrObjectDoesNotExist
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (b *Backend) Write(namespace, object string, rows []storage.Row) (int, error) {
	ns, err := b.object(namespace, object)
	if err != nil {
		return 0, err
	}
	// One transaction per row: rows committed before a failure stay
	// committed, matching the contract's partial-effect policy.
	written := 0
	for _, row := range rows {
		err := ns.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(object))
			if bucket == nil {
				return bolt.ErrBucketNotFound
			}
			return bucket.Put(row.Key, row.Value)
		})
		if err != nil {
			return written, mapError(err)
		}
		written++
	}
	return written, nil
}

func (b *Backend) Read(namespace, object string) (storage.ReadCursor, error) {
	ns, err := b.object(namespace, object)
	if err != nil {
		return nil, err
	}
	tx, err := ns.db.Begin(false)
	if err != nil {
		return nil, mapError(err)
	}
	bucket := tx.Bucket([]byte(object))
	if bucket == nil {
		_ = tx.Rollback()
		return nil, storage.ErrObjectDoesNotExist
	}
	c := &cursor{ns: ns, tx: tx, c: bucket.Cursor()}
	ns.track(c)
	return c, nil
}

func (b *Backend) Delete(namespace, object string, keys []storage.Key) (int, error) {
	ns, err := b.object(namespace, object)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		removed := false
		err := ns.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(object))
			if bucket == nil {
				return bolt.ErrBucketNotFound
			}
			// Seek distinguishes an absent key from a stored empty value.
			k, _ := bucket.Cursor().Seek(key)
			if !bytes.Equal(k, key) {
				return nil
			}
			removed = true
			return bucket.Delete(key)
		})
		if err != nil {
			return deleted, mapError(err)
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// Close releases every namespace database, keeping the files on disk.
func (b *Backend) Close() error {
	var firstErr error
	for name, ns := range b.namespaces {
		ns.releaseCursors()
		if err := ns.db.Close(); err != nil && firstErr == nil {
			firstErr = mapError(err)
		}
		delete(b.namespaces, name)
	}
	return firstErr
}

func (b *Backend) object(namespace, object string) (*namespaceDB, error) {
	ns, ok := b.namespaces[namespace]
	if !ok {
		return nil, storage.ErrNamespaceDoesNotExist
	}
	var exists bool
	err := ns.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(object)) != nil
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, storage.ErrObjectDoesNotExist
	}
	return ns, nil
}

func (n *namespaceDB) remove() error {
	return os.Remove(n.path)
}

// cursor walks a bucket inside a read-only transaction. The transaction is
// rolled back as soon as the scan is exhausted, on Close, or when the
// namespace is dropped, whichever comes first.
type cursor struct {
	ns *namespaceDB
	tx *bolt.Tx
	c  *bolt.Cursor

	mu      sync.Mutex
	done    bool
	started bool
	row     storage.Row
}

func (c *cursor) Next() bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	var k, v []byte
	if !c.started {
		c.started = true
		k, v = c.c.First()
	} else {
		k, v = c.c.Next()
	}
	if k == nil {
		c.mu.Unlock()
		// Exhausted: give the read transaction back right away so an
		// unclosed cursor does not pin the database file.
		_ = c.release()
		return false
	}
	// Bucket memory is only valid inside the transaction; copy out.
	c.row = storage.Row{Key: bytes.Clone(k), Value: bytes.Clone(v)}
	c.mu.Unlock()
	return true
}

func (c *cursor) Row() (storage.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.row, nil
}

func (c *cursor) Close() error {
	if err := c.release(); err != nil {
		return mapError(err)
	}
	return nil
}

// release rolls the transaction back once. Later calls are no-ops, so Close
// after exhaustion or after a namespace drop stays error-free.
func (c *cursor) release() error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	err := c.tx.Rollback()
	c.mu.Unlock()

	c.ns.untrack(c)
	if err != nil && !errors.Is(err, bolt.ErrTxClosed) {
		return err
	}
	return nil
}
