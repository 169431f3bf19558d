// Package memory implements the storage contract entirely in memory, one
// ordered B-tree per object. It backs tests and workloads that need no
// durability; no system error is reachable through it.
package memory

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/imor/database/internal/storage"
)

const btreeDegree = 32

type item struct {
	key   []byte
	value []byte
}

func (i *item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*item).key) < 0
}

// Backend implements storage.Backend. The mutex guards the trees, playing
// the role an embedded engine's internal safety plays for the other
// backends; cross-call serialization is still the caller's concern.
type Backend struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*btree.BTree
}

func New() *Backend {
	return &Backend{namespaces: make(map[string]map[string]*btree.BTree)}
}

func (b *Backend) CreateNamespace(namespace string) error {
	if _, ok := b.namespaces[namespace]; ok {
		return storage.ErrNamespaceAlreadyExists
	}
	b.namespaces[namespace] = make(map[string]*btree.BTree)
	return nil
}

func (b *Backend) DropNamespace(namespace string) error {
	if _, ok := b.namespaces[namespace]; !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	delete(b.namespaces, namespace)
	return nil
}

func (b *Backend) CreateObject(namespace, object string) error {
	objects, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	if _, ok := objects[object]; ok {
		return storage.ErrObjectAlreadyExists
	}
	objects[object] = btree.New(btreeDegree)
	return nil
}

func (b *Backend) DropObject(namespace, object string) error {
	objects, ok := b.namespaces[namespace]
	if !ok {
		return storage.ErrNamespaceDoesNotExist
	}
	if _, ok := objects[object]; !ok {
		return storage.ErrObjectDoesNotExist
	}
	delete(objects, object)
	return nil
}

func (b *Backend) Write(namespace, object string, rows []storage.Row) (int, error) {
	tree, err := b.object(namespace, object)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		tree.ReplaceOrInsert(&item{
			key:   bytes.Clone(row.Key),
			value: bytes.Clone(row.Value),
		})
	}
	return len(rows), nil
}

func (b *Backend) Read(namespace, object string) (storage.ReadCursor, error) {
	tree, err := b.object(namespace, object)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	// Copy-on-write clone: the cursor sees the object as of this call and
	// later writes do not disturb the walk.
	return &cursor{tree: tree.Clone()}, nil
}

func (b *Backend) Delete(namespace, object string, keys []storage.Key) (int, error) {
	tree, err := b.object(namespace, object)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	for _, key := range keys {
		if tree.Delete(&item{key: key}) != nil {
			deleted++
		}
	}
	return deleted, nil
}

func (b *Backend) object(namespace, object string) (*btree.BTree, error) {
	objects, ok := b.namespaces[namespace]
	if !ok {
		return nil, storage.ErrNamespaceDoesNotExist
	}
	tree, ok := objects[object]
	if !ok {
		return nil, storage.ErrObjectDoesNotExist
	}
	return tree, nil
}

// cursor steps through the cloned tree one key at a time, resuming after
// the last key it returned.
type cursor struct {
	tree    *btree.BTree
	last    []byte
	started bool
	row     storage.Row
}

func (c *cursor) Next() bool {
	var found *item
	if !c.started {
		c.started = true
		c.tree.Ascend(func(i btree.Item) bool {
			found = i.(*item)
			return false
		})
	} else {
		c.tree.AscendGreaterOrEqual(&item{key: c.last}, func(i btree.Item) bool {
			it := i.(*item)
			if bytes.Equal(it.key, c.last) {
				return true
			}
			found = it
			return false
		})
	}
	if found == nil {
		return false
	}
	c.last = found.key
	c.row = storage.Row{
		Key:   bytes.Clone(found.key),
		Value: bytes.Clone(found.value),
	}
	return true
}

func (c *cursor) Row() (storage.Row, error) {
	return c.row, nil
}

func (c *cursor) Close() error { return nil }
