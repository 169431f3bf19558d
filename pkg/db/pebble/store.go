package pebble

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/imor/database/pkg/db"
)

// Key layout inside the flat pebble key space. Catalog entries map keyspace
// names to 4-byte ids; data keys are the id followed by the user key.
const (
	prefixCatalog byte = iota
	prefixData
	prefixSentinel
)

const keyspaceIDLen = 4

// Database implements db.Database over a single pebble instance. Named
// keyspaces are carved out of the flat key space via the catalog.
type Database struct {
	db     *pebble.DB
	nextID uint32
	closed atomic.Bool
}

// Open opens a database at path. An empty path opens an ephemeral database
// on an in-memory filesystem that is discarded on Close.
func Open(path string) (*Database, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	}
	pdb, err := pebble.Open(path, opts)
	if err != nil {
		return nil, classify(err)
	}
	d := &Database{db: pdb}
	if err := d.loadNextID(); err != nil {
		_ = pdb.Close()
		return nil, err
	}
	return d, nil
}

// loadNextID scans the catalog so id allocation resumes past any keyspace
// recorded by a previous session.
func (d *Database) loadNextID() error {
	d.nextID = 1
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixCatalog},
		UpperBound: []byte{prefixData},
	})
	if err != nil {
		return classify(err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := decodeCatalogValue(iter.Key()[1:], iter.Value())
		if err != nil {
			return err
		}
		if id >= d.nextID {
			d.nextID = id + 1
		}
	}
	return classify(iter.Error())
}

// OpenKeyspace returns a handle to the named keyspace, creating it and
// recording it in the catalog if it does not exist yet.
func (d *Database) OpenKeyspace(name string) (db.Keyspace, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	id, found, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if found {
		return &Keyspace{db: d, id: id}, nil
	}
	if d.nextID == math.MaxUint32 {
		return nil, &Error{Code: CodeUnsupported, Operation: fmt.Sprintf("open keyspace %q: id space exhausted", name)}
	}
	id = d.nextID
	var value [keyspaceIDLen]byte
	binary.BigEndian.PutUint32(value[:], id)
	if err := d.db.Set(catalogKey(name), value[:], pebble.Sync); err != nil {
		return nil, classify(err)
	}
	d.nextID++
	return &Keyspace{db: d, id: id}, nil
}

// Keyspaces lists the names of all keyspaces recorded in the catalog.
func (d *Database) Keyspaces() ([]string, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixCatalog},
		UpperBound: []byte{prefixData},
	})
	if err != nil {
		return nil, classify(err)
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[1:]))
	}
	if err := iter.Error(); err != nil {
		return nil, classify(err)
	}
	return names, nil
}

// DropKeyspace removes the named keyspace, its catalog entry and all of its
// data in one atomic batch. It reports whether the keyspace existed.
// Handles previously returned for the keyspace become invalid.
func (d *Database) DropKeyspace(name string) (bool, error) {
	if d.closed.Load() {
		return false, ErrClosed
	}
	id, found, err := d.lookup(name)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	batch := d.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(catalogKey(name), nil); err != nil {
		return false, classify(err)
	}
	if err := batch.DeleteRange(dataKey(id, nil), dataUpperBound(id), nil); err != nil {
		return false, classify(err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (d *Database) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return classify(d.db.Close())
}

// lookup resolves a keyspace name through the catalog.
func (d *Database) lookup(name string) (uint32, bool, error) {
	value, closer, err := d.db.Get(catalogKey(name))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(err)
	}
	defer closer.Close()
	id, derr := decodeCatalogValue([]byte(name), value)
	if derr != nil {
		return 0, false, derr
	}
	return id, true, nil
}

func decodeCatalogValue(name, value []byte) (uint32, error) {
	if len(value) != keyspaceIDLen {
		return 0, &Error{
			Code:     CodeCorruption,
			Location: fmt.Sprintf("catalog entry %q", name),
			Err:      fmt.Errorf("id is %d bytes, want %d", len(value), keyspaceIDLen),
		}
	}
	return binary.BigEndian.Uint32(value), nil
}

func catalogKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = prefixCatalog
	copy(key[1:], name)
	return key
}

// dataKey builds the physical key for a user key within a keyspace.
func dataKey(id uint32, key []byte) []byte {
	out := make([]byte, 1+keyspaceIDLen+len(key))
	out[0] = prefixData
	binary.BigEndian.PutUint32(out[1:], id)
	copy(out[1+keyspaceIDLen:], key)
	return out
}

// dataUpperBound is the exclusive upper bound of a keyspace's data range.
func dataUpperBound(id uint32) []byte {
	if id == math.MaxUint32 {
		return []byte{prefixSentinel}
	}
	return dataKey(id+1, nil)
}
