package pebble

import (
	"github.com/cockroachdb/pebble"

	"github.com/imor/database/pkg/db"
)

// Keyspace implements db.Keyspace as a prefixed slice of the database's
// flat key space. A handle stays valid until its keyspace is dropped or the
// database is closed.
type Keyspace struct {
	db *Database
	id uint32
}

func (k *Keyspace) Put(key, value []byte) error {
	if k.db.closed.Load() {
		return ErrClosed
	}
	return classify(k.db.db.Set(dataKey(k.id, key), value, pebble.Sync))
}

func (k *Keyspace) Get(key []byte) ([]byte, error) {
	if k.db.closed.Load() {
		return nil, ErrClosed
	}
	value, closer, err := k.db.db.Get(dataKey(k.id, key))
	if err == pebble.ErrNotFound {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (k *Keyspace) Delete(key []byte) error {
	if k.db.closed.Load() {
		return ErrClosed
	}
	return classify(k.db.db.Delete(dataKey(k.id, key), pebble.Sync))
}

func (k *Keyspace) NewIterator() (db.Iterator, error) {
	if k.db.closed.Load() {
		return nil, ErrClosed
	}
	iter, err := k.db.db.NewIter(&pebble.IterOptions{
		LowerBound: dataKey(k.id, nil),
		UpperBound: dataUpperBound(k.id),
	})
	if err != nil {
		return nil, classify(err)
	}
	return &Iterator{iter: iter}, nil
}
