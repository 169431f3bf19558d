package pebble

import (
	"github.com/cockroachdb/pebble"
)

// Iterator walks one keyspace's data range once. Keys are returned with
// the physical keyspace prefix stripped. After Next has returned false the
// iterator stays exhausted; it never repositions to the first key.
type Iterator struct {
	iter      *pebble.Iterator
	started   bool
	exhausted bool
}

func (it *Iterator) Next() bool {
	if it.exhausted {
		return false
	}
	var ok bool
	switch {
	case !it.started:
		// Position the un-positioned iterator at the first key
		it.started = true
		ok = it.iter.First()
	case !it.iter.Valid():
		// Positioned once but no longer valid: an error stopped the scan
		ok = false
	default:
		ok = it.iter.Next()
	}
	if !ok {
		it.exhausted = true
	}
	return ok
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	if len(key) < 1+keyspaceIDLen {
		return nil
	}
	key = key[1+keyspaceIDLen:]
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, classify(err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *Iterator) Error() error {
	return classify(it.iter.Error())
}

func (it *Iterator) Close() error {
	return classify(it.iter.Close())
}
