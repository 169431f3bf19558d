// Package storagetest holds the contract test suite shared by every
// storage backend.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imor/database/internal/storage"
)

// Run exercises the storage contract against a backend. open must return a
// fresh, empty backend on every call.
func Run(t *testing.T, open func(t *testing.T) storage.Backend) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b storage.Backend)
	}{
		{"create_namespaces_with_different_names", testCreateNamespaces},
		{"create_namespace_with_existing_name", testCreateNamespaceTwice},
		{"drop_namespace_then_recreate", testDropNamespaceThenRecreate},
		{"drop_namespace_that_was_not_created", testDropMissingNamespace},
		{"dropping_namespace_drops_objects_in_it", testDropNamespaceCascades},
		{"create_objects_with_different_names", testCreateObjects},
		{"create_object_with_existing_name", testCreateObjectTwice},
		{"create_object_with_same_name_in_different_namespaces", testSameObjectNameTwoNamespaces},
		{"create_object_in_missing_namespace", testCreateObjectMissingNamespace},
		{"drop_object_then_recreate", testDropObjectThenRecreate},
		{"drop_object_that_was_not_created", testDropMissingObject},
		{"drop_object_in_missing_namespace", testDropObjectMissingNamespace},
		{"write_and_read_single_row", testWriteReadSingleRow},
		{"writes_accumulate", testWritesAccumulate},
		{"repeated_key_last_write_wins", testLastWriteWins},
		{"roundtrip_is_insertion_order_independent", testRoundtripOrderIndependent},
		{"namespace_absence_takes_precedence", testNamespacePrecedence},
		{"operations_on_missing_object", testMissingObject},
		{"cursor_stays_exhausted", testCursorStaysExhausted},
		{"delete_subset_of_keys", testDeleteSubset},
		{"delete_missing_key_does_not_count", testDeleteMissingKey},
		{"namespaces_are_isolated", testNamespaceIsolation},
		{"full_scenario", testScenario},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func row(key, value string) storage.Row {
	return storage.Row{Key: storage.Key(key), Value: storage.Value(value)}
}

func createObject(t *testing.T, b storage.Backend, namespace, object string) {
	t.Helper()
	require.NoError(t, b.CreateNamespace(namespace))
	require.NoError(t, b.CreateObject(namespace, object))
}

// readAll drains a read cursor into a key→value map, asserting that no key
// is produced twice and no position fails.
func readAll(t *testing.T, b storage.Backend, namespace, object string) map[string]string {
	t.Helper()
	cursor, err := b.Read(namespace, object)
	require.NoError(t, err)
	defer cursor.Close()

	rows := make(map[string]string)
	for cursor.Next() {
		r, err := cursor.Row()
		require.NoError(t, err)
		_, seen := rows[string(r.Key)]
		require.False(t, seen, "duplicate key %q in cursor", r.Key)
		rows[string(r.Key)] = string(r.Value)
	}
	return rows
}

func testCreateNamespaces(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace_1"))
	require.NoError(t, b.CreateNamespace("namespace_2"))
}

func testCreateNamespaceTwice(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))
	assert.ErrorIs(t, b.CreateNamespace("namespace"), storage.ErrNamespaceAlreadyExists)
}

func testDropNamespaceThenRecreate(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.DropNamespace("namespace"))
	require.NoError(t, b.CreateNamespace("namespace"))
}

func testDropMissingNamespace(t *testing.T, b storage.Backend) {
	assert.ErrorIs(t, b.DropNamespace("does_not_exist"), storage.ErrNamespaceDoesNotExist)
}

func testDropNamespaceCascades(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name_1"))
	require.NoError(t, b.CreateObject("namespace", "object_name_2"))

	require.NoError(t, b.DropNamespace("namespace"))

	// A fresh namespace of the same name starts with zero objects.
	require.NoError(t, b.CreateNamespace("namespace"))
	_, err := b.Read("namespace", "object_name_1")
	assert.ErrorIs(t, err, storage.ErrObjectDoesNotExist)
	require.NoError(t, b.CreateObject("namespace", "object_name_1"))
	require.NoError(t, b.CreateObject("namespace", "object_name_2"))
}

func testCreateObjects(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name_1"))
	require.NoError(t, b.CreateObject("namespace", "object_name_2"))
}

func testCreateObjectTwice(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")
	assert.ErrorIs(t, b.CreateObject("namespace", "object_name"), storage.ErrObjectAlreadyExists)
}

func testSameObjectNameTwoNamespaces(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace_1"))
	require.NoError(t, b.CreateNamespace("namespace_2"))
	require.NoError(t, b.CreateObject("namespace_1", "object_name"))
	require.NoError(t, b.CreateObject("namespace_2", "object_name"))
}

func testCreateObjectMissingNamespace(t *testing.T, b storage.Backend) {
	assert.ErrorIs(t, b.CreateObject("not_existent", "object_name"), storage.ErrNamespaceDoesNotExist)
}

func testDropObjectThenRecreate(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")
	require.NoError(t, b.DropObject("namespace", "object_name"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
}

func testDropMissingObject(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))
	assert.ErrorIs(t, b.DropObject("namespace", "not_existent"), storage.ErrObjectDoesNotExist)
}

func testDropObjectMissingNamespace(t *testing.T, b storage.Backend) {
	assert.ErrorIs(t, b.DropObject("not_existent", "object"), storage.ErrNamespaceDoesNotExist)
}

func testWriteReadSingleRow(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")

	written, err := b.Write("namespace", "object_name", []storage.Row{row("1", "123")})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	assert.Equal(t, map[string]string{"1": "123"}, readAll(t, b, "namespace", "object_name"))
}

func testWritesAccumulate(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")

	written, err := b.Write("namespace", "object_name", []storage.Row{row("1", "123")})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	written, err = b.Write("namespace", "object_name", []storage.Row{row("2", "456")})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	assert.Equal(t,
		map[string]string{"1": "123", "2": "456"},
		readAll(t, b, "namespace", "object_name"))
}

func testLastWriteWins(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")

	written, err := b.Write("namespace", "object_name", []storage.Row{
		row("1", "old"),
		row("1", "new"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	assert.Equal(t, map[string]string{"1": "new"}, readAll(t, b, "namespace", "object_name"))
}

func testRoundtripOrderIndependent(t *testing.T, b storage.Backend) {
	want := map[string]string{"1": "one", "2": "two", "3": "three"}

	createObject(t, b, "forward", "object_name")
	_, err := b.Write("forward", "object_name", []storage.Row{
		row("1", "one"), row("2", "two"), row("3", "three"),
	})
	require.NoError(t, err)

	require.NoError(t, b.CreateNamespace("reverse"))
	require.NoError(t, b.CreateObject("reverse", "object_name"))
	_, err = b.Write("reverse", "object_name", []storage.Row{
		row("3", "three"), row("2", "two"), row("1", "one"),
	})
	require.NoError(t, err)

	assert.Equal(t, want, readAll(t, b, "forward", "object_name"))
	assert.Equal(t, want, readAll(t, b, "reverse", "object_name"))
}

func testNamespacePrecedence(t *testing.T, b storage.Backend) {
	_, err := b.Write("not_existent", "object", []storage.Row{row("1", "123")})
	assert.ErrorIs(t, err, storage.ErrNamespaceDoesNotExist)

	_, err = b.Read("not_existent", "object")
	assert.ErrorIs(t, err, storage.ErrNamespaceDoesNotExist)

	_, err = b.Delete("not_existent", "object", []storage.Key{storage.Key("1")})
	assert.ErrorIs(t, err, storage.ErrNamespaceDoesNotExist)
}

func testMissingObject(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace"))

	_, err := b.Write("namespace", "not_existent", []storage.Row{row("1", "123")})
	assert.ErrorIs(t, err, storage.ErrObjectDoesNotExist)

	_, err = b.Read("namespace", "not_existent")
	assert.ErrorIs(t, err, storage.ErrObjectDoesNotExist)

	_, err = b.Delete("namespace", "not_existent", nil)
	assert.ErrorIs(t, err, storage.ErrObjectDoesNotExist)
}

func testCursorStaysExhausted(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")
	_, err := b.Write("namespace", "object_name", []storage.Row{
		row("a", "1"), row("b", "2"),
	})
	require.NoError(t, err)

	cursor, err := b.Read("namespace", "object_name")
	require.NoError(t, err)
	defer cursor.Close()

	count := 0
	for cursor.Next() {
		_, err := cursor.Row()
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)

	// Single-pass: a drained cursor must not restart from the first row.
	assert.False(t, cursor.Next(), "cursor produced rows after exhaustion")
	assert.False(t, cursor.Next(), "cursor produced rows after exhaustion")
}

func testDeleteSubset(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")
	_, err := b.Write("namespace", "object_name", []storage.Row{
		row("1", "123"), row("2", "456"), row("3", "789"),
	})
	require.NoError(t, err)

	deleted, err := b.Delete("namespace", "object_name", []storage.Key{storage.Key("2")})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.Equal(t,
		map[string]string{"1": "123", "3": "789"},
		readAll(t, b, "namespace", "object_name"))
}

func testDeleteMissingKey(t *testing.T, b storage.Backend) {
	createObject(t, b, "namespace", "object_name")
	_, err := b.Write("namespace", "object_name", []storage.Row{row("1", "123")})
	require.NoError(t, err)

	deleted, err := b.Delete("namespace", "object_name", []storage.Key{
		storage.Key("1"),
		storage.Key("no_such_key"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, readAll(t, b, "namespace", "object_name"))
}

func testNamespaceIsolation(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("namespace_1"))
	require.NoError(t, b.CreateNamespace("namespace_2"))
	require.NoError(t, b.CreateObject("namespace_1", "object_name"))
	require.NoError(t, b.CreateObject("namespace_2", "object_name"))

	_, err := b.Write("namespace_1", "object_name", []storage.Row{row("1", "first")})
	require.NoError(t, err)
	_, err = b.Write("namespace_2", "object_name", []storage.Row{row("1", "second")})
	require.NoError(t, err)

	deleted, err := b.Delete("namespace_1", "object_name", []storage.Key{storage.Key("1")})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.Empty(t, readAll(t, b, "namespace_1", "object_name"))
	assert.Equal(t, map[string]string{"1": "second"}, readAll(t, b, "namespace_2", "object_name"))
}

func testScenario(t *testing.T, b storage.Backend) {
	require.NoError(t, b.CreateNamespace("ns"))
	require.NoError(t, b.CreateObject("ns", "t"))

	written, err := b.Write("ns", "t", []storage.Row{row("1", "123")})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	assert.Equal(t, map[string]string{"1": "123"}, readAll(t, b, "ns", "t"))

	deleted, err := b.Delete("ns", "t", []storage.Key{storage.Key("1")})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.Empty(t, readAll(t, b, "ns", "t"))
}
