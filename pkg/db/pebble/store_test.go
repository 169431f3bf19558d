package pebble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imor/database/pkg/db"
)

func TestDatabase(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, database *Database)
	}{
		{
			name: "basic_put_get",
			fn:   testBasicPutGet,
		},
		{
			name: "delete_operations",
			fn:   testDelete,
		},
		{
			name: "keyspace_catalog",
			fn:   testKeyspaceCatalog,
		},
		{
			name: "keyspace_isolation",
			fn:   testKeyspaceIsolation,
		},
		{
			name: "drop_keyspace",
			fn:   testDropKeyspace,
		},
		{
			name: "database_closure",
			fn:   testDatabaseClosure,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			database, err := Open("")
			require.NoError(t, err)
			defer database.Close()

			tc.fn(t, database)
		})
	}
}

func testBasicPutGet(t *testing.T, database *Database) {
	keyspace, err := database.OpenKeyspace("test")
	require.NoError(t, err)

	key := []byte("test-key")
	value := []byte("test-value")

	err = keyspace.Put(key, value)
	require.NoError(t, err)

	retrieved, err := keyspace.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	// Test non-existent key
	_, err = keyspace.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func testDelete(t *testing.T, database *Database) {
	keyspace, err := database.OpenKeyspace("test")
	require.NoError(t, err)

	key := []byte("delete-test")
	value := []byte("to-be-deleted")

	err = keyspace.Put(key, value)
	require.NoError(t, err)

	err = keyspace.Delete(key)
	require.NoError(t, err)

	_, err = keyspace.Get(key)
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	// Delete non-existent key should not error
	err = keyspace.Delete([]byte("non-existent"))
	assert.NoError(t, err)
}

func testKeyspaceCatalog(t *testing.T, database *Database) {
	names, err := database.Keyspaces()
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = database.OpenKeyspace("alpha")
	require.NoError(t, err)
	_, err = database.OpenKeyspace("beta")
	require.NoError(t, err)
	// Reopening must not create a second entry
	_, err = database.OpenKeyspace("alpha")
	require.NoError(t, err)

	names, err = database.Keyspaces()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func testKeyspaceIsolation(t *testing.T, database *Database) {
	first, err := database.OpenKeyspace("first")
	require.NoError(t, err)
	second, err := database.OpenKeyspace("second")
	require.NoError(t, err)

	key := []byte("shared-key")
	require.NoError(t, first.Put(key, []byte("first-value")))
	require.NoError(t, second.Put(key, []byte("second-value")))

	value, err := first.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("first-value"), value)

	require.NoError(t, first.Delete(key))
	_, err = first.Get(key)
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	value, err = second.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second-value"), value)
}

func testDropKeyspace(t *testing.T, database *Database) {
	keyspace, err := database.OpenKeyspace("dropped")
	require.NoError(t, err)
	require.NoError(t, keyspace.Put([]byte("key"), []byte("value")))

	existed, err := database.DropKeyspace("dropped")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = database.DropKeyspace("dropped")
	require.NoError(t, err)
	assert.False(t, existed)

	// A keyspace recreated under the same name starts empty
	keyspace, err = database.OpenKeyspace("dropped")
	require.NoError(t, err)
	_, err = keyspace.Get([]byte("key"))
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func testDatabaseClosure(t *testing.T, database *Database) {
	keyspace, err := database.OpenKeyspace("test")
	require.NoError(t, err)

	err = database.Close()
	require.NoError(t, err)

	// Test operations after close
	_, err = database.OpenKeyspace("test")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = database.Keyspaces()
	assert.ErrorIs(t, err, ErrClosed)

	err = keyspace.Put([]byte("key"), []byte("value"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = keyspace.Get([]byte("key"))
	assert.ErrorIs(t, err, ErrClosed)

	// Double close should not error
	err = database.Close()
	assert.NoError(t, err)
}

func TestPersistentReopen(t *testing.T) {
	path := t.TempDir()

	database, err := Open(path)
	require.NoError(t, err)
	keyspace, err := database.OpenKeyspace("durable")
	require.NoError(t, err)
	require.NoError(t, keyspace.Put([]byte("key"), []byte("value")))
	require.NoError(t, database.Close())

	database, err = Open(path)
	require.NoError(t, err)
	defer database.Close()

	names, err := database.Keyspaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"durable"}, names)

	keyspace, err = database.OpenKeyspace("durable")
	require.NoError(t, err)
	value, err := keyspace.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	// Id allocation resumes past recorded keyspaces: a new keyspace must
	// not alias the old one's data range.
	other, err := database.OpenKeyspace("younger")
	require.NoError(t, err)
	_, err = other.Get([]byte("key"))
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}
