package memory

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imor/database/internal/storage"
	"github.com/imor/database/internal/storage/storagetest"
)

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return New()
	})
}

func TestCursorIsByteOrdered(t *testing.T) {
	b := New()
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
	_, err := b.Write("namespace", "object_name", []storage.Row{
		{Key: storage.Key("c"), Value: storage.Value("3")},
		{Key: storage.Key("a"), Value: storage.Value("1")},
		{Key: storage.Key("b"), Value: storage.Value("2")},
	})
	require.NoError(t, err)

	cursor, err := b.Read("namespace", "object_name")
	require.NoError(t, err)
	defer cursor.Close()

	var keys []string
	for cursor.Next() {
		row, err := cursor.Row()
		require.NoError(t, err)
		keys = append(keys, string(row.Key))
	}
	assert.True(t, sort.StringsAreSorted(keys))
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

// A cursor keeps walking the state it was opened on; writes and deletes
// that land mid-iteration do not disturb it.
func TestCursorUnaffectedByLaterWrites(t *testing.T) {
	b := New()
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
	_, err := b.Write("namespace", "object_name", []storage.Row{
		{Key: storage.Key("a"), Value: storage.Value("1")},
		{Key: storage.Key("b"), Value: storage.Value("2")},
	})
	require.NoError(t, err)

	cursor, err := b.Read("namespace", "object_name")
	require.NoError(t, err)
	defer cursor.Close()

	require.True(t, cursor.Next())

	_, err = b.Write("namespace", "object_name", []storage.Row{
		{Key: storage.Key("c"), Value: storage.Value("3")},
	})
	require.NoError(t, err)
	_, err = b.Delete("namespace", "object_name", []storage.Key{storage.Key("b")})
	require.NoError(t, err)

	var rest []string
	for cursor.Next() {
		row, err := cursor.Row()
		require.NoError(t, err)
		rest = append(rest, string(row.Key))
	}
	assert.Equal(t, []string{"b"}, rest)
}
