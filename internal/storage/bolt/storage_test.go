package bolt

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imor/database/internal/storage"
	"github.com/imor/database/internal/storage/storagetest"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
	})
	return b
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return newBackend(t)
	})
}

func databaseFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestNamespaceOwnsOneFile(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.CreateNamespace("namespace_1"))
	require.NoError(t, b.CreateNamespace("namespace_2"))
	assert.Equal(t, 2, databaseFiles(t, dir))
}

func TestDropNamespaceRemovesFile(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
	require.Equal(t, 1, databaseFiles(t, dir))

	require.NoError(t, b.DropNamespace("namespace"))
	assert.Equal(t, 0, databaseFiles(t, dir))
}

// dropWithin fails the test if DropNamespace does not return, instead of
// letting the whole run hang on bbolt's Close waiting for a transaction.
func dropWithin(t *testing.T, b *Backend, namespace string) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- b.DropNamespace(namespace)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("DropNamespace blocked on an open cursor")
	}
}

func TestDropNamespaceWithAbandonedCursor(t *testing.T) {
	b := newBackend(t)
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
	_, err := b.Write("namespace", "object_name", []storage.Row{
		{Key: storage.Key("a"), Value: storage.Value("1")},
		{Key: storage.Key("b"), Value: storage.Value("2")},
	})
	require.NoError(t, err)

	// Pull one row and abandon the cursor without closing it. The drop must
	// still complete: its read transaction is rolled back by the drop.
	cursor, err := b.Read("namespace", "object_name")
	require.NoError(t, err)
	require.True(t, cursor.Next())

	dropWithin(t, b, "namespace")

	assert.False(t, cursor.Next())
	assert.NoError(t, cursor.Close())
}

func TestExhaustedCursorReleasesTransaction(t *testing.T) {
	b := newBackend(t)
	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.CreateObject("namespace", "object_name"))
	_, err := b.Write("namespace", "object_name", []storage.Row{
		{Key: storage.Key("a"), Value: storage.Value("1")},
	})
	require.NoError(t, err)

	// Drain the cursor but never close it: exhaustion alone must give the
	// transaction back.
	cursor, err := b.Read("namespace", "object_name")
	require.NoError(t, err)
	for cursor.Next() {
	}

	dropWithin(t, b, "namespace")
}

func TestCloseKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, b.CreateNamespace("namespace"))
	require.NoError(t, b.Close())
	assert.Equal(t, 1, databaseFiles(t, dir))
}
