// Package kvstore tests
package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen(t *testing.T) {
	t.Run("creates database on first open", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "new.db")
		store, err := Open(path)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Put("key", "value"))
	})

	t.Run("empty path rejected", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})

	t.Run("reopens existing database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "persist.db")

		store, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, store.Put("key", map[string]int{"n": 42}))
		require.NoError(t, store.Close())

		store, err = Open(path)
		require.NoError(t, err)
		defer store.Close()

		var v map[string]int
		require.NoError(t, store.Get("key", &v))
		assert.Equal(t, 42, v["n"])
	})
}

func TestGetPut(t *testing.T) {
	store := openTestStore(t)

	t.Run("missing key", func(t *testing.T) {
		var v string
		err := store.Get("missing", &v)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("round trips structured values", func(t *testing.T) {
		type doc struct {
			Name  string   `json:"name"`
			Items []string `json:"items"`
		}
		want := doc{Name: "state", Items: []string{"a", "b"}}
		require.NoError(t, store.Put("doc", want))

		var got doc
		require.NoError(t, store.Get("doc", &got))
		assert.Equal(t, want, got)
	})

	t.Run("put replaces existing value", func(t *testing.T) {
		require.NoError(t, store.Put("counter", 1))
		require.NoError(t, store.Put("counter", 2))

		var n int
		require.NoError(t, store.Get("counter", &n))
		assert.Equal(t, 2, n)
	})
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("key", "value"))
	require.NoError(t, store.Delete("key"))

	var v string
	assert.ErrorIs(t, store.Get("key", &v), ErrKeyNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete("key"))
}

func TestPing(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put("key", "value"))

	stats, err := store.Ping()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.LatencyMS, int64(0))
	assert.GreaterOrEqual(t, stats.TableCount, 1)
}
