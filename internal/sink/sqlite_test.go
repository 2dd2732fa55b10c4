package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendAccumulates", func(t *testing.T) {
		store := openTestDB(t)

		n, err := store.Append(ctx, harvest.SourceLife,
			[]harvest.Record{lifeRecord("UIN001", "https://x/a.pdf")}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.Append(ctx, harvest.SourceLife,
			[]harvest.Record{lifeRecord("UIN002", "https://x/b.pdf")}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		keys, err := store.ExistingKeys(ctx, harvest.SourceLife)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("TruncateReplacesContent", func(t *testing.T) {
		store := openTestDB(t)

		_, err := store.Append(ctx, harvest.SourceLife,
			[]harvest.Record{lifeRecord("UIN001", "https://x/a.pdf")}, true)
		require.NoError(t, err)

		_, err = store.Append(ctx, harvest.SourceLife,
			[]harvest.Record{lifeRecord("UIN003", "https://x/c.pdf")}, false)
		require.NoError(t, err)

		keys, err := store.ExistingKeys(ctx, harvest.SourceLife)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"https://x/c.pdf": true}, keys)
	})

	t.Run("SourceTypesKeepSeparateTables", func(t *testing.T) {
		store := openTestDB(t)

		_, err := store.Append(ctx, harvest.SourceLife,
			[]harvest.Record{lifeRecord("UIN001", "https://x/a.pdf")}, true)
		require.NoError(t, err)

		health := harvest.Record{
			SourceType:  harvest.SourceHealth,
			DocumentURL: "https://x/h.pdf",
			Fields:      map[string]string{"uin": "HLT001"},
		}
		_, err = store.Append(ctx, harvest.SourceHealth, []harvest.Record{health}, true)
		require.NoError(t, err)

		lifeKeys, err := store.ExistingKeys(ctx, harvest.SourceLife)
		require.NoError(t, err)
		healthKeys, err := store.ExistingKeys(ctx, harvest.SourceHealth)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"https://x/a.pdf": true}, lifeKeys)
		assert.Equal(t, map[string]bool{"https://x/h.pdf": true}, healthKeys)
	})
}

func TestSQLiteExistingKeysIgnoresEmptyURLs(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	_, err := store.Append(ctx, harvest.SourceLife, []harvest.Record{
		lifeRecord("UIN001", "https://x/a.pdf"),
		lifeRecord("UIN002", ""),
	}, true)
	require.NoError(t, err)

	keys, err := store.ExistingKeys(ctx, harvest.SourceLife)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://x/a.pdf": true}, keys)
}

func TestSQLiteExistingKeysOnFreshDatabase(t *testing.T) {
	store := openTestDB(t)
	keys, err := store.ExistingKeys(context.Background(), harvest.SourceLife)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
