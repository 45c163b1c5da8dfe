package knowledge

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "data", "knowledge.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	first := concept.Map{
		"GRAVITY":      {"A fundamental force", "Keeps planets in orbit"},
		"SOLAR ENERGY": {"Power from sunlight"},
	}
	require.NoError(t, store.Save(ctx, first))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	// Save overwrites; removed concepts disappear.
	second := concept.Map{"GRAVITY": {"A fundamental force"}}
	require.NoError(t, store.Save(ctx, second))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
	assert.Equal(t, path, store.Path())
}

func TestSQLiteStore_Missing(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "absent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreMissing)
}

func TestSQLiteStore_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "knowledge.db")
	garbage := bytes.Repeat([]byte("not a sqlite database "), 64)
	require.NoError(t, os.WriteFile(path, garbage[:1024], 0o600))

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestSQLiteStore_WithStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "knowledge.db")
	backend, err := NewSQLiteStore(path)
	require.NoError(t, err)

	s, err := Open(ctx, Options{Persister: backend})
	require.NoError(t, err)
	require.NoError(t, s.Learn(ctx, "gravity", "A fundamental force"))
	require.NoError(t, s.Close(ctx))

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	s2, err := Open(ctx, Options{Persister: reopened})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close(ctx) })

	assert.True(t, s2.Has("GRAVITY"))
}
