package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nested", "knowledge.json")
	fs := NewFileStore(path)

	kb := concept.Map{
		"GRAVITY":      {"A fundamental force", "Keeps planets in orbit"},
		"SOLAR SYSTEM": {"A star and orbiting bodies"},
	}
	require.NoError(t, fs.Save(ctx, kb))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, kb, loaded)
	assert.Equal(t, path, fs.Path())
	assert.NoError(t, fs.Close())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files should be renamed or removed")
}

func TestFileStore_Missing(t *testing.T) {
	t.Parallel()

	fs := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	_, err := fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreMissing)
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{ definitely not json"},
		{name: "null document", content: "null"},
		{name: "top level array", content: `["GRAVITY"]`},
		{name: "numeric value", content: `{"GRAVITY": 42}`},
		{name: "nested object", content: `{"GRAVITY": {"text": "force"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "knowledge.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := NewFileStore(path).Load(context.Background())
			assert.ErrorIs(t, err, ErrCorruptStore)
		})
	}
}

func TestFileStore_LegacyAndNormalization(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "knowledge.json")
	doc := `{
		"gravity": "A fundamental force",
		" Solar ": ["Relating to the sun", ""],
		"SOLAR": ["Of the sun"],
		"EMPTY": [],
		"BLANK": ""
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	kb, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A fundamental force"}, kb["GRAVITY"])
	// " Solar " sorts before "SOLAR", so its explanations come first.
	assert.Equal(t, []string{"Relating to the sun", "Of the sun"}, kb["SOLAR"])
	assert.False(t, kb.Has("EMPTY"))
	assert.False(t, kb.Has("BLANK"))
	assert.Len(t, kb, 2)
}

func TestFileStore_SaveFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	fs := NewFileStore(filepath.Join(blocker, "knowledge.json"))
	err := fs.Save(context.Background(), concept.Map{"GRAVITY": {"force"}})
	assert.Error(t, err)
}
