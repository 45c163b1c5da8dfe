package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
)

// failingPersister loads an empty map and refuses every save.
type failingPersister struct{}

func (failingPersister) Load(context.Context) (concept.Map, error) { return nil, ErrStoreMissing }
func (failingPersister) Save(context.Context, concept.Map) error  { return errors.New("disk full") }
func (failingPersister) Close() error                              { return nil }

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(42))
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return s
}

func TestStore_LearnThenRecall(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	require.NoError(t, s.Learn(ctx, "gravity", "A fundamental force"))

	got, err := s.Recall(ctx, "GRAVITY")
	require.NoError(t, err)
	assert.Contains(t, got, "A fundamental force")
}

func TestStore_NormalizationEquivalence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	require.NoError(t, s.Learn(ctx, "  Black Hole ", "Collapsed star"))

	for _, variant := range []string{"black hole", "BLACK HOLE", " Black Hole\t"} {
		assert.True(t, s.Has(variant), variant)
		got, err := s.Recall(ctx, variant)
		require.NoError(t, err, variant)
		assert.Equal(t, "Collapsed star", got)
	}
	assert.Equal(t, []concept.Concept{"BLACK HOLE"}, s.Concepts())
}

func TestStore_RejectsEmptyInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	assert.ErrorIs(t, s.Learn(ctx, "   ", "something"), ErrEmptyConcept)
	assert.ErrorIs(t, s.Learn(ctx, "GRAVITY", "  "), ErrEmptyExplanation)
	_, err := s.Recall(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyConcept)
	assert.Equal(t, 0, s.Len())
}

func TestStore_RecallMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	_, err := s.Recall(context.Background(), "GRAVITY")
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// Concepts sharing the token "SOLAR" relate to each other and recall
// expands into the neighbour.
func TestStore_SharedTokenRelation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	require.NoError(t, s.Learn(ctx, "SOLAR SYSTEM", "A star and orbiting bodies"))
	require.NoError(t, s.Learn(ctx, "SOLAR ENERGY", "Power from sunlight"))

	assert.Equal(t, []concept.Concept{"SOLAR ENERGY"}, s.FindRelated("SOLAR SYSTEM"))
	assert.Equal(t, []concept.Concept{"SOLAR SYSTEM"}, s.FindRelated("solar energy"))

	got, err := s.Recall(ctx, "SOLAR SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, "A star and orbiting bodies Connected to SOLAR SYSTEM: Power from sunlight", got)
}

func TestStore_FindRelatedProperties(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	for c, e := range map[string]string{
		"BLACK HOLE":   "Collapsed star",
		"HOLE PUNCH":   "Makes holes in paper",
		"WHITE DWARF":  "Stellar remnant",
		"BLACK COFFEE": "Coffee without milk",
	} {
		require.NoError(t, s.Learn(ctx, c, e))
	}

	for _, a := range s.Concepts() {
		first := s.FindRelated(a.String())
		assert.Equal(t, first, s.FindRelated(a.String()), "idempotent for %s", a)
		assert.NotContains(t, first, a)

		for _, b := range first {
			assert.Contains(t, s.FindRelated(b.String()), a, "symmetric %s <-> %s", a, b)
		}
	}

	assert.Equal(t, []concept.Concept{"BLACK COFFEE", "HOLE PUNCH"}, s.FindRelated("BLACK HOLE"))
	assert.Empty(t, s.FindRelated("WHITE DWARF"))
	assert.NotNil(t, s.FindRelated(""))
	// Unknown inputs still find stored neighbours.
	assert.Equal(t, []concept.Concept{"WHITE DWARF"}, s.FindRelated("brown dwarf"))
}

func TestStore_Reinforcement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := metrics.New(nil)
	require.NoError(t, err)

	s := newTestStore(t, Options{Metrics: m})
	require.NoError(t, s.Learn(ctx, "GRAVITY", "A fundamental force"))
	require.NoError(t, s.Learn(ctx, "QUANTUM GRAVITY", "Gravity at small scales"))

	gravity, err := s.Explanations("GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"A fundamental force",
		"Linked to QUANTUM GRAVITY. Expands on: Gravity at small scales",
	}, gravity)

	quantum, err := s.Explanations("QUANTUM GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Gravity at small scales",
		"Linked to GRAVITY. Expands on: A fundamental force",
	}, quantum)

	// Recall answers with a primary explanation, never a cross-reference.
	for i := 0; i < 10; i++ {
		got, err := s.Recall(ctx, "GRAVITY")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "A fundamental force"), got)
	}
}

func TestStore_ReinforceConnections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	_, err := s.Explanations("GRAVITY")
	assert.ErrorIs(t, err, ErrConceptNotFound)
	assert.ErrorIs(t, s.ReinforceConnections(ctx, "GRAVITY"), ErrConceptNotFound)

	require.NoError(t, s.Learn(ctx, "GRAVITY", "A fundamental force"))
	require.NoError(t, s.Learn(ctx, "ENERGY", "Capacity to do work"))
	require.NoError(t, s.ReinforceConnections(ctx, "gravity"))

	// No other concept overlaps GRAVITY, so nothing was written.
	gravity, err := s.Explanations("GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, []string{"A fundamental force"}, gravity)
}

func TestStore_ExplanationCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{MaxExplanations: 2})
	require.NoError(t, s.Learn(ctx, "GRAVITY", "first"))
	require.NoError(t, s.Learn(ctx, "GRAVITY", "second"))
	require.NoError(t, s.Learn(ctx, "GRAVITY", "third"))

	got, err := s.Explanations("GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, got)

	_, err = Open(ctx, Options{MaxExplanations: -1})
	assert.Error(t, err)
}

func TestStore_ExplanationCapKeepsLearned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{MaxExplanations: 4})
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Learn(ctx, fmt.Sprintf("ART%d", i), fmt.Sprintf("art number %d", i)))
	}

	require.NoError(t, s.Learn(ctx, "ART", "creative work"))
	got, err := s.Recall(ctx, "ART")
	require.NoError(t, err)
	assert.Equal(t, "creative work", got)

	list := s.Snapshot()["ART"]
	require.Len(t, list, 4)
	assert.Equal(t, "creative work", list[0])
	assert.Equal(t, "Linked to ART5. Expands on: art number 5", list[3])

	// Cross-references are evicted before older primary explanations.
	require.NoError(t, s.Learn(ctx, "ART", "visual expression"))
	list = s.Snapshot()["ART"]
	require.Len(t, list, 4)
	assert.Equal(t, "creative work", list[0])
	assert.Equal(t, "visual expression", list[1])
	for _, e := range list[2:] {
		assert.True(t, strings.HasPrefix(e, crossRefPrefix), e)
	}
}

func TestStore_DuplicatesCollapseOnRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{})
	require.NoError(t, s.Learn(ctx, "GRAVITY", "A fundamental force"))
	require.NoError(t, s.Learn(ctx, "GRAVITY", "A fundamental force"))

	got, err := s.Explanations("GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, []string{"A fundamental force"}, got)
	assert.Len(t, s.Snapshot()["GRAVITY"], 2, "storage keeps duplicates")
}

// A missing or corrupt persisted file yields an empty store.
func TestStore_OpenDegradesGracefully(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	missing := newTestStore(t, Options{Persister: NewFileStore(filepath.Join(dir, "absent.json"))})
	assert.Equal(t, 0, missing.Len())

	corruptPath := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("{not json"), 0o600))
	corrupt := newTestStore(t, Options{Persister: NewFileStore(corruptPath)})
	assert.Equal(t, 0, corrupt.Len())

	// The next save replaces the corrupt document.
	require.NoError(t, corrupt.Learn(ctx, "GRAVITY", "A fundamental force"))
	loaded, err := NewFileStore(corruptPath).Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Has("GRAVITY"))
}

func TestStore_PersistenceFailureKeepsMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := metrics.New(nil)
	require.NoError(t, err)

	s := newTestStore(t, Options{Persister: failingPersister{}, Metrics: m})
	err = s.Learn(ctx, "GRAVITY", "A fundamental force")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)

	got, err := s.Recall(ctx, "GRAVITY")
	require.NoError(t, err)
	assert.Equal(t, "A fundamental force", got)
}

func TestStore_PersistsAcrossRestarts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowledge.json")

	s := newTestStore(t, Options{Persister: NewFileStore(path)})
	require.NoError(t, s.Learn(ctx, "GRAVITY", "A fundamental force"))
	require.NoError(t, s.Close(ctx))

	restarted := newTestStore(t, Options{Persister: NewFileStore(path)})
	got, err := restarted.Recall(ctx, "gravity")
	require.NoError(t, err)
	assert.Contains(t, got, "A fundamental force")
}

func TestStore_SeededRecallIsDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	run := func() []string {
		s := newTestStore(t, Options{Rand: rand.New(rand.NewSource(7))})
		for _, e := range []string{"one", "two", "three", "four"} {
			require.NoError(t, s.Learn(ctx, "NUMBERS", e))
		}
		out := make([]string, 0, 5)
		for i := 0; i < 5; i++ {
			got, err := s.Recall(ctx, "NUMBERS")
			require.NoError(t, err)
			out = append(out, got)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestStore_MultiHopExpansion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{Hops: 2})
	require.NoError(t, s.Learn(ctx, "RED APPLE", "A sweet fruit"))
	require.NoError(t, s.Learn(ctx, "APPLE TREE", "Grows apples"))
	require.NoError(t, s.Learn(ctx, "TREE HOUSE", "A house in a tree"))

	got, err := s.Recall(ctx, "RED APPLE")
	require.NoError(t, err)
	assert.Equal(t,
		"A sweet fruit Connected to RED APPLE: Grows apples Further out from RED APPLE: A house in a tree",
		got)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t, Options{Persister: NewFileStore(filepath.Join(t.TempDir(), "kb.json"))})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := []string{"ALPHA", "BETA", "GAMMA", "DELTA"}[i%4]
			assert.NoError(t, s.Learn(ctx, name, "explanation"))
			_, _ = s.Recall(ctx, name)
			_ = s.FindRelated(name)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, s.Len())
}
