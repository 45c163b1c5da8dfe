package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
	"github.com/fyrsmithlabs/spiralmind/internal/reasoning"
)

const (
	// DefaultMaxExplanations caps each explanation list; oldest
	// cross-references go first.
	DefaultMaxExplanations = 64

	// crossRefPrefix marks explanations written by reinforcement.
	crossRefPrefix = "Linked to "
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/spiralmind/internal/knowledge")

// Options configures a Store.
type Options struct {
	// Persister backs the map. Nil keeps the store in memory only.
	Persister Persister

	// Engine expands recalls. Nil gets an engine sharing Rand.
	Engine *reasoning.Engine

	// Rand picks among explanations. Nil gets a generator seeded with 1.
	Rand *rand.Rand

	// MaxExplanations caps each list. 0 disables the cap; negative is invalid.
	MaxExplanations int

	// Hops selects single-hop expansion (<= 1) or the multi-hop walk.
	Hops int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Store owns the knowledge map and its persistence.
//
// Learn, ReinforceConnections and Save take the write lock and run
// read-modify-persist as one critical section. Recall, FindRelated and the
// other readers share the read lock.
type Store struct {
	mu sync.RWMutex
	kb concept.Map

	rngMu sync.Mutex
	rng   *rand.Rand

	persister       Persister
	engine          *reasoning.Engine
	maxExplanations int
	hops            int
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// Open creates a store and loads the persisted map. A missing or corrupt
// store yields an empty map and a log entry, never an error.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.MaxExplanations < 0 {
		return nil, fmt.Errorf("max explanations must be >= 0, got %d", opts.MaxExplanations)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	if opts.Engine == nil {
		opts.Engine = reasoning.NewEngine(rand.New(rand.NewSource(opts.Rand.Int63())))
	}

	s := &Store{
		kb:              make(concept.Map),
		rng:             opts.Rand,
		persister:       opts.Persister,
		engine:          opts.Engine,
		maxExplanations: opts.MaxExplanations,
		hops:            opts.Hops,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}
	s.load(ctx)
	return s, nil
}

func (s *Store) load(ctx context.Context) {
	if s.persister == nil {
		s.logger.Debug("no persister configured, knowledge kept in memory")
		return
	}

	kb, err := s.persister.Load(ctx)
	switch {
	case err == nil:
		s.kb = kb
		s.logger.Info("knowledge loaded", zap.Int("concepts", len(kb)))
	case errors.Is(err, ErrStoreMissing):
		s.logger.Info("no knowledge found, starting fresh")
	case errors.Is(err, ErrCorruptStore):
		s.logger.Warn("knowledge store is corrupt, starting with an empty map", zap.Error(err))
	default:
		s.logger.Warn("failed to load knowledge, starting with an empty map", zap.Error(err))
	}
	s.metrics.SetConcepts(len(s.kb))
}

// Learn appends explanation to the concept's list, reinforces overlapping
// concepts and persists the map. A *PersistenceError means the in-memory
// update succeeded but the durable copy is stale.
func (s *Store) Learn(ctx context.Context, rawConcept, explanation string) error {
	ctx, span := tracer.Start(ctx, "knowledge.Learn")
	defer span.End()

	c := concept.Normalize(rawConcept)
	if c.IsZero() {
		return ErrEmptyConcept
	}
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return ErrEmptyExplanation
	}
	span.SetAttributes(attribute.String("concept", c.String()))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.kb[c] = append(s.kb[c], explanation)
	s.capLocked(c, explanation)
	written := s.reinforceLocked(c, explanation)

	s.metrics.SetConcepts(len(s.kb))
	s.logger.Info("concept learned",
		zap.String("concept", c.String()),
		zap.Int("explanations", len(s.kb[c])),
		zap.Int("cross_references", written))

	return s.saveLocked(ctx)
}

// ReinforceConnections cross-writes explanations between the concept and
// every stored concept whose key contains it or is contained by it.
func (s *Store) ReinforceConnections(ctx context.Context, rawConcept string) error {
	ctx, span := tracer.Start(ctx, "knowledge.ReinforceConnections")
	defer span.End()

	c := concept.Normalize(rawConcept)
	if c.IsZero() {
		return ErrEmptyConcept
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.kb.Has(c) {
		return fmt.Errorf("%w: %s", ErrConceptNotFound, c)
	}
	s.reinforceLocked(c, "")
	return s.saveLocked(ctx)
}

// reinforceLocked writes "Linked to X. Expands on: ..." in both directions
// for every overlapping concept and returns the number of entries written.
// keep survives the cap on c.
func (s *Store) reinforceLocked(c concept.Concept, keep string) int {
	written := 0
	for _, other := range s.kb.Keys() {
		if other == c || !concept.Overlaps(c, other) {
			continue
		}
		fromSource := s.pick(primaryExplanations(s.kb[c]))
		fromOther := s.pick(primaryExplanations(s.kb[other]))

		s.kb[other] = append(s.kb[other], crossReference(c, fromSource))
		s.kb[c] = append(s.kb[c], crossReference(other, fromOther))
		s.capLocked(other, "")
		written += 2
	}
	s.capLocked(c, keep)
	s.metrics.Reinforced(written)
	return written
}

func crossReference(linked concept.Concept, explanation string) string {
	return fmt.Sprintf("%s%s. Expands on: %s", crossRefPrefix, linked, explanation)
}

// primaryExplanations prefers explanations that are not cross-references so
// reinforcement text does not nest. Falls back to everything.
func primaryExplanations(explanations []string) []string {
	out := make([]string, 0, len(explanations))
	for _, e := range explanations {
		if !strings.HasPrefix(e, crossRefPrefix) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return explanations
	}
	return out
}

// capLocked trims c's list to the cap. Cross-references go first, oldest
// to newest, then primary explanations. The newest copy of keep is never
// evicted.
func (s *Store) capLocked(c concept.Concept, keep string) {
	if s.maxExplanations == 0 {
		return
	}
	list := s.kb[c]
	excess := len(list) - s.maxExplanations
	if excess <= 0 {
		return
	}

	protected := -1
	if keep != "" {
		for i := len(list) - 1; i >= 0; i-- {
			if list[i] == keep {
				protected = i
				break
			}
		}
	}

	drop := make([]bool, len(list))
	for i := 0; i < len(list) && excess > 0; i++ {
		if i != protected && strings.HasPrefix(list[i], crossRefPrefix) {
			drop[i] = true
			excess--
		}
	}
	for i := 0; i < len(list) && excess > 0; i++ {
		if i != protected && !drop[i] {
			drop[i] = true
			excess--
		}
	}

	kept := make([]string, 0, s.maxExplanations)
	for i, e := range list {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	s.kb[c] = kept
}

func (s *Store) pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	s.rngMu.Lock()
	i := s.rng.Intn(len(candidates))
	s.rngMu.Unlock()
	return candidates[i]
}

// Recall returns one explanation for the concept followed by its spiral
// expansion, or ErrConceptNotFound.
func (s *Store) Recall(ctx context.Context, rawConcept string) (string, error) {
	_, span := tracer.Start(ctx, "knowledge.Recall")
	defer span.End()

	c := concept.Normalize(rawConcept)
	if c.IsZero() {
		return "", ErrEmptyConcept
	}
	span.SetAttributes(attribute.String("concept", c.String()))

	s.mu.RLock()
	defer s.mu.RUnlock()

	explanations, ok := s.kb[c]
	if !ok {
		s.metrics.Recall(metrics.ResultMiss)
		return "", fmt.Errorf("%w: %s", ErrConceptNotFound, c)
	}

	answer := s.pick(primaryExplanations(concept.Dedup(explanations)))
	expansion := s.expandLocked(c)
	s.metrics.Recall(metrics.ResultHit)

	if expansion == "" {
		return answer, nil
	}
	return answer + " " + expansion, nil
}

func (s *Store) expandLocked(c concept.Concept) string {
	if s.hops > 1 {
		return s.engine.ExpandHops(c, s.kb.Related, s.kb, s.hops)
	}
	return s.engine.Expand(c, s.kb.Related(c), s.kb)
}

// FindRelated returns every stored concept, other than the input itself,
// that shares a token with it. The input need not be stored.
func (s *Store) FindRelated(rawConcept string) []concept.Concept {
	c := concept.Normalize(rawConcept)
	if c.IsZero() {
		return []concept.Concept{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Related(c)
}

// Has reports whether the concept is stored.
func (s *Store) Has(rawConcept string) bool {
	c := concept.Normalize(rawConcept)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Has(c)
}

// Explanations returns the deduplicated explanations for the concept.
func (s *Store) Explanations(rawConcept string) ([]string, error) {
	c := concept.Normalize(rawConcept)
	s.mu.RLock()
	defer s.mu.RUnlock()

	explanations, ok := s.kb[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConceptNotFound, c)
	}
	return concept.Dedup(explanations), nil
}

// Concepts returns all stored concepts in ascending order.
func (s *Store) Concepts() []concept.Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Keys()
}

// Len returns the number of stored concepts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kb)
}

// Snapshot returns a deep copy of the knowledge map.
func (s *Store) Snapshot() concept.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Clone()
}

// Save persists the full map.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.kb); err != nil {
		s.metrics.PersistenceFailed()
		s.logger.Warn("failed to persist knowledge, keeping in-memory state", zap.Error(err))
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Close performs a final save and releases the persister.
func (s *Store) Close(ctx context.Context) error {
	saveErr := s.Save(ctx)
	if s.persister == nil {
		return saveErr
	}
	if err := s.persister.Close(); err != nil {
		return errors.Join(saveErr, fmt.Errorf("closing persister: %w", err))
	}
	return saveErr
}
