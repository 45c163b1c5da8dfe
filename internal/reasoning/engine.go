// Package reasoning implements spiral expansion: enriching a recalled
// concept with a bounded sample of explanations from its linked concepts.
//
// The engine holds no knowledge of its own. Callers pass a concept.Map
// snapshot and the linked set; the engine only samples from them.
//
// Expand is single-hop. ExpandHops walks further out with a visited set and
// is capped by MaxDepth, so neither form can recurse without bound.
package reasoning

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

const (
	// DefaultMaxDepth is the terminal depth guard.
	DefaultMaxDepth = 2

	// DefaultPerConcept is how many explanations are sampled per linked concept.
	DefaultPerConcept = 2

	// DefaultMaxFragments caps the fragments emitted per hop.
	DefaultMaxFragments = 2
)

// Engine produces bounded expansions. Safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand

	maxDepth     int
	perConcept   int
	maxFragments int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the depth guard. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithPerConcept sets how many explanations are sampled per linked concept.
func WithPerConcept(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.perConcept = n
		}
	}
}

// WithMaxFragments sets the per-hop fragment cap.
func WithMaxFragments(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFragments = n
		}
	}
}

// NewEngine creates an engine sampling from rng.
// A nil rng gets a generator seeded with 1 so output stays reproducible.
func NewEngine(rng *rand.Rand, opts ...Option) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	e := &Engine{
		rng:          rng,
		maxDepth:     DefaultMaxDepth,
		perConcept:   DefaultPerConcept,
		maxFragments: DefaultMaxFragments,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the configured depth guard.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// Expand returns "Connected to BASE: ..." followed by at most MaxFragments
// distinct explanations sampled from the linked concepts, or "" when there
// is nothing to add. It never looks at the linked concepts' own links.
func (e *Engine) Expand(base concept.Concept, linked []concept.Concept, kb concept.Map) string {
	return e.expand(base, linked, kb, 0)
}

func (e *Engine) expand(base concept.Concept, linked []concept.Concept, kb concept.Map, depth int) string {
	if len(linked) == 0 || depth >= e.maxDepth {
		return ""
	}
	thoughts := e.collect(linked, kb, make(map[string]struct{}))
	if len(thoughts) == 0 {
		return ""
	}
	return connectedTo(base, thoughts)
}

// ExpandHops walks up to hops levels of neighbors outward from base, never
// revisiting a concept. Each level contributes at most MaxFragments
// fragments, and hops is clamped to MaxDepth.
func (e *Engine) ExpandHops(base concept.Concept, neighbors func(concept.Concept) []concept.Concept, kb concept.Map, hops int) string {
	if neighbors == nil {
		return ""
	}
	if hops > e.maxDepth {
		hops = e.maxDepth
	}
	if hops <= 1 {
		return e.Expand(base, neighbors(base), kb)
	}

	visited := map[concept.Concept]struct{}{base: {}}
	seen := make(map[string]struct{})
	frontier := unvisited(neighbors(base), visited)

	parts := make([]string, 0, hops)
	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		for _, c := range frontier {
			visited[c] = struct{}{}
		}

		if thoughts := e.collect(frontier, kb, seen); len(thoughts) > 0 {
			if depth == 0 {
				parts = append(parts, connectedTo(base, thoughts))
			} else {
				parts = append(parts, fmt.Sprintf("Further out from %s: %s", base, strings.Join(thoughts, " ")))
			}
		}

		var next []concept.Concept
		for _, c := range frontier {
			next = append(next, unvisited(neighbors(c), visited)...)
		}
		frontier = concept.Sort(dedupConcepts(next))
	}

	return strings.Join(parts, " ")
}

// collect samples explanations from linked concepts in order, skipping any
// already in seen, until MaxFragments are gathered.
func (e *Engine) collect(linked []concept.Concept, kb concept.Map, seen map[string]struct{}) []string {
	thoughts := make([]string, 0, e.maxFragments)
	for _, c := range linked {
		explanations := kb[c]
		if len(explanations) == 0 {
			continue
		}
		for _, exp := range e.sample(explanations) {
			if _, dup := seen[exp]; dup {
				continue
			}
			seen[exp] = struct{}{}
			thoughts = append(thoughts, exp)
			if len(thoughts) == e.maxFragments {
				return thoughts
			}
		}
	}
	return thoughts
}

// sample picks min(perConcept, len) explanations without replacement.
func (e *Engine) sample(explanations []string) []string {
	k := e.perConcept
	if len(explanations) < k {
		k = len(explanations)
	}

	e.mu.Lock()
	perm := e.rng.Perm(len(explanations))
	e.mu.Unlock()

	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = explanations[perm[i]]
	}
	return out
}

func connectedTo(base concept.Concept, thoughts []string) string {
	return fmt.Sprintf("Connected to %s: %s", base, strings.Join(thoughts, " "))
}

func unvisited(cs []concept.Concept, visited map[concept.Concept]struct{}) []concept.Concept {
	out := make([]concept.Concept, 0, len(cs))
	for _, c := range cs {
		if _, ok := visited[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func dedupConcepts(cs []concept.Concept) []concept.Concept {
	seen := make(map[concept.Concept]struct{}, len(cs))
	out := cs[:0]
	for _, c := range cs {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
