// Package session keeps short-term conversational memory: the last few raw
// queries of each conversation, used to resolve follow-ups such as "gravity"
// after an earlier "what is quantum gravity".
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
)

// DefaultCapacity is the number of queries a Context remembers.
const DefaultCapacity = 5

// Recaller is the read side of the knowledge store that contextual lookups need.
type Recaller interface {
	Has(concept string) bool
	Recall(ctx context.Context, concept string) (string, error)
}

// Context is a fixed-capacity FIFO of recent queries for one conversation.
// It is never persisted.
type Context struct {
	mu       sync.Mutex
	capacity int
	entries  []string
	pending  concept.Concept
}

// NewContext creates a Context holding at most capacity queries.
// Non-positive capacities fall back to DefaultCapacity.
func NewContext(capacity int) *Context {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Context{
		capacity: capacity,
		entries:  make([]string, 0, capacity),
	}
}

// Record appends query, evicting the oldest entry once capacity is exceeded.
func (c *Context) Record(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, query)
	if excess := len(c.entries) - c.capacity; excess > 0 {
		c.entries = append(c.entries[:0], c.entries[excess:]...)
	}
}

// Entries returns a copy of the remembered queries, oldest first.
func (c *Context) Entries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of remembered queries.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ContextualLookup scans prior queries newest first. The first one that
// contains query, or is contained by it, and is itself a stored concept wins:
// the result wraps a fresh recall of that concept. Matching is
// case-insensitive and an empty query never matches.
func (c *Context) ContextualLookup(ctx context.Context, query string, r Recaller) (string, bool) {
	q := concept.Normalize(query)
	if q.IsZero() || r == nil {
		return "", false
	}

	for _, prior := range c.newestFirst() {
		p := concept.Normalize(prior)
		if !concept.Overlaps(p, q) || !r.Has(p.String()) {
			continue
		}
		info, err := r.Recall(ctx, p.String())
		if err != nil {
			continue
		}
		return fmt.Sprintf("You asked about %s earlier. Here's more info: %s", p, info), true
	}
	return "", false
}

func (c *Context) newestFirst() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.entries))
	for i := len(c.entries) - 1; i >= 0; i-- {
		out = append(out, c.entries[i])
	}
	return out
}

// SetPending marks a concept the user was asked to define.
func (c *Context) SetPending(pending concept.Concept) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = pending
}

// TakePending returns and clears the concept awaiting a definition.
func (c *Context) TakePending() (concept.Concept, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending
	c.pending = ""
	return p, !p.IsZero()
}

// Pending reports the concept awaiting a definition without clearing it.
func (c *Context) Pending() (concept.Concept, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, !c.pending.IsZero()
}
