// Package concept defines the normalized concept key, the knowledge map it
// indexes, and the two lexical relations used to link concepts.
//
// Two relations are kept deliberately distinct:
//   - SharesToken: the concepts have at least one whitespace-separated word
//     in common ("SOLAR SYSTEM" and "SOLAR ENERGY"). Used for link discovery
//     and spiral expansion.
//   - Overlaps: one concept key is a substring of the other ("HELLO" and
//     "HELLO WORLD", but also "ART" and "PARTICLE"). Used for reinforcement.
package concept

import (
	"sort"
	"strings"
)

// Concept is a normalized knowledge key: upper-cased and trimmed.
type Concept string

// Normalize folds raw input into its Concept key.
// Inputs differing only by case or surrounding whitespace map to the same key.
func Normalize(raw string) Concept {
	return Concept(strings.ToUpper(strings.TrimSpace(raw)))
}

// String implements fmt.Stringer.
func (c Concept) String() string {
	return string(c)
}

// IsZero reports whether the concept is empty.
func (c Concept) IsZero() bool {
	return c == ""
}

// Tokens returns the whitespace-separated words of the concept.
func (c Concept) Tokens() []string {
	return strings.Fields(string(c))
}

// SharesToken reports whether a and b have at least one token in common.
// The relation is symmetric.
func SharesToken(a, b Concept) bool {
	ta := a.Tokens()
	if len(ta) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	for _, t := range b.Tokens() {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Overlaps reports whether either concept key contains the other.
func Overlaps(a, b Concept) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return strings.Contains(string(a), string(b)) || strings.Contains(string(b), string(a))
}

// Sort orders concepts ascending in place and returns the slice.
func Sort(cs []Concept) []Concept {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}
