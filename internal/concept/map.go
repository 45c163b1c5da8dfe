package concept

// Map is the knowledge map: concept to ordered explanations.
// No key maps to an empty list.
type Map map[Concept][]string

// Has reports whether c is stored.
func (m Map) Has(c Concept) bool {
	_, ok := m[c]
	return ok
}

// Explanations returns the stored explanations for c in insertion order.
func (m Map) Explanations(c Concept) []string {
	return m[c]
}

// Keys returns all concepts in ascending order.
func (m Map) Keys() []Concept {
	keys := make([]Concept, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return Sort(keys)
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Related returns every other key sharing a token with c, sorted.
func (m Map) Related(c Concept) []Concept {
	related := make([]Concept, 0)
	for k := range m {
		if k == c {
			continue
		}
		if SharesToken(c, k) {
			related = append(related, k)
		}
	}
	return Sort(related)
}

// Dedup returns explanations with duplicates removed, keeping the first
// occurrence of each and preserving order.
func Dedup(explanations []string) []string {
	seen := make(map[string]struct{}, len(explanations))
	out := make([]string, 0, len(explanations))
	for _, e := range explanations {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
