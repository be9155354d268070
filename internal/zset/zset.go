// Package zset implements the Z-set algebra: weighted multisets over a
// caller-supplied key function, with no entry ever carrying a zero weight.
package zset

// KeyFunc assigns a stable string identity to a value. Two values are "the
// same row" iff KeyFunc returns the same string for both. KeyFunc must be
// pure and deterministic for the lifetime of a Set; violating this is a
// contract violation (spec.md §7) with undefined results.
type KeyFunc func(v interface{}) string

// entry is one (value, weight) pair stored under its key.
type entry struct {
	value  interface{}
	weight int64
}

// Set is a Z-set: a mapping from value identity to a nonzero integer
// weight. The zero value is not usable; construct with New.
type Set struct {
	key     KeyFunc
	entries map[string]entry
}

// New creates an empty Z-set using key for element identity.
func New(key KeyFunc) *Set {
	return &Set{key: key, entries: make(map[string]entry)}
}

// FromPairs builds a Z-set from a sequence of (value, weight) pairs,
// merging entries that share a key.
func FromPairs(key KeyFunc, pairs ...Pair) *Set {
	s := New(key)
	for _, p := range pairs {
		s.Insert(p.Value, p.Weight)
	}
	return s
}

// Pair is a (value, weight) tuple used for bulk construction.
type Pair struct {
	Value  interface{}
	Weight int64
}

// KeyFunc exposes the Z-set's element-identity function, so operators can
// build derived Z-sets that honor the same identity discipline where
// appropriate (e.g. Union requires both operands share semantics for the
// same key string, though not necessarily the same KeyFunc value).
func (s *Set) KeyFunc() KeyFunc { return s.key }

// Len reports the number of distinct (nonzero-weight) elements.
func (s *Set) Len() int { return len(s.entries) }

// Insert adds w to the weight recorded for v. If the
// resulting weight is zero the entry is erased.
func (s *Set) Insert(v interface{}, w int64) {
	k := s.key(v)
	cur, ok := s.entries[k]
	if !ok {
		if w == 0 {
			return
		}
		s.entries[k] = entry{value: v, weight: w}
		return
	}
	nw := cur.weight + w
	if nw == 0 {
		delete(s.entries, k)
		return
	}
	s.entries[k] = entry{value: v, weight: nw}
}

// WeightOf returns the weight currently recorded for v (zero if absent).
func (s *Set) WeightOf(v interface{}) int64 {
	e, ok := s.entries[s.key(v)]
	if !ok {
		return 0
	}
	return e.weight
}

// WeightOfKey returns the weight recorded under a raw key string, for
// callers that already have the key (e.g. join indexes).
func (s *Set) WeightOfKey(k string) int64 {
	return s.entries[k].weight
}

// Clone returns a deep-enough copy: a new entries map with the same
// (value, weight) pairs. Values themselves are not copied (callers must
// not mutate values obtained from a Set — see spec.md §5).
func (s *Set) Clone() *Set {
	out := New(s.key)
	for k, e := range s.entries {
		out.entries[k] = e
	}
	return out
}

// Add returns a new Z-set holding the pointwise sum of s and other,
// erasing zero-weight results. Linear: Add(a, b) for any a, b.
func (s *Set) Add(other *Set) *Set {
	out := s.Clone()
	for _, e := range other.entries {
		out.Insert(e.value, e.weight)
	}
	return out
}

// AddInPlace mutates s to be s + other. Used by stateful operators that
// own s as persistent state (e.g. the integrator).
func (s *Set) AddInPlace(other *Set) {
	for _, e := range other.entries {
		s.Insert(e.value, e.weight)
	}
}

// Negate returns a new Z-set with every weight flipped.
func (s *Set) Negate() *Set {
	out := New(s.key)
	for k, e := range s.entries {
		out.entries[k] = entry{value: e.value, weight: -e.weight}
	}
	return out
}

// Subtract returns s + other.Negate().
func (s *Set) Subtract(other *Set) *Set {
	return s.Add(other.Negate())
}

// Filter returns the subset of entries for which p holds, keeping weights
// unchanged. Linear: Filter(p, a+b) = Filter(p, a) + Filter(p, b).
func (s *Set) Filter(p func(v interface{}) bool) *Set {
	out := New(s.key)
	for k, e := range s.entries {
		if p(e.value) {
			out.entries[k] = e
		}
	}
	return out
}

// Map projects each entry through f under a new key function, preserving
// weight and merging any outputs that collide under newKey. Linear when f
// is pure.
func (s *Set) Map(f func(v interface{}) interface{}, newKey KeyFunc) *Set {
	out := New(newKey)
	for _, e := range s.entries {
		out.Insert(f(e.value), e.weight)
	}
	return out
}

// FlatMap emits zero or more outputs per input entry, each inheriting the
// input's weight, merged under newKey. Linear.
func (s *Set) FlatMap(f func(v interface{}) []interface{}, newKey KeyFunc) *Set {
	out := New(newKey)
	for _, e := range s.entries {
		for _, ov := range f(e.value) {
			out.Insert(ov, e.weight)
		}
	}
	return out
}

// Sum returns Σ w·g(v) over all entries. Linear.
func (s *Set) Sum(g func(v interface{}) float64) float64 {
	var total float64
	for _, e := range s.entries {
		total += float64(e.weight) * g(e.value)
	}
	return total
}

// Count returns Σ w over all entries. Linear.
func (s *Set) Count() int64 {
	var total int64
	for _, e := range s.entries {
		total += e.weight
	}
	return total
}

// Values returns the elements with weight > 0, ignoring higher
// multiplicities (an ordinary set view).
func (s *Set) Values() []interface{} {
	out := make([]interface{}, 0, len(s.entries))
	for _, e := range s.entries {
		if e.weight > 0 {
			out = append(out, e.value)
		}
	}
	return out
}

// Entries returns every (value, weight) pair with weight != 0.
func (s *Set) Entries() []Pair {
	out := make([]Pair, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Pair{Value: e.value, Weight: e.weight})
	}
	return out
}

// IsEmpty reports whether the set has no nonzero-weight entries.
func (s *Set) IsEmpty() bool { return len(s.entries) == 0 }

// Equal reports whether s and other have identical entries() as sets,
// comparing by key string and weight (the shared key-string namespace is
// the equality contract; values are not compared directly since the two
// sets may use different KeyFunc closures over equivalent data).
func (s *Set) Equal(other *Set) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for k, e := range s.entries {
		oe, ok := other.entries[k]
		if !ok || oe.weight != e.weight {
			return false
		}
	}
	return true
}
