// Package join implements the bilinear equi-join operators of spec.md
// §4.4: an update-capable indexed inner join, an append-only variant, and
// anti-/semi-join via per-row reference counts.
//
// The governing identity for all of them is:
//
//	Δ(A ⋈ B) = (prev A ⋈ ΔB) + (ΔA ⋈ prev B) + (ΔA ⋈ ΔB)
//
// where prev is each side's integrated state immediately before the
// current step.
package join

import (
	"fmt"
)

// Combine builds the joined row from a matched left/right pair.
type Combine func(left, right interface{}) interface{}

// KeyOf extracts a row's join key and primary key.
type KeyOf func(row interface{}) interface{}

// row is one side's bookkeeping entry: the row itself and the current
// integrated weight it carries (so a batch of same-PK inserts/deletes
// within one Step nets out to the final weight before touching indexes).
type row struct {
	value  interface{}
	weight int64
}

// side is one half of an indexed join: a primary-key row store and a
// join-key -> set-of-primary-keys index, per spec.md §3's Join index
// invariants.
type side struct {
	pkOf    KeyOf
	joinKey KeyOf
	rows    map[string]row           // pk string -> row
	index   map[string]map[string]bool // join-key string -> set of pk strings
}

func newSide(pkOf, joinKey KeyOf) *side {
	return &side{
		pkOf:    pkOf,
		joinKey: joinKey,
		rows:    make(map[string]row),
		index:   make(map[string]map[string]bool),
	}
}

func keyStr(k interface{}) string { return fmt.Sprintf("%v", k) }

func (s *side) addToIndex(jk, pk string) {
	bucket, ok := s.index[jk]
	if !ok {
		bucket = make(map[string]bool)
		s.index[jk] = bucket
	}
	bucket[pk] = true
}

func (s *side) removeFromIndex(jk, pk string) {
	bucket, ok := s.index[jk]
	if !ok {
		return
	}
	delete(bucket, pk)
	if len(bucket) == 0 {
		delete(s.index, jk)
	}
}

func (s *side) bucket(jk string) map[string]bool { return s.index[jk] }

func (s *side) weightOf(pk string) int64 { return s.rows[pk].weight }

// checkpoint snapshots the row store and index. Both are mutated in
// place elsewhere (map assignment/delete), so this must clone them —
// saving a second reference to the same map would let later mutation
// corrupt the "saved" snapshot too.
func (s *side) checkpoint() func() {
	savedRows := make(map[string]row, len(s.rows))
	for k, v := range s.rows {
		savedRows[k] = v
	}
	savedIndex := make(map[string]map[string]bool, len(s.index))
	for jk, bucket := range s.index {
		b := make(map[string]bool, len(bucket))
		for pk := range bucket {
			b[pk] = true
		}
		savedIndex[jk] = b
	}
	return func() {
		s.rows = savedRows
		s.index = savedIndex
	}
}

func (s *side) reset() {
	s.rows = make(map[string]row)
	s.index = make(map[string]map[string]bool)
}
