package join

import "sentra/internal/zset"

// AppendOnly is the insert-only equi-join of spec.md §4.4.2: each side is
// a join-key -> row-vector index with no primary-key store and no
// support for deletes or same-PK overwrites, costing O(matches) per
// input row rather than the bookkeeping an Indexed join needs to
// support retraction.
type AppendOnly struct {
	leftJK, rightJK KeyOf
	combine         Combine
	left, right     map[string][]interface{}
}

// NewAppendOnly builds an append-only join keyed by leftJK/rightJK.
func NewAppendOnly(leftJK, rightJK KeyOf, combine Combine) *AppendOnly {
	return &AppendOnly{
		leftJK:  leftJK,
		rightJK: rightJK,
		combine: combine,
		left:    make(map[string][]interface{}),
		right:   make(map[string][]interface{}),
	}
}

// Step matches leftDelta against the right side's pre-step rows, then
// rightDelta against the now-updated left side, so the same "process one
// side fully, then the other against the updated first" ordering used by
// Indexed yields the correct bilinear result without needing to track
// per-row weights (every appended row counts once, with multiplicity
// folded into the input Δ's weight field).
func (a *AppendOnly) Step(leftDelta, rightDelta *zset.Set, outKey zset.KeyFunc) *zset.Set {
	out := zset.New(outKey)

	for _, e := range leftDelta.Entries() {
		jk := keyStr(a.leftJK(e.Value))
		for _, rv := range a.right[jk] {
			out.Insert(a.combine(e.Value, rv), e.Weight)
		}
	}
	for _, e := range leftDelta.Entries() {
		jk := keyStr(a.leftJK(e.Value))
		a.left[jk] = append(a.left[jk], e.Value)
	}

	for _, e := range rightDelta.Entries() {
		jk := keyStr(a.rightJK(e.Value))
		for _, lv := range a.left[jk] {
			out.Insert(a.combine(lv, e.Value), e.Weight)
		}
	}
	for _, e := range rightDelta.Entries() {
		jk := keyStr(a.rightJK(e.Value))
		a.right[jk] = append(a.right[jk], e.Value)
	}

	return out
}

// Checkpoint snapshots both side indexes.
func (a *AppendOnly) Checkpoint() func() {
	savedLeft := cloneRowVectors(a.left)
	savedRight := cloneRowVectors(a.right)
	return func() {
		a.left = savedLeft
		a.right = savedRight
	}
}

// Reset clears both side indexes.
func (a *AppendOnly) Reset() {
	a.left = make(map[string][]interface{})
	a.right = make(map[string][]interface{})
}

func cloneRowVectors(m map[string][]interface{}) map[string][]interface{} {
	out := make(map[string][]interface{}, len(m))
	for k, v := range m {
		cp := make([]interface{}, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
