package join

import "sentra/internal/zset"

// pkGroup accumulates one step's delta entries that share a primary key,
// since an "update" arrives upstream already decomposed into a retract
// of the old row and an insert of the new one (same PK, different
// structural identity) — the join operator must apply both halves of
// that pair atomically against its index, not entry-by-entry in
// undefined map-iteration order.
type pkGroup struct {
	pk       string
	netDelta int64
	newValue interface{} // value of the most recent positive-weight entry, if any
}

func groupByPK(delta *zset.Set, pkOf KeyOf) map[string]*pkGroup {
	groups := make(map[string]*pkGroup)
	for _, e := range delta.Entries() {
		pk := keyStr(pkOf(e.Value))
		g, ok := groups[pk]
		if !ok {
			g = &pkGroup{pk: pk}
			groups[pk] = g
		}
		g.netDelta += e.Weight
		if e.Weight > 0 {
			g.newValue = e.Value
		}
	}
	return groups
}

// Indexed is the update-capable indexed equi-join of spec.md §4.4.1: a
// row store and join-key index per side, plus a persisted pair-weight
// map whose invariant is that each recorded weight equals the product of
// the two sides' current multiplicities for that pair.
type Indexed struct {
	left, right *side
	combine     Combine
	pairWeight  map[string]int64 // "leftPK|rightPK" -> weight
}

// NewIndexed builds an indexed join. leftPK/rightPK extract each side's
// primary key (used only to detect updates); leftJK/rightJK extract the
// equi-join key; combine builds the joined output row from a matched
// pair.
func NewIndexed(leftPK, leftJK, rightPK, rightJK KeyOf, combine Combine) *Indexed {
	return &Indexed{
		left:       newSide(leftPK, leftJK),
		right:      newSide(rightPK, rightJK),
		combine:    combine,
		pairWeight: make(map[string]int64),
	}
}

func pairKey(leftPK, rightPK string) string { return leftPK + "|" + rightPK }

// Step applies leftDelta then rightDelta (processing left against the
// right side's pre-step state, then right against the now-updated left
// side) and returns the join's Δ, outKey-keyed. This ordering realizes
// the bilinear identity Δ(A⋈B) = ΔA⋈prevB + prevA⋈ΔB + ΔA⋈ΔB exactly:
// see the package doc comment.
func (j *Indexed) Step(leftDelta, rightDelta *zset.Set, outKey zset.KeyFunc) *zset.Set {
	out := zset.New(outKey)
	j.applySide(j.left, j.right, leftDelta, true, out)
	j.applySide(j.right, j.left, rightDelta, false, out)
	return out
}

func (j *Indexed) applySide(s, other *side, delta *zset.Set, isLeft bool, out *zset.Set) {
	groups := groupByPK(delta, s.pkOf)
	for _, g := range groups {
		old, existed := s.rows[g.pk]

		if existed {
			oldJK := keyStr(s.joinKey(old.value))
			for otherPK := range other.bucket(oldJK) {
				ow := other.weightOf(otherPK)
				pairW := old.weight * ow
				if pairW == 0 {
					continue
				}
				j.adjustPair(isLeft, g.pk, otherPK, -pairW)
				out.Insert(j.combineFor(isLeft, g.pk, otherPK, old.value, other.rows[otherPK].value), -pairW)
			}
			s.removeFromIndex(oldJK, g.pk)
			delete(s.rows, g.pk)
		}

		newWeight := old.weight + g.netDelta
		if newWeight == 0 {
			continue
		}
		val := g.newValue
		if val == nil {
			val = old.value
		}
		jk := keyStr(s.joinKey(val))
		s.rows[g.pk] = row{value: val, weight: newWeight}
		s.addToIndex(jk, g.pk)

		for otherPK := range other.bucket(jk) {
			ow := other.weightOf(otherPK)
			pairW := newWeight * ow
			if pairW == 0 {
				continue
			}
			j.adjustPair(isLeft, g.pk, otherPK, pairW)
			out.Insert(j.combineFor(isLeft, g.pk, otherPK, val, other.rows[otherPK].value), pairW)
		}
	}
}

func (j *Indexed) adjustPair(isLeft bool, thisPK, otherPK string, delta int64) {
	var k string
	if isLeft {
		k = pairKey(thisPK, otherPK)
	} else {
		k = pairKey(otherPK, thisPK)
	}
	nw := j.pairWeight[k] + delta
	if nw == 0 {
		delete(j.pairWeight, k)
	} else {
		j.pairWeight[k] = nw
	}
}

func (j *Indexed) combineFor(isLeft bool, thisPK, otherPK string, thisVal, otherVal interface{}) interface{} {
	if isLeft {
		return j.combine(thisVal, otherVal)
	}
	return j.combine(otherVal, thisVal)
}

// Checkpoint saves both sides' row stores/indexes and the pair-weight
// map, returning a closure that restores all three.
func (j *Indexed) Checkpoint() func() {
	rl := j.left.checkpoint()
	rr := j.right.checkpoint()
	savedPairs := make(map[string]int64, len(j.pairWeight))
	for k, v := range j.pairWeight {
		savedPairs[k] = v
	}
	return func() {
		rl()
		rr()
		j.pairWeight = savedPairs
	}
}

// Reset clears both sides and the pair-weight map.
func (j *Indexed) Reset() {
	j.left.reset()
	j.right.reset()
	j.pairWeight = make(map[string]int64)
}
