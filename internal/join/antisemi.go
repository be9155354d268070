package join

import "sentra/internal/zset"

// Mode selects whether AntiSemi emits left rows with no match
// (anti-join) or left rows with at least one match (semi-join) on the
// right side, per spec.md §4.4.3.
type Mode int

const (
	// Anti emits a left row whenever no right row currently shares its
	// join key.
	Anti Mode = iota
	// Semi emits a left row whenever at least one right row currently
	// shares its join key.
	Semi
)

// AntiSemi maintains, per join key, a reference count of how many right
// rows (by weight) currently carry that key, and emits, per left row, a
// +1/-1 transition on the left row exactly when that count crosses the
// zero boundary — the left row's own membership never changes due to
// right-side activity, only its emitted/not-emitted status does.
type AntiSemi struct {
	left       *side
	rightJK    KeyOf
	rightCount map[string]int64 // join key -> total right weight present
	emitted    map[string]bool  // left pk -> currently emitted
	mode       Mode
}

// NewAntiSemi builds an anti- or semi-join over leftPK/leftJK (the left
// row's primary key and join key extractors) and rightJK (the right
// row's join key extractor; no right-side row identity is needed since
// only the per-key count matters).
func NewAntiSemi(leftPK, leftJK, rightJK KeyOf, mode Mode) *AntiSemi {
	return &AntiSemi{
		left:       newSide(leftPK, leftJK),
		rightJK:    rightJK,
		rightCount: make(map[string]int64),
		emitted:    make(map[string]bool),
		mode:       mode,
	}
}

func (a *AntiSemi) shouldEmit(count int64) bool {
	if a.mode == Anti {
		return count <= 0
	}
	return count > 0
}

// Step applies leftDelta (against the right side's pre-step counts),
// then rightDelta (re-evaluating every left row whose join key's count
// crosses the emit threshold), mirroring Indexed's ordering.
func (a *AntiSemi) Step(leftDelta, rightDelta *zset.Set, outKey zset.KeyFunc) *zset.Set {
	out := zset.New(outKey)
	a.applyLeft(leftDelta, out)
	a.applyRight(rightDelta, out)
	return out
}

func (a *AntiSemi) applyLeft(delta *zset.Set, out *zset.Set) {
	groups := groupByPK(delta, a.left.pkOf)
	for _, g := range groups {
		old, existed := a.left.rows[g.pk]
		newWeight := old.weight + g.netDelta

		var jk string
		if existed {
			jk = keyStr(a.left.joinKey(old.value))
		}
		if newWeight != 0 {
			val := g.newValue
			if val == nil {
				val = old.value
			}
			newJK := keyStr(a.left.joinKey(val))
			if existed && jk != newJK {
				a.left.removeFromIndex(jk, g.pk)
			}
			a.left.rows[g.pk] = row{value: val, weight: newWeight}
			a.left.addToIndex(newJK, g.pk)
			jk = newJK
		} else if existed {
			a.left.removeFromIndex(jk, g.pk)
			delete(a.left.rows, g.pk)
		}

		wasEmitted := a.emitted[g.pk]
		nowEmitted := newWeight > 0 && a.shouldEmit(a.rightCount[jk])
		a.transition(g.pk, wasEmitted, nowEmitted, old.value, a.left.rows[g.pk].value, out)
	}
}

func (a *AntiSemi) applyRight(delta *zset.Set, out *zset.Set) {
	netByKey := make(map[string]int64)
	for _, e := range delta.Entries() {
		jk := keyStr(a.rightJK(e.Value))
		netByKey[jk] += e.Weight
	}

	for jk, d := range netByKey {
		before := a.rightCount[jk]
		after := before + d
		if after == 0 {
			delete(a.rightCount, jk)
		} else {
			a.rightCount[jk] = after
		}

		if a.shouldEmit(before) == a.shouldEmit(after) {
			continue
		}
		for pk := range a.left.bucket(jk) {
			lr := a.left.rows[pk]
			if lr.weight <= 0 {
				continue
			}
			wasEmitted := a.emitted[pk]
			nowEmitted := a.shouldEmit(after)
			a.transition(pk, wasEmitted, nowEmitted, lr.value, lr.value, out)
		}
	}
}

func (a *AntiSemi) transition(pk string, wasEmitted, nowEmitted bool, oldVal, newVal interface{}, out *zset.Set) {
	if wasEmitted == nowEmitted {
		return
	}
	if wasEmitted {
		out.Insert(oldVal, -1)
		delete(a.emitted, pk)
		return
	}
	out.Insert(newVal, 1)
	a.emitted[pk] = true
}

// Checkpoint snapshots left-side state, the right-key counts, and the
// emitted set.
func (a *AntiSemi) Checkpoint() func() {
	rl := a.left.checkpoint()
	savedCount := make(map[string]int64, len(a.rightCount))
	for k, v := range a.rightCount {
		savedCount[k] = v
	}
	savedEmitted := make(map[string]bool, len(a.emitted))
	for k, v := range a.emitted {
		savedEmitted[k] = v
	}
	return func() {
		rl()
		a.rightCount = savedCount
		a.emitted = savedEmitted
	}
}

// Reset clears all state.
func (a *AntiSemi) Reset() {
	a.left.reset()
	a.rightCount = make(map[string]int64)
	a.emitted = make(map[string]bool)
}
