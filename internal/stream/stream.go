// Package stream implements the per-step Z-set operators of spec.md §4.2:
// the stateless (linear) operators that transform a Δ directly, and the
// stateful ones (integrate, differentiate, distinct) that carry operator
// state across steps.
package stream

import "sentra/internal/zset"

// Filter returns the subset of delta for which p holds. Linear.
func Filter(delta *zset.Set, p func(v interface{}) bool) *zset.Set {
	return delta.Filter(p)
}

// Map projects each entry of delta through f under newKey. Linear when f
// is pure.
func Map(delta *zset.Set, f func(v interface{}) interface{}, newKey zset.KeyFunc) *zset.Set {
	return delta.Map(f, newKey)
}

// FlatMap emits zero or more outputs per input entry of delta. Linear.
func FlatMap(delta *zset.Set, f func(v interface{}) []interface{}, newKey zset.KeyFunc) *zset.Set {
	return delta.FlatMap(f, newKey)
}

// Union is UNION ALL: Z-set addition. Commutative: Union(a,b) == Union(b,a).
func Union(a, b *zset.Set) *zset.Set {
	return a.Add(b)
}

// Integrator maintains running state S; each Step updates S += Δ and
// returns the new S. Cost is O(|Δ|) per step.
type Integrator struct {
	key   zset.KeyFunc
	state *zset.Set
}

// NewIntegrator creates an integrator whose state starts at the empty
// Z-set under key.
func NewIntegrator(key zset.KeyFunc) *Integrator {
	return &Integrator{key: key, state: zset.New(key)}
}

// Step applies delta to the running state and returns the new state. The
// returned Set is a live view of internal state and must not be mutated
// by the caller.
func (in *Integrator) Step(delta *zset.Set) *zset.Set {
	in.state.AddInPlace(delta)
	return in.state
}

// State returns the current integrated Z-set without modifying it.
func (in *Integrator) State() *zset.Set { return in.state }

// Reset returns the integrator's state to the empty Z-set.
func (in *Integrator) Reset() { in.state = zset.New(in.key) }

// Checkpoint saves the current state and returns a closure that restores
// it, for the circuit to roll back a step aborted by a step error. The
// state is cloned since Step mutates it in place.
func (in *Integrator) Checkpoint() func() {
	saved := in.state.Clone()
	return func() { in.state = saved }
}

// Differentiator maintains the previous input X; each Step outputs
// X - P and sets P = X. Integrate and Differentiate are inverses.
type Differentiator struct {
	key  zset.KeyFunc
	prev *zset.Set
}

// NewDifferentiator creates a differentiator with an empty previous state.
func NewDifferentiator(key zset.KeyFunc) *Differentiator {
	return &Differentiator{key: key, prev: zset.New(key)}
}

// Step returns x - prev and advances prev to x.
func (d *Differentiator) Step(x *zset.Set) *zset.Set {
	out := x.Subtract(d.prev)
	d.prev = x.Clone()
	return out
}

// Reset clears the differentiator's previous state.
func (d *Differentiator) Reset() { d.prev = zset.New(d.key) }

// Checkpoint saves prev and returns a closure that restores it.
func (d *Differentiator) Checkpoint() func() {
	saved := d.prev
	return func() { d.prev = saved }
}

// Distinct maintains the per-element integrated weight and, on each step,
// emits a set-valued Δ: +1 when an element's integrated weight transitions
// from <= 0 to > 0, -1 on the reverse transition, and nothing otherwise.
type Distinct struct {
	key     zset.KeyFunc
	weights map[string]int64
}

// NewDistinct creates a Distinct operator over the given key function.
func NewDistinct(key zset.KeyFunc) *Distinct {
	return &Distinct{key: key, weights: make(map[string]int64)}
}

// Step applies delta to the integrated weights and returns the set-valued
// transition Δ.
func (ds *Distinct) Step(delta *zset.Set) *zset.Set {
	out := zset.New(ds.key)
	for _, e := range delta.Entries() {
		k := ds.key(e.Value)
		before := ds.weights[k]
		after := before + e.Weight
		if after == 0 {
			delete(ds.weights, k)
		} else {
			ds.weights[k] = after
		}

		wasPresent := before > 0
		isPresent := after > 0
		switch {
		case !wasPresent && isPresent:
			out.Insert(e.Value, 1)
		case wasPresent && !isPresent:
			out.Insert(e.Value, -1)
		}
	}
	return out
}

// Reset clears all tracked element weights.
func (ds *Distinct) Reset() {
	ds.weights = make(map[string]int64)
}

// Checkpoint saves the current weight map and returns a closure that
// restores it.
func (ds *Distinct) Checkpoint() func() {
	weights := make(map[string]int64, len(ds.weights))
	for k, v := range ds.weights {
		weights[k] = v
	}
	return func() {
		ds.weights = weights
	}
}

// Union followed by Distinct implements SQL UNION (as opposed to UNION
// ALL, which is plain Union). UnionDistinct is stateful because Distinct
// is; it owns its own Distinct operator.
type UnionDistinct struct {
	distinct *Distinct
}

// NewUnionDistinct creates a stateful UNION operator over key.
func NewUnionDistinct(key zset.KeyFunc) *UnionDistinct {
	return &UnionDistinct{distinct: NewDistinct(key)}
}

// Step computes UNION ALL of a and b, then feeds it through Distinct.
func (u *UnionDistinct) Step(a, b *zset.Set) *zset.Set {
	return u.distinct.Step(Union(a, b))
}

// Reset clears the underlying Distinct state.
func (u *UnionDistinct) Reset() { u.distinct.Reset() }

// Checkpoint delegates to the underlying Distinct operator.
func (u *UnionDistinct) Checkpoint() func() { return u.distinct.Checkpoint() }
