// Package aggregate implements the GROUP BY state machine of spec.md
// §4.5: per-group running state (count, sums, a live-value multiset for
// MIN/MAX), and the linear/integrated helpers for aggregation without a
// GROUP BY clause. It is grounded on the shape of
// internal/dataframe.GroupBy/Aggregate/Sum/Mean, reworked from
// recompute-from-scratch into incremental per-group state the way every
// other operator in this engine is incremental.
package aggregate

import (
	"fmt"

	"sentra/internal/stream"
	"sentra/internal/zset"
)

// Func names one of the supported aggregate functions.
type Func int

const (
	Count Func = iota
	Sum
	Avg
	Min
	Max
)

// Spec describes one aggregate output column: which function to apply
// and how to extract the numeric value it operates on (ignored for
// Count, which counts rows regardless of value).
type Spec struct {
	Func    Func
	Extract func(row interface{}) float64
}

// Extractor pulls the grouping key out of an input row.
type Extractor func(row interface{}) interface{}

// BuildRow assembles the final output row from the group's key value and
// its computed aggregate outputs, in Specs order (AVG already divided).
type BuildRow func(groupKey interface{}, values []float64) interface{}

// groupState is the per-group running state of spec.md §4.5: a row
// count, one running sum per SUM/AVG/COUNT spec, one live-value
// multiset per MIN/MAX spec, and the last row emitted for this group so
// the next step can retract it.
type groupState struct {
	groupKeyVal interface{}
	count       int64
	sums        []float64
	extrema     []*multiset
	lastOutput  interface{}
}

func newGroupState(groupKeyVal interface{}, specs []Spec) *groupState {
	g := &groupState{
		groupKeyVal: groupKeyVal,
		sums:        make([]float64, len(specs)),
		extrema:     make([]*multiset, len(specs)),
	}
	for i, spec := range specs {
		if spec.Func == Min || spec.Func == Max {
			g.extrema[i] = newMultiset()
		}
	}
	return g
}

func (g *groupState) clone() *groupState {
	cp := &groupState{
		groupKeyVal: g.groupKeyVal,
		count:       g.count,
		sums:        append([]float64(nil), g.sums...),
		extrema:     make([]*multiset, len(g.extrema)),
		lastOutput:  g.lastOutput,
	}
	for i, m := range g.extrema {
		if m != nil {
			cp.extrema[i] = m.clone()
		}
	}
	return cp
}

// GroupBy is the incremental GROUP BY operator: it implements
// circuit.Op, circuit.Resetter and circuit.Checkpointer.
type GroupBy struct {
	groupKey Extractor
	specs    []Spec
	build    BuildRow
	outKey   zset.KeyFunc
	groups   map[string]*groupState
}

// New builds a GroupBy operator. outKey must key by full output-row
// content (not the group key alone) — see spec.md §4.5's "Output
// identity" rule, already learned the hard way in this engine's SUM
// test: keying by group alone makes the retract-old/insert-new pair of
// a group whose aggregate changed collapse to nothing.
func New(groupKey Extractor, specs []Spec, build BuildRow, outKey zset.KeyFunc) *GroupBy {
	return &GroupBy{
		groupKey: groupKey,
		specs:    specs,
		build:    build,
		outKey:   outKey,
		groups:   make(map[string]*groupState),
	}
}

func groupKeyStr(k interface{}) string { return fmt.Sprintf("%v", k) }

// Compute implements circuit.Op.
func (a *GroupBy) Compute(ins []*zset.Set) *zset.Set {
	return a.Step(ins[0])
}

// Step applies delta to per-group state and emits the retract-old/
// insert-new pair for every group it touched, per spec.md §4.5 steps
// 1-5.
func (a *GroupBy) Step(delta *zset.Set) *zset.Set {
	out := zset.New(a.outKey)
	touched := make(map[string]bool)

	for _, e := range delta.Entries() {
		gk := a.groupKey(e.Value)
		gks := groupKeyStr(gk)
		st, ok := a.groups[gks]
		if !ok {
			st = newGroupState(gk, a.specs)
			a.groups[gks] = st
		}
		st.count += e.Weight
		for i, spec := range a.specs {
			switch spec.Func {
			case Count:
				st.sums[i] += float64(e.Weight)
			case Sum, Avg:
				st.sums[i] += spec.Extract(e.Value) * float64(e.Weight)
			case Min, Max:
				st.extrema[i].add(spec.Extract(e.Value), e.Weight)
			}
		}
		touched[gks] = true
	}

	for gks := range touched {
		st := a.groups[gks]
		if st.lastOutput != nil {
			out.Insert(st.lastOutput, -1)
		}
		if st.count <= 0 {
			st.lastOutput = nil
			delete(a.groups, gks)
			continue
		}
		values := make([]float64, len(a.specs))
		for i, spec := range a.specs {
			switch spec.Func {
			case Count, Sum:
				values[i] = st.sums[i]
			case Avg:
				values[i] = st.sums[i] / float64(st.count)
			case Min:
				v, _ := st.extrema[i].min()
				values[i] = v
			case Max:
				v, _ := st.extrema[i].max()
				values[i] = v
			}
		}
		newRow := a.build(st.groupKeyVal, values)
		out.Insert(newRow, 1)
		st.lastOutput = newRow
	}
	return out
}

// Checkpoint snapshots every live group's state.
func (a *GroupBy) Checkpoint() func() {
	saved := make(map[string]*groupState, len(a.groups))
	for k, v := range a.groups {
		saved[k] = v.clone()
	}
	return func() { a.groups = saved }
}

// Reset discards all group state.
func (a *GroupBy) Reset() { a.groups = make(map[string]*groupState) }

// Scalar is the no-GROUP-BY aggregate helper of spec.md §4.5's "Linear
// aggregation without GROUP BY" note. Every function's output must still
// be a proper scalar-value Δ (retract the old total, insert the new
// one), never the step's raw linear delta restated as a fresh insert —
// that would double-count on every subsequent step once fed into an
// integrated subscriber. COUNT and SUM get there cheaply, by
// maintaining a running total updated by the linear Δ itself (no need
// to revisit the full live set); AVG, MIN and MAX are not linear under
// deletion and are recomputed from the fully integrated input each
// step, reusing stream.Integrator. All four then go through the same
// stream.Differentiator to turn "current total" into "Δ total",
// exactly as the circuit package's SUM test does.
type Scalar struct {
	fn        Func
	extract   func(row interface{}) float64
	total     float64 // running Count/Sum value; unused by Avg/Min/Max
	in        *stream.Integrator
	diff      *stream.Differentiator
	scalarKey zset.KeyFunc
}

// NewScalar builds a whole-input (no GROUP BY) aggregate of fn over
// extract. rowKey is the structural key of the rows being aggregated;
// it is only used for the internal integrator when fn requires one
// (Avg, Min, Max); Count and Sum ignore it.
func NewScalar(fn Func, extract func(row interface{}) float64, rowKey zset.KeyFunc) *Scalar {
	s := &Scalar{fn: fn, extract: extract}
	s.scalarKey = func(v interface{}) string { return fmt.Sprintf("%v", v) }
	s.diff = stream.NewDifferentiator(s.scalarKey)
	if fn == Avg || fn == Min || fn == Max {
		s.in = stream.NewIntegrator(rowKey)
	}
	return s
}

// Compute implements circuit.Op, returning the retract-old/insert-new Δ
// of the scalar result (keyed by its own value, per the output-identity
// rule).
func (s *Scalar) Compute(ins []*zset.Set) *zset.Set {
	delta := ins[0]
	var value float64
	switch s.fn {
	case Count:
		s.total += float64(delta.Count())
		value = s.total
	case Sum:
		s.total += delta.Sum(s.extract)
		value = s.total
	case Avg:
		state := s.in.Step(delta)
		n := state.Count()
		if n == 0 {
			value = 0
		} else {
			value = state.Sum(s.extract) / float64(n)
		}
	case Min:
		value = reduceMultiset(s.in.Step(delta), s.extract, true)
	case Max:
		value = reduceMultiset(s.in.Step(delta), s.extract, false)
	}
	scalar := zset.FromPairs(s.scalarKey, zset.Pair{Value: value, Weight: 1})
	return s.diff.Step(scalar)
}

// Checkpoint implements circuit.Checkpointer.
func (s *Scalar) Checkpoint() func() {
	savedTotal := s.total
	var r1 func()
	if s.in != nil {
		r1 = s.in.Checkpoint()
	}
	r2 := s.diff.Checkpoint()
	return func() {
		s.total = savedTotal
		if r1 != nil {
			r1()
		}
		r2()
	}
}

// Reset implements circuit.Resetter.
func (s *Scalar) Reset() {
	s.total = 0
	if s.in != nil {
		s.in.Reset()
	}
	s.diff.Reset()
}

// reduceMultiset recomputes MIN/MAX from scratch over an integrated
// Z-set's currently live (weight > 0) values. This is the "recompute"
// half of the integrate+differentiate pattern: correctness under
// deletion comes from always recomputing against the live set, never
// from tracking a running extremum that can't un-see a deleted value.
func reduceMultiset(state *zset.Set, extract func(row interface{}) float64, wantMin bool) float64 {
	var best float64
	first := true
	for _, v := range state.Values() {
		x := extract(v)
		if first || (wantMin && x < best) || (!wantMin && x > best) {
			best = x
			first = false
		}
	}
	return best
}
