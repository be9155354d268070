package circuit

import (
	"fmt"
	"testing"

	"sentra/internal/stream"
	"sentra/internal/zset"
)

type user struct {
	id     int
	status string
}

func userStructKey(v interface{}) string {
	u := v.(user)
	return fmt.Sprintf("%d|%s", u.id, u.status)
}

func userPK(v interface{}) interface{} { return v.(user).id }

func assertValues(t *testing.T, got []interface{}, want []interface{}, description string) {
	if len(got) != len(want) {
		t.Fatalf("%s: got %d values %v, want %d %v", description, len(got), got, len(want), want)
	}
	seen := make(map[interface{}]bool)
	for _, v := range got {
		seen[v] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("%s: missing expected value %v in %v", description, w, got)
		}
	}
}

// S1 — filter scenario from spec.md §8.
func TestFilterScenario(t *testing.T) {
	c := New()
	users, err := c.DefineInput("users", userStructKey, userPK)
	if err != nil {
		t.Fatal(err)
	}

	err = c.AddOperator("active", []string{"users"}, OpFunc(func(ins []*zset.Set) *zset.Set {
		return stream.Filter(ins[0], func(v interface{}) bool { return v.(user).status == "active" })
	}))
	if err != nil {
		t.Fatal(err)
	}

	sub := newCapture()
	if err := c.Subscribe("active", sub.sink); err != nil {
		t.Fatal(err)
	}

	if err := c.Step(map[string][]DeltaOp{
		"users": {
			{Op: "insert", Row: user{1, "active"}},
			{Op: "insert", Row: user{2, "inactive"}},
			{Op: "insert", Row: user{3, "active"}},
		},
	}); err != nil {
		t.Fatal(err)
	}
	assertValues(t, sub.last().Values(), []interface{}{user{1, "active"}, user{3, "active"}}, "first step")

	if err := c.Step(map[string][]DeltaOp{
		"users": {{Op: "update", Row: user{2, "active"}}},
	}); err != nil {
		t.Fatal(err)
	}
	assertValues(t, sub.last().Values(), []interface{}{user{2, "active"}}, "update from inactive to active")
	_ = users
}

// S2 — incremental SUM scenario from spec.md §8.
func TestIncrementalSumScenario(t *testing.T) {
	c := New()
	numKey := func(v interface{}) string { return fmt.Sprintf("%v", v) }
	_, err := c.DefineInput("nums", numKey, func(v interface{}) interface{} { return v.([2]int)[0] })
	if err != nil {
		t.Fatal(err)
	}

	in := stream.NewIntegrator(numKey)
	// Output identity must be keyed by full row content (spec.md §4.5), not
	// a constant: otherwise retracting the old scalar and inserting the new
	// one collapse into the same map slot and cancel to nothing.
	scalarKey := func(v interface{}) string { return fmt.Sprintf("%v", v) }
	diff := stream.NewDifferentiator(scalarKey)

	err = c.AddOperator("sum", []string{"nums"}, sumOp{in: in, diff: diff, scalarKey: scalarKey})
	if err != nil {
		t.Fatal(err)
	}

	sub := newCapture()
	if err := c.Subscribe("sum", sub.sink); err != nil {
		t.Fatal(err)
	}

	step := func(rows ...[2]int) {
		var ops []DeltaOp
		for _, r := range rows {
			ops = append(ops, DeltaOp{Op: "insert", Row: r})
		}
		if err := c.Step(map[string][]DeltaOp{"nums": ops}); err != nil {
			t.Fatal(err)
		}
	}

	step([2]int{1, 10}, [2]int{2, 20}, [2]int{3, 30})
	if got := sub.last().Sum(func(v interface{}) float64 { return v.(float64) }); got != 60 {
		t.Errorf("first step Δ sum = %v, want 60", got)
	}

	step([2]int{4, 40})
	if got := sub.last().Sum(func(v interface{}) float64 { return v.(float64) }); got != 40 {
		t.Errorf("second step Δ sum = %v, want 40", got)
	}
}

// sumOp implements Op for SELECT SUM(v): integrate the raw rows, recompute
// the scalar, and differentiate against the previous scalar, per spec.md
// §4.5's "linear aggregation without GROUP BY" note.
type sumOp struct {
	in        *stream.Integrator
	diff      *stream.Differentiator
	scalarKey zset.KeyFunc
}

func (s sumOp) Compute(ins []*zset.Set) *zset.Set {
	state := s.in.Step(ins[0])
	total := state.Sum(func(v interface{}) float64 { return float64(v.([2]int)[1]) })
	scalar := zset.FromPairs(s.scalarKey, zset.Pair{Value: total, Weight: 1})
	return s.diff.Step(scalar)
}

func (s sumOp) Checkpoint() func() {
	r1 := s.in.Checkpoint()
	r2 := s.diff.Checkpoint()
	return func() { r1(); r2() }
}

func (s sumOp) Reset() {
	s.in.Reset()
	s.diff.Reset()
}

func TestIdempotentZero(t *testing.T) {
	c := New()
	_, err := c.DefineInput("users", userStructKey, userPK)
	if err != nil {
		t.Fatal(err)
	}
	err = c.AddOperator("all", []string{"users"}, OpFunc(func(ins []*zset.Set) *zset.Set { return ins[0] }))
	if err != nil {
		t.Fatal(err)
	}
	sub := newCapture()
	c.Subscribe("all", sub.sink)

	if err := c.Step(map[string][]DeltaOp{"users": {{Op: "insert", Row: user{1, "active"}}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Step(nil); err != nil {
		t.Fatal(err)
	}
	if !sub.last().IsEmpty() {
		t.Errorf("step(empty) should produce empty Δ, got %v", sub.last().Entries())
	}
}

func TestRetractionSymmetry(t *testing.T) {
	c := New()
	_, err := c.DefineInput("users", userStructKey, userPK)
	if err != nil {
		t.Fatal(err)
	}
	sub := NewSubscriber(userStructKey)
	c.Subscribe("users", sub.Sink())

	before := sub.Count()

	if err := c.Step(map[string][]DeltaOp{"users": {{Op: "insert", Row: user{1, "active"}}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Step(map[string][]DeltaOp{"users": {{Op: "delete", Key: 1}}}); err != nil {
		t.Fatal(err)
	}

	if sub.Count() != before {
		t.Errorf("insert then delete should return to the prior count: got %d, want %d", sub.Count(), before)
	}
}

func TestUnknownOperatorInputIsConstructionError(t *testing.T) {
	c := New()
	err := c.AddOperator("op", []string{"ghost"}, OpFunc(func(ins []*zset.Set) *zset.Set { return ins[0] }))
	if err == nil {
		t.Fatal("expected construction error for unknown input")
	}
}

// boomOp mutates an integrator it owns and then always panics, so tests
// can observe whether a circuit-level rollback reverts that mutation.
type boomOp struct {
	in *stream.Integrator
}

func (b boomOp) Compute(ins []*zset.Set) *zset.Set {
	b.in.Step(ins[0])
	panic("simulated predicate failure")
}

func (b boomOp) Checkpoint() func() { return b.in.Checkpoint() }
func (b boomOp) Reset()             { b.in.Reset() }

func TestStepAbortsOnPanicAndRollsBack(t *testing.T) {
	c := New()
	_, err := c.DefineInput("users", userStructKey, userPK)
	if err != nil {
		t.Fatal(err)
	}
	boom := boomOp{in: stream.NewIntegrator(userStructKey)}
	if err := c.AddOperator("boom", []string{"users"}, boom); err != nil {
		t.Fatal(err)
	}

	if err := c.Step(map[string][]DeltaOp{"users": {{Op: "insert", Row: user{1, "active"}}}}); err == nil {
		t.Fatal("expected step error from panicking operator")
	}
	if !boom.in.State().IsEmpty() {
		t.Errorf("integrator mutated during an aborted step should be rolled back, got %v", boom.in.State().Entries())
	}
}

// capture is a tiny test sink that records the last delta it saw.
type capture struct {
	deltas []*zset.Set
}

func newCapture() *capture { return &capture{} }

func (c *capture) sink(delta *zset.Set) error {
	c.deltas = append(c.deltas, delta)
	return nil
}

func (c *capture) last() *zset.Set { return c.deltas[len(c.deltas)-1] }
