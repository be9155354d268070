// Package circuit implements the operator DAG of spec.md §4.3: named
// inputs, registered operators executed in topological order, and named
// view outputs delivered to subscribed sinks once per step.
package circuit

import (
	"fmt"

	"sentra/internal/ivmerr"
	"sentra/internal/zset"
)

// Op is the compute contract every non-table node in the graph satisfies:
// given this step's Δ for each declared input, in declared order, produce
// this node's output Δ. Stateless operators (filter/map/union) close over
// nothing but their pure function; stateful ones (integrate, distinct,
// join, aggregate) close over operator-owned state.
type Op interface {
	Compute(ins []*zset.Set) *zset.Set
}

// OpFunc adapts a plain function to the Op interface for stateless
// operators that need no Reset/Checkpoint.
type OpFunc func(ins []*zset.Set) *zset.Set

// Compute implements Op.
func (f OpFunc) Compute(ins []*zset.Set) *zset.Set { return f(ins) }

// Resetter is implemented by operators with internal state that must be
// zeroed on Circuit.Reset.
type Resetter interface {
	Reset()
}

// Checkpointer is implemented by operators whose state must be rolled
// back if a later node in the same step fails (spec.md §7: a step error
// leaves integrated state exactly as it was before the step).
type Checkpointer interface {
	Checkpoint() func()
}

// Sink receives a view's Δ once per step. A sink that panics or returns
// an error is isolated: the error is recorded against that sink and
// sibling sinks on the same stream still fire (spec.md §7).
type Sink func(delta *zset.Set) error

// DeltaOp is one entry of the wire delta format of spec.md §6.
type DeltaOp struct {
	Op  string      `json:"op"`            // "insert", "update", or "delete"
	Row interface{} `json:"row,omitempty"` // full new row for insert/update
	Key interface{} `json:"key,omitempty"` // primary-key scalar (or tuple) for delete
}

type opNode struct {
	id     string
	inputs []string
	op     Op
}

// SinkError records a sink failure attributed to its stream and
// registration slot, without aborting the step.
type SinkError struct {
	Stream string
	Index  int
	Err    error
}

func (e SinkError) Error() string {
	return fmt.Sprintf("sink %d on stream %q: %v", e.Index, e.Stream, e.Err)
}

// Circuit is a DAG of tables (sources) and operators (derived nodes),
// executed once per Step call in the order nodes were registered — which
// is automatically a valid topological order, since an operator may only
// reference inputs that already exist in the graph (spec.md §4.3: cycles
// are structurally impossible by construction).
type Circuit struct {
	order      []string
	tables     map[string]*Table
	ops        map[string]*opNode
	sinks      map[string][]Sink
	lastErrors []SinkError
}

// New creates an empty circuit.
func New() *Circuit {
	return &Circuit{
		tables: make(map[string]*Table),
		ops:    make(map[string]*opNode),
		sinks:  make(map[string][]Sink),
	}
}

func (c *Circuit) exists(id string) bool {
	if _, ok := c.tables[id]; ok {
		return true
	}
	_, ok := c.ops[id]
	return ok
}

// DefineInput declares a named base table. structuralKey fingerprints a
// row for Z-set identity (distinguishing logically different rows);
// primaryKey extracts the row's primary-key value, used only internally
// to translate "update" wire ops into a retract-then-reinsert pair
// (spec.md's "Primary-key vs. structural identity for deltas" design
// note — the two identities are never conflated).
func (c *Circuit) DefineInput(id string, structuralKey zset.KeyFunc, primaryKey func(row interface{}) interface{}) (*Table, error) {
	if c.exists(id) {
		return nil, ivmerr.New(ivmerr.ConstructionError, "input %q already defined", id)
	}
	t := newTable(structuralKey, primaryKey)
	c.tables[id] = t
	c.order = append(c.order, id)
	return t, nil
}

// AddOperator registers a derived node. Every entry of inputs must
// already exist in the graph (as a table or a previously added
// operator); otherwise this is a construction-time failure and the
// circuit is left unmodified.
func (c *Circuit) AddOperator(id string, inputs []string, op Op) error {
	if c.exists(id) {
		return ivmerr.New(ivmerr.ConstructionError, "operator %q already defined", id)
	}
	for _, in := range inputs {
		if !c.exists(in) {
			return ivmerr.New(ivmerr.ConstructionError, "operator %q references unknown input %q", id, in)
		}
	}
	cp := make([]string, len(inputs))
	copy(cp, inputs)
	c.ops[id] = &opNode{id: id, inputs: cp, op: op}
	c.order = append(c.order, id)
	return nil
}

// Subscribe registers sink against streamID (a table or operator id).
// Multiple sinks on the same stream fire in registration order.
func (c *Circuit) Subscribe(streamID string, sink Sink) error {
	if !c.exists(streamID) {
		return ivmerr.New(ivmerr.ConstructionError, "subscribe: unknown stream %q", streamID)
	}
	c.sinks[streamID] = append(c.sinks[streamID], sink)
	return nil
}

// AddOutput is an alias for Subscribe, matching the engine embedding API
// vocabulary of spec.md §6.
func (c *Circuit) AddOutput(streamID string, sink Sink) error { return c.Subscribe(streamID, sink) }

// SinkErrors returns the sink failures recorded during the most recent
// Step call.
func (c *Circuit) SinkErrors() []SinkError { return c.lastErrors }

// Reset returns every stateful operator and every table's row store to
// its initial (empty) state. Subscriptions are untouched.
func (c *Circuit) Reset() {
	for _, t := range c.tables {
		t.reset()
	}
	for _, n := range c.ops {
		if r, ok := n.op.(Resetter); ok {
			r.Reset()
		}
	}
	c.lastErrors = nil
}

// Step runs one step: each entry of inputs supplies the wire-format delta
// ops for that table id (any table not mentioned receives the empty
// Z-set); operators are evaluated in topological order; each view's Δ is
// delivered to its sinks, in registration order, exactly once.
//
// If any table or operator computation panics, the step is aborted: all
// stateful node state is rolled back to its pre-step value, the Δ is
// discarded, and the panic is surfaced as a *ivmerr.Error of kind
// StepError. Sink failures do not abort the step — they are isolated and
// collected for SinkErrors().
func (c *Circuit) Step(inputs map[string][]DeltaOp) (err error) {
	for id := range inputs {
		if !c.exists(id) {
			return ivmerr.New(ivmerr.StepError, "step: unknown input %q", id)
		}
	}

	restores := c.checkpointAll()
	defer func() {
		if r := recover(); r != nil {
			for i := len(restores) - 1; i >= 0; i-- {
				restores[i]()
			}
			err = ivmerr.New(ivmerr.StepError, "step aborted: %v", r)
		}
	}()

	results := make(map[string]*zset.Set, len(c.order))
	for _, id := range c.order {
		if t, ok := c.tables[id]; ok {
			results[id] = t.apply(inputs[id])
			continue
		}
		n := c.ops[id]
		ins := make([]*zset.Set, len(n.inputs))
		for i, inID := range n.inputs {
			ins[i] = results[inID]
		}
		results[id] = n.op.Compute(ins)
	}

	c.lastErrors = nil
	for _, id := range c.order {
		delta := results[id]
		for i, sink := range c.sinks[id] {
			if serr := callSink(sink, delta); serr != nil {
				c.lastErrors = append(c.lastErrors, SinkError{Stream: id, Index: i, Err: serr})
			}
		}
	}
	return nil
}

// callSink invokes sink, converting a panic into an error so one broken
// sink cannot abort delivery to its siblings.
func callSink(sink Sink, delta *zset.Set) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink(delta)
}

func (c *Circuit) checkpointAll() []func() {
	var restores []func()
	for _, t := range c.tables {
		restores = append(restores, t.checkpoint())
	}
	for _, n := range c.ops {
		if cp, ok := n.op.(Checkpointer); ok {
			restores = append(restores, cp.Checkpoint())
		}
	}
	return restores
}
