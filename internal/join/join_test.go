package join

import (
	"fmt"
	"testing"

	"sentra/internal/zset"
)

type customer struct {
	id   int
	name string
}

type order struct {
	id         int
	customerID int
	amount     int
}

type joined struct {
	orderID    int
	customerID int
	name       string
	amount     int
}

func orderKey(v interface{}) string {
	o := v.(order)
	return fmt.Sprintf("%d|%d|%d", o.id, o.customerID, o.amount)
}

func customerKey(v interface{}) string {
	c := v.(customer)
	return fmt.Sprintf("%d|%s", c.id, c.name)
}

func joinedKey(v interface{}) string {
	j := v.(joined)
	return fmt.Sprintf("%d|%d|%s|%d", j.orderID, j.customerID, j.name, j.amount)
}

func combineOrderCustomer(l, r interface{}) interface{} {
	o := l.(order)
	c := r.(customer)
	return joined{orderID: o.id, customerID: o.customerID, name: c.name, amount: o.amount}
}

func newOrdersJoin() *Indexed {
	return NewIndexed(
		func(v interface{}) interface{} { return v.(order).id },
		func(v interface{}) interface{} { return v.(order).customerID },
		func(v interface{}) interface{} { return v.(customer).id },
		func(v interface{}) interface{} { return v.(customer).id },
		combineOrderCustomer,
	)
}

func weightOf(z *zset.Set, v interface{}, key zset.KeyFunc) int64 {
	for _, e := range z.Entries() {
		if key(e.Value) == key(v) {
			return e.Weight
		}
	}
	return z.WeightOf(v)
}

// S4 — indexed join scenario from spec.md §8: insert both sides, add a
// new order against an existing customer, then retract the customer and
// confirm both dependent pairs retract.
func TestIndexedJoinScenario(t *testing.T) {
	j := newOrdersJoin()
	empty := zset.New(orderKey)
	emptyC := zset.New(customerKey)

	left := zset.FromPairs(orderKey, zset.Pair{Value: order{1, 100, 50}, Weight: 1})
	right := zset.FromPairs(customerKey, zset.Pair{Value: customer{100, "Alice"}, Weight: 1})
	out := j.Step(left, right, joinedKey)
	want := joined{1, 100, "Alice", 50}
	if w := weightOf(out, want, joinedKey); w != 1 {
		t.Fatalf("step1: weight of %v = %d, want 1 (entries %v)", want, w, out.Entries())
	}

	left2 := zset.FromPairs(orderKey, zset.Pair{Value: order{2, 100, 30}, Weight: 1})
	out2 := j.Step(left2, emptyC, joinedKey)
	want2 := joined{2, 100, "Alice", 30}
	if w := weightOf(out2, want2, joinedKey); w != 1 {
		t.Fatalf("step2: weight of %v = %d, want 1 (entries %v)", want2, w, out2.Entries())
	}

	custDelete := zset.FromPairs(customerKey, zset.Pair{Value: customer{100, "Alice"}, Weight: -1})
	out3 := j.Step(empty, custDelete, joinedKey)
	if w := weightOf(out3, want, joinedKey); w != -1 {
		t.Errorf("step3: retraction weight of %v = %d, want -1 (entries %v)", want, w, out3.Entries())
	}
	if w := weightOf(out3, want2, joinedKey); w != -1 {
		t.Errorf("step3: retraction weight of %v = %d, want -1 (entries %v)", want2, w, out3.Entries())
	}
	if len(out3.Entries()) != 2 {
		t.Errorf("step3: expected exactly 2 retractions, got %v", out3.Entries())
	}
}

// Both sides changing in the same step must produce the ΔA⋈ΔB cross
// term too, not just the two one-sided terms.
func TestIndexedJoinSimultaneousInsertOnBothSides(t *testing.T) {
	j := newOrdersJoin()
	left := zset.FromPairs(orderKey, zset.Pair{Value: order{3, 200, 10}, Weight: 1})
	right := zset.FromPairs(customerKey, zset.Pair{Value: customer{200, "Bob"}, Weight: 1})
	out := j.Step(left, right, joinedKey)
	want := joined{3, 200, "Bob", 10}
	if w := weightOf(out, want, joinedKey); w != 1 {
		t.Fatalf("weight of %v = %d, want 1 (entries %v)", want, w, out.Entries())
	}
}

// An update (retract-old + insert-new, same PK, same step) on the join
// key itself must migrate the row's matches rather than double-count.
func TestIndexedJoinUpdateMigratesJoinKey(t *testing.T) {
	j := newOrdersJoin()
	custA := zset.FromPairs(customerKey, zset.Pair{Value: customer{1, "A"}, Weight: 1})
	custB := zset.FromPairs(customerKey, zset.Pair{Value: customer{2, "B"}, Weight: 1})
	_ = j.Step(zset.New(orderKey), custA, joinedKey)
	_ = j.Step(zset.New(orderKey), custB, joinedKey)

	ins := zset.FromPairs(orderKey, zset.Pair{Value: order{5, 1, 99}, Weight: 1})
	out := j.Step(ins, zset.New(customerKey), joinedKey)
	wantFirst := joined{5, 1, "A", 99}
	if w := weightOf(out, wantFirst, joinedKey); w != 1 {
		t.Fatalf("initial join: weight of %v = %d, want 1", wantFirst, w)
	}

	update := zset.FromPairs(orderKey,
		zset.Pair{Value: order{5, 1, 99}, Weight: -1},
		zset.Pair{Value: order{5, 2, 99}, Weight: 1},
	)
	out2 := j.Step(update, zset.New(customerKey), joinedKey)
	if w := weightOf(out2, wantFirst, joinedKey); w != -1 {
		t.Errorf("migrated join: retraction of %v = %d, want -1 (entries %v)", wantFirst, w, out2.Entries())
	}
	wantSecond := joined{5, 2, "B", 99}
	if w := weightOf(out2, wantSecond, joinedKey); w != 1 {
		t.Errorf("migrated join: weight of %v = %d, want 1 (entries %v)", wantSecond, w, out2.Entries())
	}
}

func TestAppendOnlyJoin(t *testing.T) {
	j := NewAppendOnly(
		func(v interface{}) interface{} { return v.(order).customerID },
		func(v interface{}) interface{} { return v.(customer).id },
		combineOrderCustomer,
	)
	cust := zset.FromPairs(customerKey, zset.Pair{Value: customer{1, "A"}, Weight: 1})
	out := j.Step(zset.New(orderKey), cust, joinedKey)
	if !out.IsEmpty() {
		t.Fatalf("no orders yet: expected empty Δ, got %v", out.Entries())
	}

	ord := zset.FromPairs(orderKey, zset.Pair{Value: order{10, 1, 7}, Weight: 1})
	out2 := j.Step(ord, zset.New(customerKey), joinedKey)
	want := joined{10, 1, "A", 7}
	if w := weightOf(out2, want, joinedKey); w != 1 {
		t.Fatalf("weight of %v = %d, want 1 (entries %v)", want, w, out2.Entries())
	}
}

func TestAntiJoinAndSemiJoinTransitions(t *testing.T) {
	newJoin := func(mode Mode) *AntiSemi {
		return NewAntiSemi(
			func(v interface{}) interface{} { return v.(customer).id },
			func(v interface{}) interface{} { return v.(customer).id },
			func(v interface{}) interface{} { return v.(order).customerID },
			mode,
		)
	}
	alice := customer{1, "Alice"}
	custDelta := zset.FromPairs(customerKey, zset.Pair{Value: alice, Weight: 1})
	orderIns := zset.FromPairs(orderKey, zset.Pair{Value: order{10, 1, 5}, Weight: 1})
	orderDel := zset.FromPairs(orderKey, zset.Pair{Value: order{10, 1, 5}, Weight: -1})

	anti := newJoin(Anti)
	out := anti.Step(custDelta, zset.New(orderKey), customerKey)
	if w := weightOf(out, alice, customerKey); w != 1 {
		t.Fatalf("anti-join: customer with no orders should emit +1, got %d (entries %v)", w, out.Entries())
	}
	out2 := anti.Step(zset.New(customerKey), orderIns, customerKey)
	if w := weightOf(out2, alice, customerKey); w != -1 {
		t.Fatalf("anti-join: first order should retract the customer, got %d (entries %v)", w, out2.Entries())
	}
	out3 := anti.Step(zset.New(customerKey), orderDel, customerKey)
	if w := weightOf(out3, alice, customerKey); w != 1 {
		t.Fatalf("anti-join: last order removed should re-emit the customer, got %d (entries %v)", w, out3.Entries())
	}

	semi := newJoin(Semi)
	out = semi.Step(custDelta, zset.New(orderKey), customerKey)
	if !out.IsEmpty() {
		t.Fatalf("semi-join: customer with no orders should emit nothing, got %v", out.Entries())
	}
	out2 = semi.Step(zset.New(customerKey), orderIns, customerKey)
	if w := weightOf(out2, alice, customerKey); w != 1 {
		t.Fatalf("semi-join: first matching order should emit +1, got %d (entries %v)", w, out2.Entries())
	}
	out3 = semi.Step(zset.New(customerKey), orderDel, customerKey)
	if w := weightOf(out3, alice, customerKey); w != -1 {
		t.Fatalf("semi-join: last order removed should retract the customer, got %d (entries %v)", w, out3.Entries())
	}
}
