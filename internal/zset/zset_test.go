package zset

import "testing"

func intKey(v interface{}) string {
	switch n := v.(type) {
	case int:
		return string(rune('a' + n))
	default:
		return "?"
	}
}

func assertWeight(t *testing.T, s *Set, v interface{}, want int64, description string) {
	got := s.WeightOf(v)
	if got != want {
		t.Errorf("%s: WeightOf(%v) = %d, want %d", description, v, got, want)
	}
}

func TestInsertPrunesZeroWeight(t *testing.T) {
	s := New(intKey)
	s.Insert(1, 5)
	s.Insert(1, -5)
	assertWeight(t, s, 1, 0, "insert then negate to zero")
	if s.Len() != 0 {
		t.Errorf("expected zero-weight entry to be pruned, Len() = %d", s.Len())
	}
}

func TestAddIsPointwise(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 2}, Pair{2, 3})
	b := FromPairs(intKey, Pair{1, -2}, Pair{3, 1})
	sum := a.Add(b)
	assertWeight(t, sum, 1, 0, "1 should cancel")
	assertWeight(t, sum, 2, 3, "2 untouched")
	assertWeight(t, sum, 3, 1, "3 introduced by b")
	if sum.Len() != 2 {
		t.Errorf("expected 2 surviving entries, got %d", sum.Len())
	}
}

func TestSubtractIsAddNegate(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 5})
	b := FromPairs(intKey, Pair{1, 5})
	diff := a.Subtract(b)
	if !diff.IsEmpty() {
		t.Errorf("expected a - a to be empty, got %d entries", diff.Len())
	}
}

func TestFilterLinearity(t *testing.T) {
	p := func(v interface{}) bool { return v.(int)%2 == 0 }
	a := FromPairs(intKey, Pair{1, 1}, Pair{2, 1})
	b := FromPairs(intKey, Pair{2, 1}, Pair{3, 1})

	lhs := a.Add(b).Filter(p)
	rhs := a.Filter(p).Add(b.Filter(p))
	if !lhs.Equal(rhs) {
		t.Errorf("filter(a+b) != filter(a)+filter(b): %v vs %v", lhs.Entries(), rhs.Entries())
	}
}

func TestMapMergesCollisions(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 1}, Pair{3, 1})
	out := a.Map(func(v interface{}) interface{} { return v.(int) % 2 }, intKey)
	assertWeight(t, out, 1, 2, "1 and 3 both map to 1 mod 2")
}

func TestUnionCommutes(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 2})
	b := FromPairs(intKey, Pair{2, 3})
	if !a.Add(b).Equal(b.Add(a)) {
		t.Errorf("union should commute")
	}
}

func TestCountAndSum(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 2}, Pair{2, 3})
	if got := a.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
	if got := a.Sum(func(v interface{}) float64 { return float64(v.(int)) }); got != 8 {
		t.Errorf("Sum() = %v, want 8", got)
	}
}

func TestValuesIgnoresNonPositiveWeights(t *testing.T) {
	a := FromPairs(intKey, Pair{1, 1}, Pair{2, -1})
	vals := a.Values()
	if len(vals) != 1 || vals[0] != 1 {
		t.Errorf("Values() = %v, want [1]", vals)
	}
}
