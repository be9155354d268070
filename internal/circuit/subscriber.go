package circuit

import (
	"sort"

	"sentra/internal/zset"
)

// Subscriber maintains a materialized view by applying each Δ it
// receives to a keyed store — the "integrated-subscriber" helper of
// spec.md §6. ORDER BY and LIMIT are applied lazily here, at read time,
// never as streaming operators (spec.md §4.6 step 3, §9).
type Subscriber struct {
	integrator *zset.Set
	key        zset.KeyFunc
	orderBy    func(a, b interface{}) bool // a < b; nil means unordered
	limit      int                         // 0 means unlimited
}

// NewSubscriber creates a subscriber over key with no ordering or limit.
func NewSubscriber(key zset.KeyFunc) *Subscriber {
	return &Subscriber{integrator: zset.New(key), key: key}
}

// SetOrderBy installs a presentation-time ordering, applied by Values.
func (s *Subscriber) SetOrderBy(less func(a, b interface{}) bool) { s.orderBy = less }

// SetLimit installs a presentation-time row cap, applied by Values.
func (s *Subscriber) SetLimit(n int) { s.limit = n }

// Sink returns the Sink function to register with Circuit.Subscribe.
func (s *Subscriber) Sink() Sink {
	return func(delta *zset.Set) error {
		s.integrator.AddInPlace(delta)
		return nil
	}
}

// Values returns the view's current contents (weight > 0 rows), with any
// installed ORDER BY / LIMIT applied.
func (s *Subscriber) Values() []interface{} {
	vals := s.integrator.Values()
	if s.orderBy != nil {
		less := s.orderBy
		sort.Slice(vals, func(i, j int) bool { return less(vals[i], vals[j]) })
	}
	if s.limit > 0 && len(vals) > s.limit {
		vals = vals[:s.limit]
	}
	return vals
}

// Count returns the number of live rows (ignoring ORDER BY / LIMIT, which
// are presentation-only).
func (s *Subscriber) Count() int { return len(s.integrator.Values()) }
