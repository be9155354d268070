package circuit

import (
	"fmt"

	"sentra/internal/zset"
)

// Table is a named base input. It owns a primary-key row store that lets
// "update" wire ops be translated into the retract-then-reinsert pair the
// rest of the engine expects, without ever conflating primary-key
// identity with the Z-set's structural identity (spec.md's "Primary-key
// vs. structural identity for deltas" design note).
type Table struct {
	structuralKey zset.KeyFunc
	primaryKey    func(row interface{}) interface{}
	rows          map[string]interface{}
}

func newTable(structuralKey zset.KeyFunc, primaryKey func(row interface{}) interface{}) *Table {
	return &Table{
		structuralKey: structuralKey,
		primaryKey:    primaryKey,
		rows:          make(map[string]interface{}),
	}
}

// StructuralKey exposes the table's Z-set identity function, for
// operators built downstream of this table to reuse when constructing
// derived Z-sets over the same rows.
func (t *Table) StructuralKey() zset.KeyFunc { return t.structuralKey }

func (t *Table) reset() { t.rows = make(map[string]interface{}) }

// checkpoint snapshots the row store. apply mutates t.rows in place
// (via map assignment and delete), so the snapshot must be a clone, not
// a second reference to the same map — otherwise the "saved" copy would
// be mutated right along with the live one and a rollback would restore
// nothing.
func (t *Table) checkpoint() func() {
	saved := make(map[string]interface{}, len(t.rows))
	for k, v := range t.rows {
		saved[k] = v
	}
	return func() { t.rows = saved }
}

// apply turns this step's wire-format ops into the table's Δ Z-set,
// updating the primary-key row store as it goes. insert and update are
// handled identically: if a row with the same primary key is already
// present, it is retracted first, then the new row is inserted — this is
// exactly the update-vs-insert discipline spec.md §6 requires.
func (t *Table) apply(ops []DeltaOp) *zset.Set {
	out := zset.New(t.structuralKey)
	for _, op := range ops {
		switch op.Op {
		case "insert", "update":
			pk := fmt.Sprint(t.primaryKey(op.Row))
			if old, ok := t.rows[pk]; ok {
				out.Insert(old, -1)
			}
			t.rows[pk] = op.Row
			out.Insert(op.Row, 1)
		case "delete":
			pk := fmt.Sprint(op.Key)
			if old, ok := t.rows[pk]; ok {
				out.Insert(old, -1)
				delete(t.rows, pk)
			}
		default:
			panic(fmt.Sprintf("unknown delta op %q", op.Op))
		}
	}
	return out
}
