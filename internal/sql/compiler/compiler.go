// Package compiler resolves a parsed SQL program into a running
// internal/circuit graph, per spec.md §4.6's four-step compilation
// recipe. It is grounded on the *shape* of
// internal/compregister/compiler.go's Compiler struct — an incremental
// symbol table built up statement by statement, one compile pass,
// accumulated errors — retargeted from register-bytecode emission onto
// circuit-node construction.
package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"sentra/internal/aggregate"
	"sentra/internal/circuit"
	"sentra/internal/ivmerr"
	"sentra/internal/join"
	"sentra/internal/sql/ast"
	"sentra/internal/stream"
	"sentra/internal/zset"
)

// tableInfo records a CREATE TABLE's schema and join-variant hint.
type tableInfo struct {
	name       string
	colNames   []string
	appendOnly bool
}

// ViewInfo is what the compiler remembers about a compiled view: the
// circuit stream id a caller should Subscribe to, its output column
// order, and any ORDER BY/LIMIT to apply at subscription time (spec.md
// §4.6 step 3, §9 — never as streaming operators).
type ViewInfo struct {
	StreamID string
	Columns  []string
	OrderBy  func(a, b interface{}) bool
	Limit    int
	HasLimit bool
}

// Compiler builds one circuit from a sequence of parsed SQL statements.
type Compiler struct {
	circuit *circuit.Circuit
	tables  map[string]*tableInfo
	views   map[string]*ViewInfo
	errors  []error
}

// New builds a Compiler that registers tables/views onto c.
func New(c *circuit.Circuit) *Compiler {
	return &Compiler{
		circuit: c,
		tables:  make(map[string]*tableInfo),
		views:   make(map[string]*ViewInfo),
	}
}

// Views returns every view compiled so far, keyed by name.
func (c *Compiler) Views() map[string]*ViewInfo { return c.views }

// Errors returns every error accumulated during Compile.
func (c *Compiler) Errors() []error { return c.errors }

func (c *Compiler) fail(format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Errorf(format, args...))
}

// Compile processes every statement in order: CREATE TABLE registers a
// circuit input, CREATE VIEW and bare SELECT queries are compiled into
// an operator chain and recorded as a view (bare queries get an
// anonymous uuid-derived name, matching the ad hoc query path of the
// engine embedding API in spec.md §6). It returns a *ivmerr.Error of
// kind ConstructionError summarizing every accumulated failure, or nil.
func (c *Compiler) Compile(stmts []ast.Stmt) error {
	for _, st := range stmts {
		switch s := st.(type) {
		case *ast.CreateTableStmt:
			c.compileCreateTable(s)
		case *ast.CreateViewStmt:
			c.compileCreateView(s.Name, s.Query)
		case *ast.SelectStmt:
			c.compileCreateView("query_"+uuid.NewString(), s)
		default:
			c.fail("unsupported statement type %T", st)
		}
	}
	if len(c.errors) > 0 {
		return ivmerr.New(ivmerr.ConstructionError, "sql compile failed: %v", c.errors)
	}
	return nil
}

func (c *Compiler) compileCreateTable(s *ast.CreateTableStmt) {
	if _, exists := c.tables[s.Name]; exists {
		c.fail("table %q already defined", s.Name)
		return
	}
	if len(s.Columns) == 0 {
		c.fail("table %q declares no columns", s.Name)
		return
	}
	colNames := make([]string, len(s.Columns))
	for i, cd := range s.Columns {
		colNames[i] = cd.Name
	}
	pkCol := colNames[0]
	pk := func(r interface{}) interface{} { return r.(row)[pkCol] }
	if _, err := c.circuit.DefineInput(s.Name, rowKey, pk); err != nil {
		c.fail("table %q: %v", s.Name, err)
		return
	}
	c.tables[s.Name] = &tableInfo{name: s.Name, colNames: colNames, appendOnly: s.AppendOnly}
}

func (c *Compiler) compileCreateView(name string, sel *ast.SelectStmt) {
	if _, exists := c.views[name]; exists {
		c.fail("view %q already defined", name)
		return
	}
	if _, exists := c.tables[name]; exists {
		c.fail("name %q is already a table", name)
		return
	}
	vi, err := c.compileSelect(name, sel)
	if err != nil {
		c.fail("view %q: %v", name, err)
		return
	}
	c.views[name] = vi
}

// streamFor resolves a FROM-clause name to its circuit stream id and
// declared column names, checking tables first and then previously
// compiled views.
func (c *Compiler) streamFor(name string) (streamID string, cols []string, appendOnly bool, ok bool) {
	if t, exists := c.tables[name]; exists {
		return t.name, t.colNames, t.appendOnly, true
	}
	if v, exists := c.views[name]; exists {
		return v.StreamID, v.Columns, false, true
	}
	return "", nil, false, false
}

func aliasOrName(t ast.TableRef) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// compileSelect compiles one SELECT query (its FROM/JOIN, WHERE, GROUP
// BY/HAVING or plain projection, and any UNION arms) into a chain of
// circuit operators, returning a ViewInfo whose StreamID is the id of
// the final node.
func (c *Compiler) compileSelect(viewName string, sel *ast.SelectStmt) (*ViewInfo, error) {
	if sel.From == nil {
		return nil, fmt.Errorf("SELECT without FROM cannot be compiled into a live view")
	}

	curID, whereConsumed, err := c.resolveFrom(viewName, sel)
	if err != nil {
		return nil, err
	}

	if sel.Where != nil && !whereConsumed {
		pred := func(v interface{}) bool { return truthy(evalExpr(sel.Where, v.(row))) }
		id := viewName + "$where"
		if err := c.circuit.AddOperator(id, []string{curID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
			return stream.Filter(ins[0], pred)
		})); err != nil {
			return nil, err
		}
		curID = id
	}

	var outCols []string
	hasAgg := false
	for _, item := range sel.Columns {
		if exprHasAggregate(item.Expr) {
			hasAgg = true
			break
		}
	}

	if hasAgg || len(sel.GroupBy) > 0 {
		curID, outCols, err = c.compileAggregate(viewName, curID, sel)
	} else {
		curID, outCols, err = c.compileProjection(viewName, curID, sel.Columns)
	}
	if err != nil {
		return nil, err
	}

	if sel.Having != nil {
		pred := func(v interface{}) bool { return truthy(evalExpr(sel.Having, v.(row))) }
		id := viewName + "$having"
		if err := c.circuit.AddOperator(id, []string{curID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
			return stream.Filter(ins[0], pred)
		})); err != nil {
			return nil, err
		}
		curID = id
	}

	for i, arm := range sel.Unions {
		armName := fmt.Sprintf("%s$union%d", viewName, i)
		armInfo, err := c.compileSelect(armName, arm.Query)
		if err != nil {
			return nil, fmt.Errorf("union arm %d: %w", i, err)
		}
		unionID := fmt.Sprintf("%s$union%d$op", viewName, i)
		if arm.All {
			if err := c.circuit.AddOperator(unionID, []string{curID, armInfo.StreamID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
				return stream.Union(ins[0], ins[1])
			})); err != nil {
				return nil, err
			}
		} else {
			ud := stream.NewUnionDistinct(rowKey)
			if err := c.circuit.AddOperator(unionID, []string{curID, armInfo.StreamID}, &opAdapter{
				compute:    func(ins []*zset.Set) *zset.Set { return ud.Step(ins[0], ins[1]) },
				reset:      ud.Reset,
				checkpoint: ud.Checkpoint,
			}); err != nil {
				return nil, err
			}
		}
		curID = unionID
	}

	vi := &ViewInfo{StreamID: curID, Columns: outCols, Limit: sel.Limit, HasLimit: sel.HasLimit}
	if len(sel.OrderBy) > 0 {
		vi.OrderBy = buildOrderLess(sel.OrderBy)
	}
	return vi, nil
}

func buildOrderLess(items []ast.OrderItem) func(a, b interface{}) bool {
	return func(a, b interface{}) bool {
		ra, rb := a.(row), b.(row)
		for _, it := range items {
			av, bv := evalExpr(it.Expr, ra), evalExpr(it.Expr, rb)
			if valuesEqual(av, bv) {
				continue
			}
			less := compareValues(av, bv, "<")
			if it.Descending {
				return !less && !valuesEqual(av, bv)
			}
			return less
		}
		return false
	}
}

// opAdapter lets a join/union operator with a two-argument Step method
// satisfy circuit.Op/Resetter/Checkpointer.
type opAdapter struct {
	compute    func(ins []*zset.Set) *zset.Set
	reset      func()
	checkpoint func() func()
}

func (o *opAdapter) Compute(ins []*zset.Set) *zset.Set { return o.compute(ins) }
func (o *opAdapter) Reset()                            { o.reset() }
func (o *opAdapter) Checkpoint() func()                { return o.checkpoint() }

func columnExtractor(name string) join.KeyOf {
	return func(r interface{}) interface{} { return r.(row)[name] }
}

// identityKeyOf treats the whole row as its own primary key. Every join
// side uses it, base tables included: a view has no declared primary
// key, so each distinct row is its own identity (a simplification
// documented in DESIGN.md), and a table update already arrives as a
// retract of the old row plus an insert of the new one.
func identityKeyOf(r interface{}) interface{} { return r }

func constKeyOf(r interface{}) interface{} { return "" }

// mergeRows builds the Combine used by every join variant: the output
// row carries both sides' columns unqualified, plus every column
// qualified by its side's alias, so a downstream expression can say
// either "amount" or "orders.amount". An unqualified name that exists
// on both sides resolves to the right-hand side (documented simplifying
// decision — qualify ambiguous columns explicitly in SQL text).
func mergeRows(leftAlias, rightAlias string) join.Combine {
	return func(l, r interface{}) interface{} {
		out := make(row)
		if lm, ok := l.(row); ok {
			for k, v := range lm {
				out[k] = v
				out[leftAlias+"."+k] = v
			}
		}
		if rm, ok := r.(row); ok {
			for k, v := range rm {
				out[k] = v
				out[rightAlias+"."+k] = v
			}
		}
		return out
	}
}

// equiJoinKeys resolves an `ON left.col = right.col` clause into key
// extractors for each side, identified by alias.
func equiJoinKeys(on ast.Expr, leftAlias, rightAlias string) (join.KeyOf, join.KeyOf, error) {
	b, ok := on.(*ast.Binary)
	if !ok || b.Operator != "=" {
		return nil, nil, fmt.Errorf("ON clause must be an equality of two qualified columns")
	}
	lc, lok := b.Left.(*ast.ColumnRef)
	rc, rok := b.Right.(*ast.ColumnRef)
	if !lok || !rok {
		return nil, nil, fmt.Errorf("ON clause must compare two columns")
	}
	if lc.Table == rightAlias && rc.Table == leftAlias {
		lc, rc = rc, lc
	}
	if lc.Table != leftAlias || rc.Table != rightAlias {
		return nil, nil, fmt.Errorf("ON clause columns must be qualified by the join's table aliases")
	}
	return columnExtractor(lc.Name), columnExtractor(rc.Name), nil
}

// resolveFrom resolves the FROM/JOIN clause to a circuit stream id. The
// second return reports whether it also consumed sel.Where: a LEFT/RIGHT
// JOIN whose WHERE clause is exactly `<unpreserved side>.col IS NULL`
// compiles straight to the anti-join shape (isAntiJoinShape below)
// instead of the generic inner-join-then-union-then-filter plan, so the
// caller must not apply WHERE a second time as a linear filter.
func (c *Compiler) resolveFrom(viewName string, sel *ast.SelectStmt) (string, bool, error) {
	fromRef := *sel.From
	leftID, _, leftAppend, ok := c.streamFor(fromRef.Name)
	if !ok {
		return "", false, fmt.Errorf("unknown table or view %q", fromRef.Name)
	}
	if len(sel.Joins) == 0 {
		return leftID, false, nil
	}
	if len(sel.Joins) > 1 {
		return "", false, fmt.Errorf("only a single join is supported per query")
	}
	jc := sel.Joins[0]
	rightID, _, rightAppend, ok := c.streamFor(jc.Table.Name)
	if !ok {
		return "", false, fmt.Errorf("unknown table or view %q", jc.Table.Name)
	}
	leftAlias := aliasOrName(fromRef)
	rightAlias := aliasOrName(jc.Table)
	combine := mergeRows(leftAlias, rightAlias)
	opID := viewName + "$join"

	switch jc.Kind {
	case "CROSS":
		j := join.NewIndexed(identityKeyOf, constKeyOf, identityKeyOf, constKeyOf, combine)
		if err := c.circuit.AddOperator(opID, []string{leftID, rightID}, adaptIndexed(j)); err != nil {
			return "", false, err
		}
		return opID, false, nil
	case "INNER":
		leftKey, rightKey, err := equiJoinKeys(jc.On, leftAlias, rightAlias)
		if err != nil {
			return "", false, err
		}
		if leftAppend || rightAppend {
			aj := join.NewAppendOnly(leftKey, rightKey, combine)
			if err := c.circuit.AddOperator(opID, []string{leftID, rightID}, adaptAppendOnly(aj)); err != nil {
				return "", false, err
			}
			return opID, false, nil
		}
		j := join.NewIndexed(identityKeyOf, leftKey, identityKeyOf, rightKey, combine)
		if err := c.circuit.AddOperator(opID, []string{leftID, rightID}, adaptIndexed(j)); err != nil {
			return "", false, err
		}
		return opID, false, nil
	case "LEFT":
		if isAntiJoinShape(sel.Where, rightAlias) {
			id, err := c.resolveAntiJoinOnly(viewName, leftID, rightID, leftAlias, rightAlias, jc.On, false)
			return id, true, err
		}
		id, err := c.resolveOuterJoin(viewName, leftID, rightID, leftAlias, rightAlias, jc.On, combine, false)
		return id, false, err
	case "RIGHT":
		if isAntiJoinShape(sel.Where, leftAlias) {
			id, err := c.resolveAntiJoinOnly(viewName, leftID, rightID, leftAlias, rightAlias, jc.On, true)
			return id, true, err
		}
		id, err := c.resolveOuterJoin(viewName, leftID, rightID, leftAlias, rightAlias, jc.On, combine, true)
		return id, false, err
	default:
		return "", false, fmt.Errorf("unsupported join kind %q", jc.Kind)
	}
}

// isAntiJoinShape reports whether where is exactly `<otherAlias>.col IS
// NULL` — the textbook "rows in the preserved side with no match"
// predicate that follows a LEFT/RIGHT JOIN. otherAlias is the side NOT
// preserved by the outer join (the right side of a LEFT JOIN, the left
// side of a RIGHT JOIN): only a match fills that side's columns, so
// a bare `IS NULL` on one of them can only be true for unmatched rows.
func isAntiJoinShape(where ast.Expr, otherAlias string) bool {
	isNull, ok := where.(*ast.IsNull)
	if !ok || isNull.Negate {
		return false
	}
	col, ok := isNull.Expr.(*ast.ColumnRef)
	return ok && col.Table == otherAlias
}

// resolveAntiJoinOnly builds just the preserved-side-unmatched branch of
// an outer join (AntiSemi followed by a fill-with-empty-row Map) without
// the inner-join/union half resolveOuterJoin adds for the general case:
// a WHERE <other>.col IS NULL query only wants the unmatched rows, which
// is exactly the anti-join's output, so there is nothing for the
// generic inner-matched branch to contribute.
func (c *Compiler) resolveAntiJoinOnly(viewName, leftID, rightID, leftAlias, rightAlias string, on ast.Expr, swapped bool) (string, error) {
	leftKey, rightKey, err := equiJoinKeys(on, leftAlias, rightAlias)
	if err != nil {
		return "", err
	}
	preservedID, otherID := leftID, rightID
	preservedKey, otherKey := leftKey, rightKey
	preservedAlias, otherAlias := leftAlias, rightAlias
	if swapped {
		preservedID, otherID = rightID, leftID
		preservedKey, otherKey = rightKey, leftKey
		preservedAlias, otherAlias = rightAlias, leftAlias
	}
	return c.buildAntiFill(viewName, preservedID, otherID, preservedAlias, otherAlias, preservedKey, otherKey)
}

// resolveOuterJoin builds a LEFT (or, with swapped=true, RIGHT) join as
// the union of the matched inner-join rows and the unmatched preserved
// side's rows merged against an empty counterpart row — spec.md's join
// package only ships Indexed/AppendOnly/AntiSemi, so the outer
// preservation is composed from them rather than needing a fourth
// operator type.
func (c *Compiler) resolveOuterJoin(viewName, leftID, rightID, leftAlias, rightAlias string, on ast.Expr, combine join.Combine, swapped bool) (string, error) {
	leftKey, rightKey, err := equiJoinKeys(on, leftAlias, rightAlias)
	if err != nil {
		return "", err
	}

	innerID := viewName + "$outer_inner"
	inner := join.NewIndexed(identityKeyOf, leftKey, identityKeyOf, rightKey, combine)
	if err := c.circuit.AddOperator(innerID, []string{leftID, rightID}, adaptIndexed(inner)); err != nil {
		return "", err
	}

	// preservedID/otherID name the side whose unmatched rows survive
	// (left for LEFT JOIN, right for RIGHT JOIN) and the side it's
	// matched against.
	preservedID, otherID := leftID, rightID
	preservedKey, otherKey := leftKey, rightKey
	preservedAlias, otherAlias := leftAlias, rightAlias
	if swapped {
		preservedID, otherID = rightID, leftID
		preservedKey, otherKey = rightKey, leftKey
		preservedAlias, otherAlias = rightAlias, leftAlias
	}

	fillID, err := c.buildAntiFill(viewName, preservedID, otherID, preservedAlias, otherAlias, preservedKey, otherKey)
	if err != nil {
		return "", err
	}

	unionID := viewName + "$outer_union"
	if err := c.circuit.AddOperator(unionID, []string{innerID, fillID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
		return stream.Union(ins[0], ins[1])
	})); err != nil {
		return "", err
	}
	return unionID, nil
}

// buildAntiFill builds the "preserved side's unmatched rows, merged
// against an empty counterpart row" branch shared by resolveOuterJoin
// and resolveAntiJoinOnly: an AntiSemi of preserved-vs-other followed by
// a Map that fills in the other side's alias-qualified columns as
// absent (SQL NULL).
func (c *Compiler) buildAntiFill(viewName, preservedID, otherID, preservedAlias, otherAlias string, preservedKey, otherKey join.KeyOf) (string, error) {
	antiID := viewName + "$outer_anti"
	anti := join.NewAntiSemi(identityKeyOf, preservedKey, otherKey, join.Anti)
	if err := c.circuit.AddOperator(antiID, []string{preservedID, otherID}, adaptAntiSemi(anti)); err != nil {
		return "", err
	}

	fillID := viewName + "$outer_fill"
	fillCombine := mergeRows(preservedAlias, otherAlias)
	fill := func(v interface{}) interface{} { return fillCombine(v, row{}) }
	if err := c.circuit.AddOperator(fillID, []string{antiID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
		return stream.Map(ins[0], fill, rowKey)
	})); err != nil {
		return "", err
	}
	return fillID, nil
}

func adaptIndexed(j *join.Indexed) circuit.Op {
	return &opAdapter{
		compute:    func(ins []*zset.Set) *zset.Set { return j.Step(ins[0], ins[1], rowKey) },
		reset:      j.Reset,
		checkpoint: j.Checkpoint,
	}
}

func adaptAppendOnly(j *join.AppendOnly) circuit.Op {
	return &opAdapter{
		compute:    func(ins []*zset.Set) *zset.Set { return j.Step(ins[0], ins[1], rowKey) },
		reset:      j.Reset,
		checkpoint: j.Checkpoint,
	}
}

func adaptAntiSemi(j *join.AntiSemi) circuit.Op {
	return &opAdapter{
		compute:    func(ins []*zset.Set) *zset.Set { return j.Step(ins[0], ins[1], rowKey) },
		reset:      j.Reset,
		checkpoint: j.Checkpoint,
	}
}

// compileProjection builds WHERE as a linear filter is already applied
// by the caller; this stage applies the SELECT list as a linear map,
// or a passthrough for `SELECT *`.
func (c *Compiler) compileProjection(viewName, baseID string, items []ast.SelectItem) (string, []string, error) {
	if len(items) == 1 {
		if _, ok := items[0].Expr.(*ast.Star); ok {
			return baseID, nil, nil
		}
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = deriveColumnName(item, i)
	}
	project := func(v interface{}) interface{} {
		src := v.(row)
		out := make(row, len(items))
		for i, item := range items {
			if _, ok := item.Expr.(*ast.Star); ok {
				for k, val := range src {
					out[k] = val
				}
				continue
			}
			out[names[i]] = evalExpr(item.Expr, src)
		}
		return out
	}
	id := viewName + "$project"
	if err := c.circuit.AddOperator(id, []string{baseID}, circuit.OpFunc(func(ins []*zset.Set) *zset.Set {
		return stream.Map(ins[0], project, rowKey)
	})); err != nil {
		return "", nil, err
	}
	return id, names, nil
}

// compileAggregate builds the GROUP BY node (or, when sel.GroupBy is
// empty, the same machinery keyed by a constant group so the whole
// input aggregates to one row — spec.md §4.5's "linear aggregation
// without GROUP BY" case, reusing aggregate.GroupBy instead of a
// separate code path).
func (c *Compiler) compileAggregate(viewName, baseID string, sel *ast.SelectStmt) (string, []string, error) {
	groupByExprs := sel.GroupBy

	var groupKeyFn aggregate.Extractor
	switch len(groupByExprs) {
	case 0:
		groupKeyFn = func(interface{}) interface{} { return "all" }
	case 1:
		e := groupByExprs[0]
		groupKeyFn = func(v interface{}) interface{} { return evalExpr(e, v.(row)) }
	default:
		exprs := groupByExprs
		groupKeyFn = func(v interface{}) interface{} {
			r := v.(row)
			vals := make([]interface{}, len(exprs))
			for i, e := range exprs {
				vals[i] = evalExpr(e, r)
			}
			return vals
		}
	}

	names := make([]string, len(sel.Columns))
	selAggPos := make([]int, len(sel.Columns))
	selGroupIdx := make([]int, len(sel.Columns))
	var specs []aggregate.Spec

	for i, item := range sel.Columns {
		names[i] = deriveColumnName(item, i)
		selAggPos[i], selGroupIdx[i] = -1, -1

		if fc, ok := item.Expr.(*ast.FuncCall); ok && isAggregateFuncName(fc.Name) {
			fn, err := mapAggFunc(fc.Name)
			if err != nil {
				return "", nil, err
			}
			var extract func(row interface{}) float64
			if fn != aggregate.Count {
				if len(fc.Args) == 0 {
					return "", nil, fmt.Errorf("%s requires an argument", fc.Name)
				}
				arg := fc.Args[0]
				extract = func(v interface{}) float64 { return toFloatOrZero(evalExpr(arg, v.(row))) }
			}
			specs = append(specs, aggregate.Spec{Func: fn, Extract: extract})
			selAggPos[i] = len(specs) - 1
			continue
		}

		colName, ok := columnRefName(item.Expr)
		if !ok {
			return "", nil, fmt.Errorf("select item %q must be an aggregate function or a GROUP BY column", names[i])
		}
		idx := -1
		for gi, ge := range groupByExprs {
			if gn, ok := columnRefName(ge); ok && gn == colName {
				idx = gi
				break
			}
		}
		if idx < 0 && len(groupByExprs) > 0 {
			return "", nil, fmt.Errorf("column %q must appear in GROUP BY", colName)
		}
		if len(groupByExprs) == 0 {
			return "", nil, fmt.Errorf("column %q cannot be selected without GROUP BY", colName)
		}
		selGroupIdx[i] = idx
	}

	buildRow := func(groupKeyVal interface{}, values []float64) interface{} {
		var keyVals []interface{}
		if len(groupByExprs) <= 1 {
			keyVals = []interface{}{groupKeyVal}
		} else {
			keyVals = groupKeyVal.([]interface{})
		}
		out := make(row, len(names))
		for i := range sel.Columns {
			if selAggPos[i] >= 0 {
				out[names[i]] = values[selAggPos[i]]
			} else {
				out[names[i]] = keyVals[selGroupIdx[i]]
			}
		}
		return out
	}

	ga := aggregate.New(groupKeyFn, specs, buildRow, rowKey)
	id := viewName + "$aggregate"
	if err := c.circuit.AddOperator(id, []string{baseID}, ga); err != nil {
		return "", nil, err
	}
	return id, names, nil
}

func mapAggFunc(name string) (aggregate.Func, error) {
	switch name {
	case "COUNT":
		return aggregate.Count, nil
	case "SUM":
		return aggregate.Sum, nil
	case "AVG":
		return aggregate.Avg, nil
	case "MIN":
		return aggregate.Min, nil
	case "MAX":
		return aggregate.Max, nil
	}
	return 0, fmt.Errorf("unknown aggregate function %q", name)
}
