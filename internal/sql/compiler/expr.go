package compiler

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"sentra/internal/sql/ast"
)

// row is the runtime representation of every table/view tuple flowing
// through the circuit: column name (optionally table-qualified as
// "alias.column") to dynamically-typed value.
type row = map[string]interface{}

// rowKey is the Z-set identity function shared by every table and view:
// fmt's map formatting sorts keys deterministically, so this is a stable
// structural fingerprint without hand-rolling one per schema.
func rowKey(v interface{}) string { return fmt.Sprintf("%v", v) }

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func toFloatOK(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toFloatOrZero(v interface{}) float64 {
	f, _ := toFloatOK(v)
	return f
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloatOK(a); aok {
		if bf, bok := toFloatOK(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareValues(a, b interface{}, op string) bool {
	if af, aok := toFloatOK(a); aok {
		if bf, bok := toFloatOK(b); bok {
			switch op {
			case "=":
				return af == bf
			case "!=":
				return af != bf
			case "<":
				return af < bf
			case ">":
				return af > bf
			case "<=":
				return af <= bf
			case ">=":
				return af >= bf
			}
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch op {
	case "=":
		return as == bs
	case "!=":
		return as != bs
	case "<":
		return as < bs
	case ">":
		return as > bs
	case "<=":
		return as <= bs
	case ">=":
		return as >= bs
	}
	return false
}

func castValue(v interface{}, typ string) interface{} {
	switch strings.ToUpper(typ) {
	case "INT", "INTEGER":
		f, ok := toFloatOK(v)
		if !ok {
			return nil
		}
		return math.Trunc(f)
	case "FLOAT", "DOUBLE", "REAL":
		f, _ := toFloatOK(v)
		return f
	case "STRING", "TEXT", "VARCHAR":
		return fmt.Sprintf("%v", v)
	case "BOOL", "BOOLEAN":
		return truthy(v)
	default:
		return v
	}
}

// substring implements SQL's 1-indexed SUBSTRING(str, start[, length]).
func substring(s string, start, length int) string {
	runes := []rune(s)
	if start < 1 {
		start = 1
	}
	from := start - 1
	if from >= len(runes) {
		return ""
	}
	to := len(runes)
	if length >= 0 && from+length < to {
		to = from + length
	}
	return string(runes[from:to])
}

// likeToRegexp compiles a SQL LIKE pattern ('%' = any sequence, '_' =
// one character) into a case-insensitive, fully-anchored regexp.
func likeToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return regexp.MustCompile("^$")
	}
	return re
}

// evalExpr evaluates a scalar SQL expression against one row. It never
// returns an error: an ill-typed operand (e.g. comparing a string to a
// missing column) yields nil or false per the predicate semantics of
// spec.md §4.6 ("comparisons are strict; NULL propagates to false").
// An aggregate or unknown function call evaluates to nil; a scalar
// function called with too few arguments (e.g. UPPER() or
// SUBSTRING(s)) panics, which the circuit surfaces as a StepError.
func evalExpr(e ast.Expr, r row) interface{} {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value
	case *ast.ColumnRef:
		if v.Table != "" {
			if val, ok := r[v.Table+"."+v.Name]; ok {
				return val
			}
		}
		return r[v.Name]
	case *ast.Star:
		return r
	case *ast.Unary:
		switch v.Operator {
		case "NOT":
			return !truthy(evalExpr(v.Operand, r))
		case "-":
			return -toFloatOrZero(evalExpr(v.Operand, r))
		}
		return nil
	case *ast.Binary:
		return evalBinary(v, r)
	case *ast.Between:
		x, xok := toFloatOK(evalExpr(v.Expr, r))
		lo, lok := toFloatOK(evalExpr(v.Low, r))
		hi, hok := toFloatOK(evalExpr(v.High, r))
		if !xok || !lok || !hok {
			return false
		}
		res := x >= lo && x <= hi
		if v.Negate {
			res = !res
		}
		return res
	case *ast.InList:
		x := evalExpr(v.Expr, r)
		if x == nil {
			return false
		}
		found := false
		for _, item := range v.List {
			if valuesEqual(x, evalExpr(item, r)) {
				found = true
				break
			}
		}
		if v.Negate {
			found = !found
		}
		return found
	case *ast.IsNull:
		isNull := evalExpr(v.Expr, r) == nil
		if v.Negate {
			return !isNull
		}
		return isNull
	case *ast.Like:
		s, sok := evalExpr(v.Expr, r).(string)
		pat, pok := evalExpr(v.Pattern, r).(string)
		if !sok || !pok {
			return false
		}
		matched := likeToRegexp(pat).MatchString(s)
		if v.Negate {
			matched = !matched
		}
		return matched
	case *ast.Case:
		for _, w := range v.Whens {
			if truthy(evalExpr(w.Cond, r)) {
				return evalExpr(w.Result, r)
			}
		}
		if v.Else != nil {
			return evalExpr(v.Else, r)
		}
		return nil
	case *ast.Cast:
		return castValue(evalExpr(v.Expr, r), v.Type)
	case *ast.FuncCall:
		return evalScalarFunc(v, r)
	default:
		return nil
	}
}

func evalBinary(v *ast.Binary, r row) interface{} {
	switch v.Operator {
	case "AND":
		return truthy(evalExpr(v.Left, r)) && truthy(evalExpr(v.Right, r))
	case "OR":
		return truthy(evalExpr(v.Left, r)) || truthy(evalExpr(v.Right, r))
	}
	l := evalExpr(v.Left, r)
	rv := evalExpr(v.Right, r)
	switch v.Operator {
	case "+", "-", "*", "/", "%":
		lf, lok := toFloatOK(l)
		rf, rok := toFloatOK(rv)
		if !lok || !rok {
			return nil
		}
		switch v.Operator {
		case "+":
			return lf + rf
		case "-":
			return lf - rf
		case "*":
			return lf * rf
		case "/":
			if rf == 0 {
				return nil
			}
			return lf / rf
		case "%":
			if rf == 0 {
				return nil
			}
			return math.Mod(lf, rf)
		}
	case "=", "!=", "<", ">", "<=", ">=":
		if l == nil || rv == nil {
			return false
		}
		return compareValues(l, rv, v.Operator)
	}
	return nil
}

func evalScalarFunc(fc *ast.FuncCall, r row) interface{} {
	switch fc.Name {
	case "UPPER":
		s, _ := evalExpr(fc.Args[0], r).(string)
		return strings.ToUpper(s)
	case "LOWER":
		s, _ := evalExpr(fc.Args[0], r).(string)
		return strings.ToLower(s)
	case "SUBSTRING":
		s, _ := evalExpr(fc.Args[0], r).(string)
		start := int(toFloatOrZero(evalExpr(fc.Args[1], r)))
		length := -1
		if len(fc.Args) > 2 {
			length = int(toFloatOrZero(evalExpr(fc.Args[2], r)))
		}
		return substring(s, start, length)
	case "COALESCE":
		for _, a := range fc.Args {
			if v := evalExpr(a, r); v != nil {
				return v
			}
		}
		return nil
	default:
		return nil
	}
}

// isAggregateFuncName reports whether name (already upper-cased by the
// parser) is one of the aggregate functions of spec.md §4.6, as opposed
// to a scalar function or an unknown call.
func isAggregateFuncName(name string) bool {
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	}
	return false
}

// exprHasAggregate reports whether e contains an aggregate function
// call anywhere in its tree, used to tell a plain SELECT apart from one
// that needs the GROUP BY machinery.
func exprHasAggregate(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.FuncCall:
		if isAggregateFuncName(v.Name) {
			return true
		}
		for _, a := range v.Args {
			if exprHasAggregate(a) {
				return true
			}
		}
	case *ast.Binary:
		return exprHasAggregate(v.Left) || exprHasAggregate(v.Right)
	case *ast.Unary:
		return exprHasAggregate(v.Operand)
	case *ast.Between:
		return exprHasAggregate(v.Expr) || exprHasAggregate(v.Low) || exprHasAggregate(v.High)
	case *ast.InList:
		if exprHasAggregate(v.Expr) {
			return true
		}
		for _, item := range v.List {
			if exprHasAggregate(item) {
				return true
			}
		}
	case *ast.IsNull:
		return exprHasAggregate(v.Expr)
	case *ast.Like:
		return exprHasAggregate(v.Expr) || exprHasAggregate(v.Pattern)
	case *ast.Case:
		for _, w := range v.Whens {
			if exprHasAggregate(w.Cond) || exprHasAggregate(w.Result) {
				return true
			}
		}
		if v.Else != nil {
			return exprHasAggregate(v.Else)
		}
	case *ast.Cast:
		return exprHasAggregate(v.Expr)
	}
	return false
}

// deriveColumnName picks the output column name for a select item: its
// explicit alias, or a name derived from the expression shape.
func deriveColumnName(item ast.SelectItem, index int) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch v := item.Expr.(type) {
	case *ast.ColumnRef:
		return v.Name
	case *ast.FuncCall:
		return strings.ToLower(v.Name)
	default:
		return fmt.Sprintf("col%d", index)
	}
}

// columnRefName returns the unqualified column name if e is a bare
// column reference, for matching SELECT list items against GROUP BY
// expressions.
func columnRefName(e ast.Expr) (string, bool) {
	if c, ok := e.(*ast.ColumnRef); ok {
		return c.Name, true
	}
	return "", false
}
