package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(SQLite{})
}

// SQLite targets SQLite's JSON1 extension. Arrays are flattened with the
// json_each table-valued function, which is an implicit lateral join.
//
// The REGEXP operator used by RegexMatch is not built into SQLite; the
// connection layer registers a Go implementation on each connection.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3_fhirpath" }

func (SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) QuoteString(value string) string {
	return "'" + escapeSingleQuotes(value) + "'"
}

func (SQLite) ExtractField(base, field string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", base, field)
}

func (d SQLite) Path(base string, steps []string) string {
	if len(steps) == 0 {
		return base
	}
	return fmt.Sprintf("json_extract(%s, %s)", base, d.QuoteString(jsonPathOf(steps)))
}

// PathText is the same as Path: SQLite's json_extract already yields SQL text
// for JSON strings, without quoting.
func (d SQLite) PathText(base string, steps []string) string {
	return d.Path(base, steps)
}

func (SQLite) TypeProbe(expr string) string {
	return fmt.Sprintf("json_type(%s)", expr)
}

func (SQLite) TypeTag(kind JSONKind) string {
	switch kind {
	case KindNull:
		return "'null'"
	case KindString:
		return "'text'"
	case KindNumber:
		return "'real'"
	case KindBool:
		return "'true'"
	case KindArray:
		return "'array'"
	default:
		return "'object'"
	}
}

func (d SQLite) KindCheck(expr string, kind JSONKind) string {
	switch kind {
	case KindBool:
		// json_type reports booleans as 'true' or 'false'.
		return fmt.Sprintf("%s IN ('true', 'false')", d.TypeProbe(expr))
	case KindNumber:
		return fmt.Sprintf("%s IN ('integer', 'real')", d.TypeProbe(expr))
	default:
		return fmt.Sprintf("%s = %s", d.TypeProbe(expr), d.TypeTag(kind))
	}
}

func (SQLite) ArrayLength(expr string) string {
	return fmt.Sprintf("json_array_length(%s)", expr)
}

func (SQLite) ArrayElement(expr string, index int) string {
	return fmt.Sprintf("json_extract(%s, '$[%d]')", expr, index)
}

func (SQLite) ArrayElementAt(expr, indexExpr string) string {
	return fmt.Sprintf("json_extract(%s, '$[' || CAST(%s AS TEXT) || ']')", expr, indexExpr)
}

// ArrayNormalize only needs to guard NULL: json_each iterates arrays
// element-wise and yields a single row for scalar values.
func (SQLite) ArrayNormalize(expr string) string {
	return fmt.Sprintf("COALESCE(%s, json_array())", expr)
}

func (SQLite) LateralUnnest(input, alias, column string) string {
	// json_each exposes its element as the fixed column name "value"; the
	// builder always requests that name.
	return fmt.Sprintf(", json_each(%s) AS %s", input, alias)
}

// UnnestOrdinal uses json_each's key column, which is the zero-based array
// index for array inputs.
func (SQLite) UnnestOrdinal(alias string) string {
	return alias + ".key"
}

func (SQLite) RowNumber(partition, order string) string {
	return fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) - 1", partition, order)
}

func (SQLite) Not(expr string) string {
	return fmt.Sprintf("NOT (%s)", expr)
}

func (SQLite) Coalesce(exprs ...string) string {
	return "COALESCE(" + strings.Join(exprs, ", ") + ")"
}

func (SQLite) CastText(expr string) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", expr)
}

// TryCastNumeric guards with the same full-string numeric pattern the
// Postgres dialect uses. GLOB cannot express "one or more digits", so it
// would admit shapes like 2012-05-10; REGEXP is available because the
// connection layer registers it on every connection.
func (SQLite) TryCastNumeric(expr string) string {
	return fmt.Sprintf(
		`CASE WHEN CAST(%s AS TEXT) REGEXP '^-?[0-9]+(\.[0-9]+)?$' THEN CAST(%s AS REAL) ELSE NULL END`,
		expr, expr)
}

func (SQLite) Substring(expr, start, length string) string {
	if length == "" {
		return fmt.Sprintf("substr(%s, %s)", expr, start)
	}
	return fmt.Sprintf("substr(%s, %s, %s)", expr, start, length)
}

func (SQLite) StringLength(expr string) string {
	return fmt.Sprintf("length(%s)", expr)
}

// StringContains uses instr rather than LIKE: SQLite's LIKE is
// case-insensitive for ASCII by default.
func (SQLite) StringContains(expr, substr string) string {
	return fmt.Sprintf("(instr(%s, %s) > 0)", expr, substr)
}

func (SQLite) StringConcat(lhs, rhs string) string {
	return fmt.Sprintf("(%s || %s)", lhs, rhs)
}

func (d SQLite) RegexMatch(expr, pattern string) string {
	return fmt.Sprintf("(%s REGEXP %s)", expr, d.QuoteString(pattern))
}

func (SQLite) MathFunction(name string) string {
	switch name {
	case "ceiling":
		return "ceil"
	case "truncate":
		return "trunc"
	default:
		return name
	}
}

func (SQLite) BooleanLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// JSONBoolLiteral matches json_extract output for booleans, which SQLite
// reports as integer 1 or 0.
func (SQLite) JSONBoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (SQLite) Placeholder(int) string { return "?" }
