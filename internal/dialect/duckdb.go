package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(DuckDB{})
}

// DuckDB targets the DuckDB embedded analytical engine via its JSON extension.
// JSON documents are stored in a JSON column; arrays are flattened by casting
// to JSON[] and UNNESTing in the FROM clause.
type DuckDB struct{}

func (DuckDB) Name() string       { return "duckdb" }
func (DuckDB) DriverName() string { return "duckdb" }

func (DuckDB) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (DuckDB) QuoteString(value string) string {
	return "'" + escapeSingleQuotes(value) + "'"
}

func (d DuckDB) ExtractField(base, field string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", base, field)
}

func (d DuckDB) Path(base string, steps []string) string {
	if len(steps) == 0 {
		return base
	}
	return fmt.Sprintf("json_extract(%s, %s)", base, d.QuoteString(jsonPathOf(steps)))
}

func (d DuckDB) PathText(base string, steps []string) string {
	if len(steps) == 0 {
		return d.CastText(base)
	}
	return fmt.Sprintf("json_extract_string(%s, %s)", base, d.QuoteString(jsonPathOf(steps)))
}

func (DuckDB) TypeProbe(expr string) string {
	return fmt.Sprintf("json_type(%s)", expr)
}

func (DuckDB) TypeTag(kind JSONKind) string {
	switch kind {
	case KindNull:
		return "'NULL'"
	case KindString:
		return "'VARCHAR'"
	case KindNumber:
		return "'DOUBLE'"
	case KindBool:
		return "'BOOLEAN'"
	case KindArray:
		return "'ARRAY'"
	default:
		return "'OBJECT'"
	}
}

func (d DuckDB) KindCheck(expr string, kind JSONKind) string {
	if kind == KindNumber {
		// DuckDB's json_type distinguishes integer and floating point numbers.
		return fmt.Sprintf("%s IN ('DOUBLE', 'BIGINT', 'UBIGINT')", d.TypeProbe(expr))
	}
	return fmt.Sprintf("%s = %s", d.TypeProbe(expr), d.TypeTag(kind))
}

func (DuckDB) ArrayLength(expr string) string {
	return fmt.Sprintf("json_array_length(%s)", expr)
}

func (DuckDB) ArrayElement(expr string, index int) string {
	return fmt.Sprintf("json_extract(%s, '$[%d]')", expr, index)
}

func (DuckDB) ArrayElementAt(expr, indexExpr string) string {
	return fmt.Sprintf("json_extract(%s, '$[' || CAST(%s AS VARCHAR) || ']')", expr, indexExpr)
}

func (d DuckDB) ArrayNormalize(expr string) string {
	return fmt.Sprintf(
		"CASE WHEN %s IS NULL THEN CAST([] AS JSON[]) WHEN %s = %s THEN CAST(%s AS JSON[]) ELSE [CAST(%s AS JSON)] END",
		expr, d.TypeProbe(expr), d.TypeTag(KindArray), expr, expr)
}

// LateralUnnest zips UNNEST with generate_subscripts so every element row
// carries its 1-based array subscript; DuckDB has no WITH ORDINALITY.
func (DuckDB) LateralUnnest(input, alias, column string) string {
	return fmt.Sprintf("CROSS JOIN LATERAL (SELECT UNNEST(%s) AS %s, generate_subscripts(%s, 1) AS idx) AS %s",
		input, column, input, alias)
}

func (DuckDB) UnnestOrdinal(alias string) string {
	return fmt.Sprintf("(%s.idx - 1)", alias)
}

func (DuckDB) RowNumber(partition, order string) string {
	return fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) - 1", partition, order)
}

func (DuckDB) Not(expr string) string {
	return fmt.Sprintf("NOT (%s)", expr)
}

func (DuckDB) Coalesce(exprs ...string) string {
	return "COALESCE(" + strings.Join(exprs, ", ") + ")"
}

func (DuckDB) CastText(expr string) string {
	return fmt.Sprintf("json_extract_string(%s, '$')", expr)
}

func (DuckDB) TryCastNumeric(expr string) string {
	return fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", expr)
}

func (DuckDB) Substring(expr, start, length string) string {
	if length == "" {
		return fmt.Sprintf("substring(%s, %s)", expr, start)
	}
	return fmt.Sprintf("substring(%s, %s, %s)", expr, start, length)
}

func (DuckDB) StringLength(expr string) string {
	return fmt.Sprintf("length(%s)", expr)
}

func (DuckDB) StringContains(expr, substr string) string {
	return fmt.Sprintf("contains(%s, %s)", expr, substr)
}

func (DuckDB) StringConcat(lhs, rhs string) string {
	return fmt.Sprintf("(%s || %s)", lhs, rhs)
}

func (d DuckDB) RegexMatch(expr, pattern string) string {
	return fmt.Sprintf("regexp_matches(%s, %s)", expr, d.QuoteString(pattern))
}

func (DuckDB) MathFunction(name string) string {
	switch name {
	case "ceiling":
		return "ceil"
	case "truncate":
		return "trunc"
	default:
		return name
	}
}

func (DuckDB) BooleanLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// JSONBoolLiteral matches json_extract_string output for booleans.
func (DuckDB) JSONBoolLiteral(v bool) string {
	if v {
		return "'true'"
	}
	return "'false'"
}

func (DuckDB) Placeholder(int) string { return "?" }

// jsonPathOf renders steps as a $.a.b.c JSON path.
func jsonPathOf(steps []string) string {
	return "$." + strings.Join(steps, ".")
}
