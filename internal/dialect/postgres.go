package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(Postgres{})
}

// Postgres targets PostgreSQL (12+) using jsonb operators. Arrays are
// flattened with CROSS JOIN LATERAL jsonb_array_elements.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) QuoteString(value string) string {
	return "'" + escapeSingleQuotes(value) + "'"
}

func (Postgres) ExtractField(base, field string) string {
	return fmt.Sprintf("(%s -> '%s')", base, escapeSingleQuotes(field))
}

func (d Postgres) Path(base string, steps []string) string {
	if len(steps) == 0 {
		return base
	}
	return fmt.Sprintf("(%s #> %s)", base, d.pathArray(steps))
}

func (d Postgres) PathText(base string, steps []string) string {
	if len(steps) == 0 {
		return d.CastText(base)
	}
	return fmt.Sprintf("(%s #>> %s)", base, d.pathArray(steps))
}

func (Postgres) pathArray(steps []string) string {
	escaped := make([]string, len(steps))
	for i, s := range steps {
		escaped[i] = escapeSingleQuotes(s)
	}
	return "'{" + strings.Join(escaped, ",") + "}'"
}

func (Postgres) TypeProbe(expr string) string {
	return fmt.Sprintf("jsonb_typeof(%s)", expr)
}

func (Postgres) TypeTag(kind JSONKind) string {
	switch kind {
	case KindNull:
		return "'null'"
	case KindString:
		return "'string'"
	case KindNumber:
		return "'number'"
	case KindBool:
		return "'boolean'"
	case KindArray:
		return "'array'"
	default:
		return "'object'"
	}
}

func (d Postgres) KindCheck(expr string, kind JSONKind) string {
	return fmt.Sprintf("%s = %s", d.TypeProbe(expr), d.TypeTag(kind))
}

func (Postgres) ArrayLength(expr string) string {
	return fmt.Sprintf("jsonb_array_length(%s)", expr)
}

func (Postgres) ArrayElement(expr string, index int) string {
	return fmt.Sprintf("(%s -> %d)", expr, index)
}

func (Postgres) ArrayElementAt(expr, indexExpr string) string {
	return fmt.Sprintf("(%s -> CAST(%s AS INTEGER))", expr, indexExpr)
}

func (d Postgres) ArrayNormalize(expr string) string {
	return fmt.Sprintf(
		"CASE WHEN %s IS NULL THEN '[]'::jsonb WHEN %s = %s THEN %s ELSE jsonb_build_array(%s) END",
		expr, d.TypeProbe(expr), d.TypeTag(KindArray), expr, expr)
}

func (Postgres) LateralUnnest(input, alias, column string) string {
	return fmt.Sprintf("CROSS JOIN LATERAL jsonb_array_elements(%s) WITH ORDINALITY AS %s(%s, idx)",
		input, alias, column)
}

// UnnestOrdinal shifts WITH ORDINALITY's 1-based counter to zero-based.
func (Postgres) UnnestOrdinal(alias string) string {
	return fmt.Sprintf("(%s.idx - 1)", alias)
}

func (Postgres) RowNumber(partition, order string) string {
	return fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) - 1", partition, order)
}

func (Postgres) Not(expr string) string {
	return fmt.Sprintf("NOT (%s)", expr)
}

func (Postgres) Coalesce(exprs ...string) string {
	return "COALESCE(" + strings.Join(exprs, ", ") + ")"
}

func (Postgres) CastText(expr string) string {
	return fmt.Sprintf("(%s #>> '{}')", expr)
}

func (d Postgres) TryCastNumeric(expr string) string {
	text := d.CastText(expr)
	return fmt.Sprintf(
		`CASE WHEN %s ~ '^-?[0-9]+(\.[0-9]+)?$' THEN CAST(%s AS NUMERIC) ELSE NULL END`,
		text, text)
}

func (Postgres) Substring(expr, start, length string) string {
	if length == "" {
		return fmt.Sprintf("substring(%s from %s)", expr, start)
	}
	return fmt.Sprintf("substring(%s from %s for %s)", expr, start, length)
}

func (Postgres) StringLength(expr string) string {
	return fmt.Sprintf("length(%s)", expr)
}

func (Postgres) StringContains(expr, substr string) string {
	return fmt.Sprintf("(POSITION(%s IN %s) > 0)", substr, expr)
}

func (Postgres) StringConcat(lhs, rhs string) string {
	return fmt.Sprintf("(%s || %s)", lhs, rhs)
}

func (d Postgres) RegexMatch(expr, pattern string) string {
	return fmt.Sprintf("(%s ~ %s)", expr, d.QuoteString(pattern))
}

func (Postgres) MathFunction(name string) string {
	switch name {
	case "ceiling":
		return "ceil"
	case "truncate":
		return "trunc"
	default:
		return name
	}
}

func (Postgres) BooleanLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// JSONBoolLiteral matches #>> output for booleans.
func (Postgres) JSONBoolLiteral(v bool) string {
	if v {
		return "'true'"
	}
	return "'false'"
}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
