// Package dialect defines the SQL capability surface of the compiler.
//
// A Dialect is a fixed set of syntax-generation methods implemented once per
// target engine. Every method is a pure template: it receives already-computed
// SQL text and returns SQL text. No method decides whether an operation is
// needed - that decision belongs to the translator and the CTE builder.
//
// Dialects are registered by name and selected once at executor construction.
package dialect

import (
	"fmt"
	"sort"
	"strings"
)

// JSONKind identifies a JSON value kind for type probes.
type JSONKind int

const (
	KindNull JSONKind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// Dialect generates SQL syntax for exactly one target engine.
//
// Inputs are SQL expression strings already rendered by the caller; outputs
// are SQL expression or clause strings. Implementations must be stateless
// and safe for concurrent use.
type Dialect interface {
	// Name returns the registry name of the dialect ("duckdb", "postgres", ...).
	Name() string

	// DriverName returns the database/sql driver name used to open connections.
	DriverName() string

	// QuoteIdentifier quotes a SQL identifier.
	QuoteIdentifier(name string) string

	// QuoteString renders a SQL string literal with escaping.
	QuoteString(value string) string

	// ExtractField accesses one JSON object field, producing a JSON-typed value.
	ExtractField(base, field string) string

	// Path accesses a chain of JSON object fields, producing a JSON-typed value.
	Path(base string, steps []string) string

	// PathText accesses a chain of JSON object fields, producing a text value.
	PathText(base string, steps []string) string

	// TypeProbe returns an expression yielding the JSON type tag of expr.
	TypeProbe(expr string) string

	// TypeTag returns the literal the type probe yields for the given kind.
	TypeTag(kind JSONKind) string

	// KindCheck returns a boolean expression testing whether expr is a JSON
	// value of the given kind.
	KindCheck(expr string, kind JSONKind) string

	// ArrayLength returns the length of a JSON array expression.
	ArrayLength(expr string) string

	// ArrayElement accesses a JSON array element by constant index.
	ArrayElement(expr string, index int) string

	// ArrayElementAt accesses a JSON array element by a computed index expression.
	ArrayElementAt(expr, indexExpr string) string

	// ArrayNormalize coerces expr to an iterable array: NULL becomes the empty
	// array, a scalar becomes a one-element array, an array passes through.
	ArrayNormalize(expr string) string

	// LateralUnnest renders the join clause that expands the (already
	// normalized) array expression into one row per element, exposing the
	// element as alias.column alongside its array position.
	LateralUnnest(input, alias, column string) string

	// UnnestOrdinal returns the zero-based array position of the element
	// exposed by LateralUnnest under the given alias. Engines deliver unnest
	// rows in no guaranteed order; element positions must come from here,
	// never from row order.
	UnnestOrdinal(alias string) string

	// RowNumber renders a zero-based row number window expression over the
	// given ordering.
	RowNumber(partition, order string) string

	// Not negates a boolean expression.
	Not(expr string) string

	// Coalesce renders COALESCE over the given expressions.
	Coalesce(exprs ...string) string

	// CastText casts a JSON-typed value to its text representation, without
	// JSON quoting for strings.
	CastText(expr string) string

	// TryCastNumeric coerces a JSON-typed value to a numeric value, yielding
	// NULL when the value is not numeric.
	TryCastNumeric(expr string) string

	// Substring renders a 1-based substring. start and length are SQL
	// expressions; an empty length means "to the end of the string".
	Substring(expr, start, length string) string

	// StringLength returns the character length of a text expression.
	StringLength(expr string) string

	// StringContains tests whether the text expression contains the substring
	// expression, case-sensitively.
	StringContains(expr, substr string) string

	// StringConcat concatenates two text expressions.
	StringConcat(lhs, rhs string) string

	// RegexMatch tests expr against a regular expression pattern literal.
	RegexMatch(expr, pattern string) string

	// MathFunction maps a portable math function name (abs, ceiling, floor,
	// round, sqrt, truncate) to the engine's spelling.
	MathFunction(name string) string

	// BooleanLiteral renders a boolean literal.
	BooleanLiteral(v bool) string

	// JSONBoolLiteral renders the comparison literal that a JSON boolean
	// extracted via PathText compares equal to.
	JSONBoolLiteral(v bool) string

	// Placeholder renders the n-th (1-based) bind parameter marker.
	Placeholder(n int) string
}

var registry = map[string]Dialect{}

// Register adds a dialect to the global registry.
// Called from init() in each dialect implementation file.
func Register(d Dialect) {
	registry[d.Name()] = d
}

// Get returns the dialect registered under name.
func Get(name string) (Dialect, error) {
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// escapeSingleQuotes doubles single quotes for SQL string literals.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
