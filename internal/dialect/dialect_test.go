package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"duckdb", "postgres", "sqlite"}, Names())

	d, err := Get("duckdb")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", d.Name())

	_, err = Get("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: duckdb, postgres, sqlite")
}

func TestQuoteString(t *testing.T) {
	for _, name := range Names() {
		d, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, "'O''Brien'", d.QuoteString("O'Brien"), name)
		assert.Equal(t, `"weird""name"`, d.QuoteIdentifier(`weird"name`), name)
	}
}

func TestPathRendering(t *testing.T) {
	steps := []string{"name", "family"}
	cases := []struct {
		dialect  string
		path     string
		pathText string
	}{
		{"duckdb", "json_extract(v, '$.name.family')", "json_extract_string(v, '$.name.family')"},
		{"postgres", "(v #> '{name,family}')", "(v #>> '{name,family}')"},
		{"sqlite", "json_extract(v, '$.name.family')", "json_extract(v, '$.name.family')"},
	}
	for _, tc := range cases {
		t.Run(tc.dialect, func(t *testing.T) {
			d, err := Get(tc.dialect)
			require.NoError(t, err)
			assert.Equal(t, tc.path, d.Path("v", steps))
			assert.Equal(t, tc.pathText, d.PathText("v", steps))
		})
	}
}

func TestPathWithNoStepsPassesThrough(t *testing.T) {
	for _, name := range Names() {
		d, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, "v", d.Path("v", nil), name)
	}
}

func TestArrayNormalize(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t,
		"CASE WHEN v IS NULL THEN CAST([] AS JSON[]) WHEN json_type(v) = 'ARRAY' THEN CAST(v AS JSON[]) ELSE [CAST(v AS JSON)] END",
		duck.ArrayNormalize("v"))

	pg, _ := Get("postgres")
	assert.Equal(t,
		"CASE WHEN v IS NULL THEN '[]'::jsonb WHEN jsonb_typeof(v) = 'array' THEN v ELSE jsonb_build_array(v) END",
		pg.ArrayNormalize("v"))

	// json_each handles scalars itself; only NULL needs a guard.
	lite, _ := Get("sqlite")
	assert.Equal(t, "COALESCE(v, json_array())", lite.ArrayNormalize("v"))
}

func TestLateralUnnest(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t,
		"CROSS JOIN LATERAL (SELECT UNNEST(arr) AS value, generate_subscripts(arr, 1) AS idx) AS u",
		duck.LateralUnnest("arr", "u", "value"))

	pg, _ := Get("postgres")
	assert.Equal(t,
		"CROSS JOIN LATERAL jsonb_array_elements(arr) WITH ORDINALITY AS u(value, idx)",
		pg.LateralUnnest("arr", "u", "value"))

	lite, _ := Get("sqlite")
	assert.Equal(t, ", json_each(arr) AS u", lite.LateralUnnest("arr", "u", "value"))
}

// Each unnest must expose the element's true array position; row delivery
// order carries no guarantee on any engine.
func TestUnnestOrdinal(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "(u.idx - 1)", duck.UnnestOrdinal("u"))

	pg, _ := Get("postgres")
	assert.Equal(t, "(u.idx - 1)", pg.UnnestOrdinal("u"))

	lite, _ := Get("sqlite")
	assert.Equal(t, "u.key", lite.UnnestOrdinal("u"))
}

func TestRowNumberAlwaysOrders(t *testing.T) {
	for _, name := range Names() {
		d, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t,
			"ROW_NUMBER() OVER (PARTITION BY p.id ORDER BY p.ord) - 1",
			d.RowNumber("p.id", "p.ord"), name)
	}
}

func TestKindCheck(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "json_type(v) IN ('DOUBLE', 'BIGINT', 'UBIGINT')", duck.KindCheck("v", KindNumber))
	assert.Equal(t, "json_type(v) = 'ARRAY'", duck.KindCheck("v", KindArray))

	lite, _ := Get("sqlite")
	assert.Equal(t, "json_type(v) IN ('true', 'false')", lite.KindCheck("v", KindBool))
	assert.Equal(t, "json_type(v) IN ('integer', 'real')", lite.KindCheck("v", KindNumber))

	pg, _ := Get("postgres")
	assert.Equal(t, "jsonb_typeof(v) = 'number'", pg.KindCheck("v", KindNumber))
}

func TestBooleanLiterals(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "TRUE", duck.BooleanLiteral(true))
	assert.Equal(t, "'true'", duck.JSONBoolLiteral(true))

	lite, _ := Get("sqlite")
	assert.Equal(t, "1", lite.BooleanLiteral(true))
	assert.Equal(t, "0", lite.JSONBoolLiteral(false))
}

func TestSubstring(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "substring(v, 1, 4)", duck.Substring("v", "1", "4"))
	assert.Equal(t, "substring(v, 2)", duck.Substring("v", "2", ""))

	pg, _ := Get("postgres")
	assert.Equal(t, "substring(v from 1 for 4)", pg.Substring("v", "1", "4"))

	lite, _ := Get("sqlite")
	assert.Equal(t, "substr(v, 1, 4)", lite.Substring("v", "1", "4"))
}

func TestRegexMatch(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "regexp_matches(v, '^a+$')", duck.RegexMatch("v", "^a+$"))

	pg, _ := Get("postgres")
	assert.Equal(t, "(v ~ '^a+$')", pg.RegexMatch("v", "^a+$"))

	lite, _ := Get("sqlite")
	assert.Equal(t, "(v REGEXP '^a+$')", lite.RegexMatch("v", "^a+$"))
}

// All three numeric guards must reject the same non-numeric shapes, or
// arithmetic over text diverges across dialects.
func TestTryCastNumericGuardsFullString(t *testing.T) {
	pg, _ := Get("postgres")
	assert.Contains(t, pg.TryCastNumeric("v"), `~ '^-?[0-9]+(\.[0-9]+)?$'`)

	lite, _ := Get("sqlite")
	got := lite.TryCastNumeric("v")
	assert.Equal(t,
		`CASE WHEN CAST(v AS TEXT) REGEXP '^-?[0-9]+(\.[0-9]+)?$' THEN CAST(v AS REAL) ELSE NULL END`,
		got)
	assert.NotContains(t, got, "GLOB")

	duck, _ := Get("duckdb")
	assert.Equal(t, "TRY_CAST(v AS DOUBLE)", duck.TryCastNumeric("v"))
}

func TestMathFunctionMapping(t *testing.T) {
	for _, name := range Names() {
		d, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, "ceil", d.MathFunction("ceiling"), name)
		assert.Equal(t, "trunc", d.MathFunction("truncate"), name)
		assert.Equal(t, "sqrt", d.MathFunction("sqrt"), name)
	}
}

func TestPlaceholder(t *testing.T) {
	duck, _ := Get("duckdb")
	assert.Equal(t, "?", duck.Placeholder(3))

	pg, _ := Get("postgres")
	assert.Equal(t, "$1", pg.Placeholder(1))
	assert.Equal(t, "$3", pg.Placeholder(3))

	lite, _ := Get("sqlite")
	assert.Equal(t, "?", lite.Placeholder(2))
}
