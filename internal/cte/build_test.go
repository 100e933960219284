package cte

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

func assemble(t *testing.T, expr, dialectName string) string {
	t.Helper()
	d, err := dialect.Get(dialectName)
	require.NoError(t, err)
	reg, err := schema.Default()
	require.NoError(t, err)
	tree, err := parser.Parse(expr)
	require.NoError(t, err)
	node, err := ast.Convert(tree, reg)
	require.NoError(t, err)
	res, err := translator.Translate(node, translator.NewContext(d, reg))
	require.NoError(t, err)
	nodes, err := Build(res, d)
	require.NoError(t, err)
	sql, err := Assemble(nodes, res.Final)
	require.NoError(t, err)
	return sql
}

func TestBuildRootPopulationCTE(t *testing.T) {
	sql := assemble(t, "Patient.birthDate", "duckdb")
	assert.Contains(t, sql, "WITH cte_0 AS (")
	assert.Contains(t, sql, "FROM resources WHERE resource_type = 'Patient'")
	assert.Contains(t, sql, "resource AS value")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY cte_0.id"))
}

func TestNestedArraysProduceTwoUnnestStages(t *testing.T) {
	sql := assemble(t, "Patient.name.given", "duckdb")
	assert.Equal(t, 2, strings.Count(sql, "UNNEST("))
	assert.Equal(t, 3, strings.Count(sql, " AS (\n"))
	assert.Contains(t, sql, "ROW_NUMBER() OVER (PARTITION BY cte_0.id ORDER BY (u.idx - 1)) - 1")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY cte_2.id, cte_2.ord"))
}

// ord must come from the element's array subscript, not from whatever row
// order the engine delivers the unnest in.
func TestStageOrdRanksByArrayPosition(t *testing.T) {
	cases := []struct {
		dialect string
		ordinal string
	}{
		{"duckdb", "(u.idx - 1)"},
		{"postgres", "(u.idx - 1)"},
		{"sqlite", "u.key"},
	}
	for _, tc := range cases {
		t.Run(tc.dialect, func(t *testing.T) {
			sql := assemble(t, "Patient.name", tc.dialect)
			assert.Contains(t, sql,
				"ROW_NUMBER() OVER (PARTITION BY cte_0.id ORDER BY "+tc.ordinal+") - 1")
			assert.NotContains(t, sql, "PARTITION BY cte_0.id) - 1")
		})
	}
}

// A nested flatten ranks within the parent element's ord first, so given
// names of the second HumanName always sort after all of the first's.
func TestNestedStageOrdersByParentOrdThenPosition(t *testing.T) {
	cases := []struct {
		dialect string
		ordinal string
	}{
		{"duckdb", "(u.idx - 1)"},
		{"postgres", "(u.idx - 1)"},
		{"sqlite", "u.key"},
	}
	for _, tc := range cases {
		t.Run(tc.dialect, func(t *testing.T) {
			sql := assemble(t, "Patient.name.given.first()", tc.dialect)
			assert.Contains(t, sql,
				"ROW_NUMBER() OVER (PARTITION BY cte_1.id ORDER BY cte_1.ord, "+tc.ordinal+") - 1")
			// first() then selects over that guaranteed rank.
			assert.Contains(t, sql, "AS ranked WHERE ord = 0")
		})
	}
}

func TestUnnestExposesOrdinalColumn(t *testing.T) {
	sql := assemble(t, "Patient.name", "postgres")
	assert.Contains(t, sql, "WITH ORDINALITY AS u(value, idx)")

	sql = assemble(t, "Patient.name", "duckdb")
	assert.Contains(t, sql, "generate_subscripts(")

	sql = assemble(t, "Patient.name", "sqlite")
	assert.Contains(t, sql, ", json_each(")
}

func TestWhereFilterKeepsIdentityAndOrd(t *testing.T) {
	sql := assemble(t, "Patient.name.where(use = 'official')", "duckdb")
	assert.Contains(t, sql, "cte_1.ord AS ord")
	assert.Contains(t, sql, "WHERE (json_extract_string(cte_1.value, '$.use') = 'official')")
}

func TestFirstWrapsRankedSelect(t *testing.T) {
	sql := assemble(t, "Patient.name.first()", "duckdb")
	assert.Contains(t, sql, "AS ranked WHERE ord = 0")
	assert.Contains(t, sql, "ORDER BY cte_1.ord")
}

func TestLastOrdersDescending(t *testing.T) {
	sql := assemble(t, "Patient.name.last()", "duckdb")
	assert.Contains(t, sql, "ORDER BY cte_1.ord DESC")
	assert.Contains(t, sql, "AS ranked WHERE ord = 0")
}

func TestSkipAndTakeRenderOrdBounds(t *testing.T) {
	sql := assemble(t, "Patient.name.skip(1)", "duckdb")
	assert.Contains(t, sql, "WHERE ord >= 1")

	sql = assemble(t, "Patient.name.take(2)", "duckdb")
	assert.Contains(t, sql, "WHERE ord < 2")
}

// Aggregates join back to the root population so records with empty
// collections still produce a row with count zero.
func TestCountLeftJoinsRootPopulation(t *testing.T) {
	sql := assemble(t, "Patient.name.count()", "duckdb")
	assert.Contains(t, sql, "FROM cte_0 LEFT JOIN cte_1 ON cte_1.id = cte_0.id")
	assert.Contains(t, sql, "GROUP BY cte_0.id")
	assert.Contains(t, sql, "COUNT(")
}

func TestDistinctReRanksOrd(t *testing.T) {
	sql := assemble(t, "Patient.name.given.distinct()", "duckdb")
	assert.Contains(t, sql, "GROUP BY cte_2.id")
	assert.Contains(t, sql, "MIN(cte_2.ord) AS ord")
	assert.Contains(t, sql, "AS dedup")
}

func TestLiteralOnlyExpressionNeedsNoCTE(t *testing.T) {
	sql := assemble(t, "5 / 0", "duckdb")
	assert.Equal(t, "SELECT NULL AS id, (5 / NULLIF(0, 0)) AS value", sql)
}

func TestEveryNamedCTEIsReferencedOrFinal(t *testing.T) {
	// No orphan CTEs: each name appears at least once outside its own
	// definition header.
	sql := assemble(t, "Patient.name.where(use = 'official').given.count()", "duckdb")
	for _, name := range []string{"cte_0", "cte_1", "cte_2", "cte_3", "cte_4"} {
		assert.GreaterOrEqual(t, strings.Count(sql, name), 2, name)
	}
}

func TestBuildAcrossDialectsSharesShape(t *testing.T) {
	for _, name := range []string{"duckdb", "postgres", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			sql := assemble(t, "Patient.name.where(use = 'official').first()", name)
			assert.Equal(t, 1, strings.Count(sql, "WITH "))
			assert.Contains(t, sql, "cte_3")
			assert.Contains(t, sql, "'official'")
			assert.True(t, strings.HasSuffix(sql, "ORDER BY cte_3.id, cte_3.ord"))
		})
	}
}

func TestBuildRejectsUnknownFragmentKind(t *testing.T) {
	d, err := dialect.Get("duckdb")
	require.NoError(t, err)
	res := &translator.Result{
		Resource: "Patient",
		Table:    "resources",
		Root:     "cte_0",
		Fragments: []translator.Fragment{
			{Name: "cte_1", Kind: translator.FragmentKind("bogus"), Index: 1},
		},
	}
	_, err = Build(res, d)
	aerr, ok := AsAssemblyError(err)
	require.True(t, ok)
	assert.Contains(t, aerr.Message, "unknown fragment kind")
}
