package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuiteValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty suite",
			yaml: "scenarios: []",
			want: "non-empty",
		},
		{
			name: "missing expression",
			yaml: "scenarios:\n  - name: a\n    expect:\n      count: 1",
			want: "expression is required",
		},
		{
			name: "two expectations",
			yaml: "scenarios:\n  - name: a\n    expression: Patient.id\n    expect:\n      count: 1\n      error: parse",
			want: "exactly one",
		},
		{
			name: "duplicate names",
			yaml: "scenarios:\n  - name: a\n    expression: Patient.id\n    expect: {count: 1}\n  - name: a\n    expression: Patient.id\n    expect: {count: 1}",
			want: "duplicate",
		},
		{
			name: "invalid raw JSON resource",
			yaml: "scenarios:\n  - name: a\n    expression: Patient.id\n    resources: ['{not json']\n    expect: {count: 1}",
			want: "not valid JSON",
		},
		{
			name: "unknown field",
			yaml: "scenarios:\n  - name: a\n    expresion: Patient.id\n    expect: {count: 1}",
			want: "field",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadSuiteSmoke(t *testing.T) {
	suite, err := LoadSuite("testdata/smoke.yaml")
	require.NoError(t, err)
	assert.Len(t, suite.Scenarios, 6)
	assert.Equal(t, "birth-dates", suite.Scenarios[0].Name)
}

func TestRunSuiteOnSQLite(t *testing.T) {
	suite, err := LoadSuite("testdata/smoke.yaml")
	require.NoError(t, err)

	r, err := NewRunner([]string{"sqlite"})
	require.NoError(t, err)

	outcomes, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, outcomes, len(suite.Scenarios))
	for _, o := range outcomes {
		assert.True(t, o.Passed(), "%s on %s: %v", o.Scenario, o.Dialect, o.Failures)
	}
}

func TestRunScenarioReportsMismatch(t *testing.T) {
	r, err := NewRunner([]string{"sqlite"})
	require.NoError(t, err)

	v := "wrong"
	sc := Scenario{
		Name:       "mismatch",
		Expression: "Patient.birthDate",
		Resources:  []any{`{"resourceType":"Patient","id":"p1","birthDate":"1970-03-12"}`},
		Expect:     Expectation{Values: []*string{&v}},
	}
	outcomes, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Passed())
	assert.Contains(t, outcomes[0].Failures[0], "row 0")
}

func TestRunScenarioExpectedErrorSatisfied(t *testing.T) {
	r, err := NewRunner([]string{"sqlite"})
	require.NoError(t, err)

	sc := Scenario{
		Name:       "bad-parse",
		Expression: "Patient..name",
		Expect:     Expectation{Error: "parse"},
	}
	outcomes, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Passed(), "%v", outcomes[0].Failures)
}

func TestRunnerRejectsUnknownDialect(t *testing.T) {
	_, err := NewRunner([]string{"oracle"})
	require.Error(t, err)
}

func TestNormalizeValueAppliesNFC(t *testing.T) {
	// e + combining acute vs precomposed e-acute.
	decomposed := "Résumé"
	composed := "Résumé"
	a := normalizeValue(&decomposed)
	b := normalizeValue(&composed)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, *a, *b)
}

func TestGoldenStatements(t *testing.T) {
	AssertCompiledSQL(t, "patient-birthdate-duckdb", "Patient.birthDate", "duckdb")
	AssertCompiledSQL(t, "patient-birthdate-postgres", "Patient.birthDate", "postgres")
	AssertCompiledSQL(t, "patient-name-count-duckdb", "Patient.name.count()", "duckdb")
}
