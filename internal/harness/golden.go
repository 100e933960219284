package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/executor"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// AssertCompiledSQL compiles the expression for the named dialect and
// compares the generated statement against testdata/golden/<name>.golden.
// Golden SQL files are the reviewed source of truth for statement shape.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertCompiledSQL(t *testing.T, name, expression, dialectName string) {
	t.Helper()

	d, err := dialect.Get(dialectName)
	require.NoError(t, err)
	reg, err := schema.Default()
	require.NoError(t, err)

	c, err := executor.Compile(expression, d, reg, "")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(c.SQL))
}
