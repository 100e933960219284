package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/testutil"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	s := testutil.OpenSeededStore(t)
	reg, err := schema.Default()
	require.NoError(t, err)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, reg, WithLogger(quiet))
}

func values(rows []store.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		if r.Value != nil {
			out[i] = *r.Value
		}
	}
	return out
}

func TestRunScalarPath(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Patient.birthDate")
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "1970-03-12", *res.Rows[0].Value)
	assert.Equal(t, "1985-06-01", *res.Rows[1].Value)
	assert.Nil(t, res.Rows[2].Value)
	assert.NotEmpty(t, res.Trace)
}

func TestRunFlattenedPath(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Patient.name.given")
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	assert.ElementsMatch(t, []string{"Peter", "James", "Jim", "Henry"}, values(res.Rows))
	// p1's elements come before p2's.
	assert.Equal(t, "p1", *res.Rows[0].ID)
	assert.Equal(t, "Henry", *res.Rows[3].Value)
}

func TestRunCountKeepsEmptyRecords(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Patient.name.count()")
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"2", "1", "0"}, values(res.Rows))
}

func TestRunWhereChain(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Patient.name.where(use = 'official').family")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"Chalmers", "Levin"}, values(res.Rows))
}

func TestRunBooleanComparison(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Patient.active = true")
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "1", *res.Rows[0].Value)
	assert.Equal(t, "0", *res.Rows[1].Value)
	assert.Nil(t, res.Rows[2].Value)
}

func TestRunPolymorphicResolution(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "Observation.value.ofType(Quantity).unit")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "mg", *res.Rows[0].Value)
	assert.Nil(t, res.Rows[1].Value)
}

func TestRunDivisionByZeroYieldsNull(t *testing.T) {
	e := newExecutor(t)
	res, err := e.Run(context.Background(), "5 / 0")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0].ID)
	assert.Nil(t, res.Rows[0].Value)
}

func TestRunWrapsDatabaseFailure(t *testing.T) {
	e := newExecutor(t)
	c := &Compiled{Expression: "x", Dialect: "sqlite", SQL: "SELECT FROM nowhere"}
	_, err := e.RunCompiled(context.Background(), c)
	require.Error(t, err)
	xerr, ok := AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, "x", xerr.Expression)
	assert.Equal(t, "SELECT FROM nowhere", xerr.SQL)
	assert.NotNil(t, xerr.Cause)
}

func TestCompileErrorsKeepTheirType(t *testing.T) {
	e := newExecutor(t)

	_, err := e.Run(context.Background(), "Patient..name")
	var perr *parser.ParseError
	assert.True(t, errors.As(err, &perr))

	_, err = e.Run(context.Background(), "Patient.frobnicate.first()")
	terr, ok := translator.AsTranslationError(err)
	require.True(t, ok)
	assert.Equal(t, translator.ErrCodeMissingSchemaMetadata, terr.Code)
}

func TestCompileReportsShape(t *testing.T) {
	e := newExecutor(t)
	c, err := e.Compile("Patient.name.where(use = 'official').first()")
	require.NoError(t, err)
	assert.Equal(t, "Patient", c.Resource)
	assert.Equal(t, "sqlite", c.Dialect)
	assert.Equal(t, 2, c.Fragments)
	assert.Equal(t, 1, c.Stages)
	assert.Contains(t, c.SQL, "WITH cte_0 AS (")
}
