package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
)

func openMemory(t *testing.T, opts ...Option) *Store {
	t.Helper()
	d, err := dialect.Get("sqlite")
	require.NoError(t, err)
	s, err := Open(d, ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestInsertAndCount(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "p1", "Patient", `{"resourceType":"Patient","id":"p1"}`))
	require.NoError(t, s.Insert(ctx, "p2", "Patient", `{"resourceType":"Patient","id":"p2"}`))
	require.NoError(t, s.Insert(ctx, "o1", "Observation", `{"resourceType":"Observation","id":"o1"}`))

	n, err := s.ResourceCount(ctx, "Patient")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ResourceCount(ctx, "Encounter")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertDuplicateIDFails(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "p1", "Patient", `{}`))
	assert.Error(t, s.Insert(ctx, "p1", "Patient", `{}`))
}

func TestLoadNDJSON(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	input := strings.Join([]string{
		`{"resourceType":"Patient","id":"p1","birthDate":"1970-03-12"}`,
		``,
		`{"resourceType":"Patient","birthDate":"1985-06-01"}`,
		`{"resourceType":"Observation","id":"o1"}`,
	}, "\n")

	n, err := s.LoadNDJSON(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	patients, err := s.ResourceCount(ctx, "Patient")
	require.NoError(t, err)
	assert.Equal(t, 2, patients)
}

func TestLoadNDJSONRejectsMissingResourceType(t *testing.T) {
	s := openMemory(t)
	_, err := s.LoadNDJSON(context.Background(), strings.NewReader(`{"id":"p1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resourceType")
}

func TestQueryNormalizesValues(t *testing.T) {
	s := openMemory(t)
	rows, err := s.Query(context.Background(), "SELECT NULL AS id, 42 AS value")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].ID)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, "42", *rows[0].Value)
}

func TestSQLiteConnectionsCarryRegexp(t *testing.T) {
	s := openMemory(t)
	rows, err := s.Query(context.Background(), "SELECT NULL AS id, ('abc' REGEXP '^a') AS value")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, "1", *rows[0].Value)
}

// Date-shaped and dotted strings must not slip through the numeric guard:
// SQLite's CAST would happily turn '2012-05-10' into 2012.0.
func TestNumericGuardRejectsDateShapedText(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	cases := []struct {
		literal string
		want    *string
	}{
		{"'2012-05-10'", nil},
		{"'1.2.3'", nil},
		{"'abc'", nil},
		{"'42'", ptr("42")},
		{"'1.25'", ptr("1.25")},
		{"'-3'", ptr("-3")},
	}
	for _, tc := range cases {
		q := "SELECT NULL AS id, " + s.Dialect().TryCastNumeric(tc.literal) + " AS value"
		rows, err := s.Query(ctx, q)
		require.NoError(t, err, tc.literal)
		require.Len(t, rows, 1, tc.literal)
		if tc.want == nil {
			assert.Nil(t, rows[0].Value, tc.literal)
		} else {
			require.NotNil(t, rows[0].Value, tc.literal)
			assert.Equal(t, *tc.want, *rows[0].Value, tc.literal)
		}
	}
}

func ptr(s string) *string { return &s }

func TestWithTableOption(t *testing.T) {
	d, err := dialect.Get("sqlite")
	require.NoError(t, err)
	s, err := Open(d, ":memory:", WithTable("clinical_resources"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.Insert(ctx, "p1", "Patient", `{}`))
	n, err := s.ResourceCount(ctx, "Patient")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "clinical_resources", s.Table())
}
