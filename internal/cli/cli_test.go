package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
)

// execute runs the root command with the given args and captures stdout.
func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileCommandText(t *testing.T) {
	out, err := execute("compile", "Patient.birthDate")
	require.NoError(t, err)
	assert.Contains(t, out, "WITH cte_0 AS (")
	assert.Contains(t, out, "resource_type = 'Patient'")
}

func TestCompileCommandAllDialects(t *testing.T) {
	out, err := execute("compile", "--all", "Patient.birthDate")
	require.NoError(t, err)
	assert.Contains(t, out, "-- duckdb")
	assert.Contains(t, out, "-- postgres")
	assert.Contains(t, out, "-- sqlite")
}

func TestCompileCommandJSON(t *testing.T) {
	out, err := execute("compile", "--format", "json", "Patient.name.count()")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   compileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Patient", resp.Data.Resource)
	assert.Equal(t, 1, resp.Data.Fragments)
	assert.Contains(t, resp.Data.SQL, "COUNT(")
}

func TestCompileCommandInvalidExpression(t *testing.T) {
	_, err := execute("compile", "Patient..name")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCompileCommandRejectsBadDialect(t *testing.T) {
	_, err := execute("compile", "--dialect", "oracle", "Patient.birthDate")
	require.Error(t, err)
}

func TestValidateCommandMixed(t *testing.T) {
	out, err := execute("validate", "Patient.birthDate", "Patient.frobnicate.first()")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ok\tPatient.birthDate")
	assert.Contains(t, out, "FAIL\tPatient.frobnicate.first()")
	assert.Contains(t, out, "[translate]")
}

func TestValidateCommandParseStage(t *testing.T) {
	out, err := execute("validate", "Patient..name")
	require.Error(t, err)
	assert.Contains(t, out, "[parse]")
}

func TestRunRequiresDatabase(t *testing.T) {
	_, err := execute("run", "Patient.birthDate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLoadThenRun(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "clinical.db")
	ndjson := filepath.Join(dir, "patients.ndjson")
	data := `{"resourceType":"Patient","id":"p1","birthDate":"1970-03-12"}
{"resourceType":"Patient","id":"p2","birthDate":"1985-06-01"}
`
	require.NoError(t, os.WriteFile(ndjson, []byte(data), 0o644))

	out, err := execute("load", "--dialect", "sqlite", "--db", db, ndjson)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 2 resources")

	out, err = execute("run", "--dialect", "sqlite", "--db", db, "--format", "csv", "Patient.birthDate")
	require.NoError(t, err)
	assert.Contains(t, out, "id,value")
	assert.Contains(t, out, "p1,1970-03-12")
	assert.Contains(t, out, "p2,1985-06-01")
}

func TestTestCommandRunsSuite(t *testing.T) {
	dir := t.TempDir()
	suite := filepath.Join(dir, "suite.yaml")
	content := `scenarios:
  - name: birth-dates
    expression: Patient.birthDate
    resources:
      - {resourceType: Patient, id: p1, birthDate: "1970-03-12"}
    expect:
      values: ["1970-03-12"]
`
	require.NoError(t, os.WriteFile(suite, []byte(content), 0o644))

	out, err := execute("test", "--dialects", "sqlite", suite)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTestCommandFailingSuite(t *testing.T) {
	dir := t.TempDir()
	suite := filepath.Join(dir, "suite.yaml")
	content := `scenarios:
  - name: wrong-count
    expression: Patient.birthDate
    resources:
      - {resourceType: Patient, id: p1, birthDate: "1970-03-12"}
    expect:
      count: 5
`
	require.NoError(t, os.WriteFile(suite, []byte(content), 0o644))

	out, err := execute("test", "--dialects", "sqlite", suite)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "expected 5 rows, got 1")
}

func TestRootRejectsBadFormat(t *testing.T) {
	_, err := execute("compile", "--format", "xml", "Patient.birthDate")
	require.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "x"}))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitCommandError, Message: "x"})))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestWriteRowsText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	id := "p1"
	require.NoError(t, f.WriteRows([]store.Row{{ID: &id, Value: nil}}))
	assert.Contains(t, buf.String(), "<null>")
}
