package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/cte"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/executor"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

// defaultDSNs are in-memory databases per dialect. Postgres has no in-memory
// mode; running against it requires an explicit DSN.
var defaultDSNs = map[string]string{
	"sqlite": ":memory:",
	"duckdb": "",
}

// Runner executes scenarios against one or more dialects.
type Runner struct {
	dialects []string
	dsns     map[string]string
	registry *schema.Registry
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDSN sets the database DSN for one dialect.
func WithDSN(dialectName, dsn string) RunnerOption {
	return func(r *Runner) { r.dsns[dialectName] = dsn }
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a Runner over the named dialects. With no names, scenarios
// run against sqlite only.
func NewRunner(dialects []string, opts ...RunnerOption) (*Runner, error) {
	if len(dialects) == 0 {
		dialects = []string{"sqlite"}
	}
	reg, err := schema.Default()
	if err != nil {
		return nil, err
	}
	r := &Runner{
		dialects: dialects,
		dsns:     map[string]string{},
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for name, dsn := range defaultDSNs {
		r.dsns[name] = dsn
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, name := range dialects {
		if _, err := dialect.Get(name); err != nil {
			return nil, err
		}
		if _, ok := r.dsns[name]; !ok {
			return nil, fmt.Errorf("dialect %q needs an explicit DSN", name)
		}
	}
	return r, nil
}

// Outcome is the result of one scenario on one dialect.
type Outcome struct {
	Scenario string
	Dialect  string
	Rows     []store.Row
	Failures []string
}

// Passed reports whether the outcome has no failures.
func (o Outcome) Passed() bool { return len(o.Failures) == 0 }

// RunSuite runs every scenario in the suite. The returned outcomes cover each
// (scenario, dialect) pair plus parity checks across dialects.
func (r *Runner) RunSuite(ctx context.Context, suite *Suite) ([]Outcome, error) {
	var outcomes []Outcome
	for _, sc := range suite.Scenarios {
		out, err := r.RunScenario(ctx, sc)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out...)
	}
	return outcomes, nil
}

// RunScenario runs one scenario against every configured dialect and checks
// cross-dialect parity of the value sequences.
func (r *Runner) RunScenario(ctx context.Context, sc Scenario) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(r.dialects))
	for _, name := range r.dialects {
		out, err := r.runOn(ctx, sc, name)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}

	// Parity: all dialects that produced rows must agree on the normalized
	// value sequence.
	if sc.Expect.Error == "" && len(outcomes) > 1 {
		base := normalizedValues(outcomes[0].Rows)
		for i := 1; i < len(outcomes); i++ {
			got := normalizedValues(outcomes[i].Rows)
			if !equalValueSeqs(base, got) {
				outcomes[i].Failures = append(outcomes[i].Failures,
					fmt.Sprintf("parity: %s and %s disagree on the value sequence",
						outcomes[0].Dialect, outcomes[i].Dialect))
			}
		}
	}
	return outcomes, nil
}

func (r *Runner) runOn(ctx context.Context, sc Scenario, dialectName string) (Outcome, error) {
	out := Outcome{Scenario: sc.Name, Dialect: dialectName}

	d, err := dialect.Get(dialectName)
	if err != nil {
		return out, err
	}
	st, err := store.Open(d, r.dsns[dialectName])
	if err != nil {
		return out, fmt.Errorf("scenario %q: open %s: %w", sc.Name, dialectName, err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return out, fmt.Errorf("scenario %q: prepare %s: %w", sc.Name, dialectName, err)
	}
	if err := r.loadResources(ctx, st, sc); err != nil {
		return out, err
	}

	exec := executor.New(st, r.registry, executor.WithLogger(r.logger))
	res, err := exec.Run(ctx, sc.Expression)
	if err != nil {
		if sc.Expect.Error == "" {
			out.Failures = append(out.Failures, fmt.Sprintf("unexpected error: %v", err))
		} else if !errorMatches(err, sc.Expect.Error) {
			out.Failures = append(out.Failures, fmt.Sprintf("expected %s error, got: %v", sc.Expect.Error, err))
		}
		return out, nil
	}
	out.Rows = res.Rows

	if sc.Expect.Error != "" {
		out.Failures = append(out.Failures,
			fmt.Sprintf("expected %s error, got %d rows", sc.Expect.Error, len(res.Rows)))
		return out, nil
	}
	if sc.Expect.Count != nil && len(res.Rows) != *sc.Expect.Count {
		out.Failures = append(out.Failures,
			fmt.Sprintf("expected %d rows, got %d", *sc.Expect.Count, len(res.Rows)))
	}
	if sc.Expect.Values != nil {
		checkValues(&out, sc.Expect.Values, res.Rows)
	}
	return out, nil
}

func (r *Runner) loadResources(ctx context.Context, st *store.Store, sc Scenario) error {
	for i, res := range sc.Resources {
		doc, err := resourceJSON(res)
		if err != nil {
			return fmt.Errorf("scenario %q: resources[%d]: %w", sc.Name, i, err)
		}
		var hdr struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		}
		if err := json.Unmarshal([]byte(doc), &hdr); err != nil {
			return fmt.Errorf("scenario %q: resources[%d]: %w", sc.Name, i, err)
		}
		if hdr.ResourceType == "" {
			return fmt.Errorf("scenario %q: resources[%d]: missing resourceType", sc.Name, i)
		}
		id := hdr.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := st.Insert(ctx, id, hdr.ResourceType, doc); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}
	return nil
}

func checkValues(out *Outcome, want []*string, rows []store.Row) {
	if len(rows) != len(want) {
		out.Failures = append(out.Failures,
			fmt.Sprintf("expected %d rows, got %d", len(want), len(rows)))
		return
	}
	for i := range want {
		w := normalizeValue(want[i])
		g := normalizeValue(rows[i].Value)
		switch {
		case w == nil && g == nil:
		case w == nil || g == nil || *w != *g:
			out.Failures = append(out.Failures,
				fmt.Sprintf("row %d: expected %s, got %s", i, renderValue(w), renderValue(g)))
		}
	}
}

// normalizeValue applies NFC so value comparison is insensitive to Unicode
// normalization differences between engines.
func normalizeValue(s *string) *string {
	if s == nil {
		return nil
	}
	n := norm.NFC.String(*s)
	return &n
}

func normalizedValues(rows []store.Row) []*string {
	out := make([]*string, len(rows))
	for i, r := range rows {
		out[i] = normalizeValue(r.Value)
	}
	return out
}

func equalValueSeqs(a, b []*string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		switch {
		case a[i] == nil && b[i] == nil:
		case a[i] == nil || b[i] == nil || *a[i] != *b[i]:
			return false
		}
	}
	return true
}

func renderValue(s *string) string {
	if s == nil {
		return "NULL"
	}
	return fmt.Sprintf("%q", *s)
}

// errorMatches checks an expected-error spec against an actual error: either
// a translation error code or a pipeline stage name.
func errorMatches(err error, want string) bool {
	if terr, ok := translator.AsTranslationError(err); ok && string(terr.Code) == want {
		return true
	}
	var perr *parser.ParseError
	switch want {
	case "parse":
		return errors.As(err, &perr)
	case "adapt":
		_, ok := ast.AsAdapterError(err)
		return ok
	case "translate":
		_, ok := translator.AsTranslationError(err)
		return ok
	case "assemble":
		_, ok := cte.AsAssemblyError(err)
		return ok
	case "execute":
		_, ok := executor.AsExecutionError(err)
		return ok
	}
	return false
}
