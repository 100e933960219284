package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/cte"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

// Compiled is one expression compiled for one dialect.
type Compiled struct {
	Expression string
	Resource   string
	Dialect    string
	SQL        string
	Fragments  int
	Stages     int
}

// Compile runs the full pipeline: parse, adapt against the schema registry,
// translate for the dialect, and assemble the WITH statement.
func Compile(expression string, d dialect.Dialect, reg *schema.Registry, table string) (*Compiled, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	node, err := ast.Convert(tree, reg)
	if err != nil {
		return nil, err
	}
	tctx := translator.NewContext(d, reg)
	if table != "" {
		tctx.Table = table
	}
	res, err := translator.Translate(node, tctx)
	if err != nil {
		return nil, err
	}
	nodes, err := cte.Build(res, d)
	if err != nil {
		return nil, err
	}
	sql, err := cte.Assemble(nodes, res.Final)
	if err != nil {
		return nil, err
	}
	return &Compiled{
		Expression: expression,
		Resource:   res.Resource,
		Dialect:    d.Name(),
		SQL:        sql,
		Fragments:  len(res.Fragments),
		Stages:     len(res.Stages),
	}, nil
}

// Executor compiles and runs expressions against one store.
type Executor struct {
	store    *store.Store
	registry *schema.Registry
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New builds an Executor over the given store and schema registry.
func New(s *store.Store, reg *schema.Registry, opts ...Option) *Executor {
	e := &Executor{store: s, registry: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is one executed statement with its collected rows.
type Result struct {
	Trace    string
	SQL      string
	Rows     []store.Row
	Duration time.Duration
}

// Compile compiles an expression for this executor's store dialect and table.
func (e *Executor) Compile(expression string) (*Compiled, error) {
	return Compile(expression, e.store.Dialect(), e.registry, e.store.Table())
}

// Run compiles and executes an expression.
func (e *Executor) Run(ctx context.Context, expression string) (*Result, error) {
	c, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return e.RunCompiled(ctx, c)
}

// RunCompiled executes an already compiled statement.
func (e *Executor) RunCompiled(ctx context.Context, c *Compiled) (*Result, error) {
	trace := uuid.NewString()
	start := time.Now()
	e.logger.Debug("executing statement",
		"trace", trace,
		"dialect", c.Dialect,
		"resource", c.Resource,
		"expression", c.Expression)

	rows, err := e.store.Query(ctx, c.SQL)
	if err != nil {
		e.logger.Error("statement failed",
			"trace", trace,
			"dialect", c.Dialect,
			"error", err)
		return nil, &ExecutionError{
			Expression: c.Expression,
			Dialect:    c.Dialect,
			SQL:        c.SQL,
			Cause:      err,
		}
	}

	duration := time.Since(start)
	e.logger.Info("statement complete",
		"trace", trace,
		"dialect", c.Dialect,
		"rows", len(rows),
		"duration", duration)
	return &Result{Trace: trace, SQL: c.SQL, Rows: rows, Duration: duration}, nil
}
