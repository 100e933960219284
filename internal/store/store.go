package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
)

// DefaultTable is the resource table name used when no option overrides it.
const DefaultTable = "resources"

// DefaultQueryTimeout bounds a single analytical query. Population-scale
// statements are expected to take seconds, not minutes.
const DefaultQueryTimeout = 60 * time.Second

// Store is one connection pool against one database, for one dialect.
type Store struct {
	db       *sql.DB
	dialect  dialect.Dialect
	table    string
	timeout  time.Duration
	maxConns int
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithTable overrides the resource table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithQueryTimeout overrides the per-query timeout. Zero disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithMaxConns overrides the pool size.
func WithMaxConns(n int) Option {
	return func(s *Store) { s.maxConns = n }
}

// Open connects to the database identified by dsn using the dialect's
// registered driver and verifies the connection.
//
// SQLite only supports one writer at a time, so its pool is limited to a
// single connection; other engines default to eight.
func Open(d dialect.Dialect, dsn string, opts ...Option) (*Store, error) {
	if d.DriverName() == sqliteDriverName {
		registerSQLiteDriver()
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name(), err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", d.Name(), err)
	}

	s := &Store{
		db:       db,
		dialect:  d,
		table:    DefaultTable,
		timeout:  DefaultQueryTimeout,
		maxConns: 8,
	}
	if d.DriverName() == sqliteDriverName {
		s.maxConns = 1
	}
	for _, opt := range opts {
		opt(s)
	}

	db.SetMaxOpenConns(s.maxConns)
	db.SetMaxIdleConns(s.maxConns)
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying pool for callers that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect this store was opened with.
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Table returns the resource table name.
func (s *Store) Table() string {
	return s.table
}

// Row is one result row of a compiled statement: the record identity and the
// value column as normalized text. Either may be NULL.
type Row struct {
	ID    *string
	Value *string
}

// Query runs a compiled statement and collects all rows, applying the
// per-query timeout. Values are normalized to text so results compare
// uniformly across engines.
func (s *Store) Query(ctx context.Context, query string) ([]Row, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id, value any
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, Row{ID: normalize(id), Value: normalize(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalize converts a scanned database value to its text form. Engines
// disagree on the Go type a JSON number or boolean scans into; text is the
// common denominator the harness compares.
func normalize(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case bool:
		s = strconv.FormatBool(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		s = t.Format(time.RFC3339)
	default:
		s = fmt.Sprintf("%v", t)
	}
	return &s
}
