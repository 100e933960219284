package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// resourceDDL is the per-engine resource table definition. The logical layout
// is identical everywhere; only the JSON column type differs.
var resourceDDL = map[string]string{
	"duckdb":   "CREATE TABLE IF NOT EXISTS %s (id VARCHAR PRIMARY KEY, resource_type VARCHAR NOT NULL, resource JSON NOT NULL)",
	"postgres": "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, resource_type TEXT NOT NULL, resource JSONB NOT NULL)",
	"sqlite":   "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, resource_type TEXT NOT NULL, resource TEXT NOT NULL)",
}

// EnsureSchema creates the resource table and its type index if they do not
// exist. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl, ok := resourceDDL[s.dialect.Name()]
	if !ok {
		return fmt.Errorf("no resource table definition for dialect %q", s.dialect.Name())
	}
	table := s.dialect.QuoteIdentifier(s.table)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
		return fmt.Errorf("create resource table: %w", err)
	}
	index := s.dialect.QuoteIdentifier("idx_" + s.table + "_type")
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (resource_type)", index, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create resource type index: %w", err)
	}
	return nil
}

// Insert stores one resource document.
func (s *Store) Insert(ctx context.Context, id, resourceType, document string) error {
	stmt := fmt.Sprintf("INSERT INTO %s (id, resource_type, resource) VALUES (%s, %s, %s)",
		s.dialect.QuoteIdentifier(s.table),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	if _, err := s.db.ExecContext(ctx, stmt, id, resourceType, document); err != nil {
		return fmt.Errorf("insert resource %s/%s: %w", resourceType, id, err)
	}
	return nil
}

// resourceHeader is the minimal envelope read off each document during load.
type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// LoadNDJSON reads newline-delimited JSON resources and inserts each one.
// Blank lines are skipped. A document without a resourceType is rejected; a
// document without an id gets a generated one. Returns the number of
// resources loaded.
func (s *Store) LoadNDJSON(ctx context.Context, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 16<<20)

	loaded := 0
	line := 0
	for sc.Scan() {
		line++
		doc := sc.Bytes()
		if len(doc) == 0 {
			continue
		}
		var hdr resourceHeader
		if err := json.Unmarshal(doc, &hdr); err != nil {
			return loaded, fmt.Errorf("line %d: parse resource: %w", line, err)
		}
		if hdr.ResourceType == "" {
			return loaded, fmt.Errorf("line %d: resource has no resourceType", line)
		}
		id := hdr.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := s.Insert(ctx, id, hdr.ResourceType, string(doc)); err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		loaded++
	}
	if err := sc.Err(); err != nil {
		return loaded, fmt.Errorf("read resources: %w", err)
	}
	return loaded, nil
}

// ResourceCount returns the number of stored resources of the given type.
func (s *Store) ResourceCount(ctx context.Context, resourceType string) (int, error) {
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE resource_type = %s",
		s.dialect.QuoteIdentifier(s.table), s.dialect.Placeholder(1))
	var n int
	if err := s.db.QueryRowContext(ctx, stmt, resourceType).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s resources: %w", resourceType, err)
	}
	return n, nil
}
