// Package testutil provides shared fixtures for integration tests: a small
// clinical resource set and helpers to open stores pre-loaded with it.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
)

// SampleResources is a newline-delimited JSON set of clinical resources used
// across integration tests: three patients (one with no names at all, so
// empty-collection semantics stay visible) and two observations exercising
// both variants of the polymorphic value property.
const SampleResources = `{"resourceType":"Patient","id":"p1","birthDate":"1970-03-12","active":true,"name":[{"use":"official","family":"Chalmers","given":["Peter","James"]},{"use":"nickname","given":["Jim"]}]}
{"resourceType":"Patient","id":"p2","birthDate":"1985-06-01","active":false,"name":[{"use":"official","family":"Levin","given":["Henry"]}]}
{"resourceType":"Patient","id":"p3"}
{"resourceType":"Observation","id":"o1","status":"final","valueQuantity":{"value":185,"unit":"mg"}}
{"resourceType":"Observation","id":"o2","status":"final","valueString":"negative"}`

// SampleResourceCount is the number of documents in SampleResources.
const SampleResourceCount = 5

// OpenStore opens an in-memory store for the named dialect and registers a
// cleanup to close it.
func OpenStore(t *testing.T, dialectName, dsn string) *store.Store {
	t.Helper()
	d, err := dialect.Get(dialectName)
	if err != nil {
		t.Fatalf("get dialect %s: %v", dialectName, err)
	}
	s, err := store.Open(d, dsn)
	if err != nil {
		t.Fatalf("open %s store: %v", dialectName, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// OpenSeededStore opens an in-memory SQLite store with the resource table
// created and SampleResources loaded.
func OpenSeededStore(t *testing.T) *store.Store {
	t.Helper()
	s := OpenStore(t, "sqlite", ":memory:")
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	n, err := s.LoadNDJSON(ctx, strings.NewReader(SampleResources))
	if err != nil {
		t.Fatalf("load sample resources: %v", err)
	}
	if n != SampleResourceCount {
		t.Fatalf("loaded %d resources, want %d", n, SampleResourceCount)
	}
	return s
}
