// Package harness runs conformance scenarios against real database engines.
//
// A scenario is one expression, a set of resource documents, and an
// expectation: the ordered value column, a row count, or an expected
// compile-time failure. Scenario suites live in YAML files; the runner loads
// the resources into a fresh in-memory database per dialect, executes the
// compiled statement, and checks the expectation.
//
// When a scenario runs against more than one dialect, the runner additionally
// checks cross-engine parity: every engine must produce the same value
// sequence. Values are NFC-normalized before comparison so engines that
// disagree on Unicode normalization of JSON text do not produce spurious
// mismatches.
package harness
