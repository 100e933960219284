// Package cte renders translated fragments as common table expressions and
// assembles them into one WITH ... SELECT statement.
//
// The builder decides the CTE shape for each fragment (lateral unnest join,
// filter, positional select, aggregate with a root-population LEFT JOIN) and
// declares upstream dependencies by name. The assembler topologically orders
// the nodes with an index-based Kahn's algorithm and renders the statement;
// a cycle is a fatal internal-consistency error that valid translator output
// can never produce.
//
// Every CTE preserves the record identity column, and element-level CTEs
// additionally carry a zero-based ord column, so later joins and aggregations
// can always re-correlate per original record.
package cte
