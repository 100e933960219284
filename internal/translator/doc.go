// Package translator turns the canonical AST into an ordered list of SQL
// fragments under a mutable translation context.
//
// The traversal is recursive and depth-first: children are visited before the
// parent synthesizes its own expression, so a parent's SQL always references
// already-materialized child expressions.
//
// Promotion rule: a node becomes its own fragment iff it is a FunctionCall or
// TypeOperation - any node that transforms data rather than merely
// referencing a value. Literals, path steps, variable references, and
// operator operands fold into the enclosing fragment's expression text. This
// single rule fixes CTE granularity for the whole pipeline: a chain such as
// collection.where(pred).first() yields exactly two fragments.
//
// Array navigation is materialized lazily. Path steps accumulate on an
// operand until an operation needs one row per element; at that point each
// array-valued step becomes a flatten stage that the CTE builder renders as a
// lateral unnest join. A step whose cardinality the registry does not know
// cannot be flattened and fails translation loudly rather than guessing.
//
// All SQL syntax comes from dialect capability calls plus engine-independent
// scaffolding (CASE, COUNT, COALESCE operands, comparison operators).
package translator
