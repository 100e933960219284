// Package schema provides the resource schema registry: a read-only mapping
// from (type name, property name) to cardinality, element type, and
// polymorphic variant metadata.
//
// The registry is loaded once at process start - from CUE definition
// documents or from the embedded FHIR R4 subset - and is immutable
// afterwards, which makes it safe for unsynchronized concurrent reads by
// parallel compilations.
//
// The compiler core consumes the registry only through lookups; no component
// downstream of the AST adapter re-queries it for metadata the adapter has
// already attached to a node.
package schema
