// Package ast defines the canonical, translator-facing AST for FHIRPath
// expressions and the adapter that builds it from the raw parse tree.
//
// Node is a sealed interface using the marker method pattern. Only types in
// this package implement it, which keeps type switches in the translator
// exhaustive: adding a node kind forces every consumer to handle it.
//
// The adapter (Convert) collapses the parse tree's wrapper nodes, rebuilds
// function names that the parse tree left textually empty, and attaches
// schema metadata (cardinality, element type, polymorphic variants) to every
// path step so that downstream consumers never query the registry again.
package ast
