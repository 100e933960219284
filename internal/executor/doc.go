// Package executor drives the full compilation pipeline and runs the result.
//
// Compile takes raw expression text through the parser, the AST adapter, the
// translator, and the CTE assembler, producing one executable statement for
// one dialect. Run executes a compiled statement against a store, tagging
// each execution with a trace token for log correlation.
//
// Errors keep their stage-specific types: a parse failure surfaces as a
// parser.ParseError, a translation failure as a translator.TranslationError,
// and only database-side failures become ExecutionError.
package executor
