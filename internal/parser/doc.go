// Package parser turns FHIRPath expression text into a raw parse tree.
//
// The parse tree is deliberately close to the grammar: it contains wrapper
// nodes for terms and parenthesized expressions, and function nodes whose
// display text may be empty when the callee was lexed as a keyword. The AST
// adapter (package ast) is responsible for collapsing these artifacts into
// the canonical translator-facing AST.
//
// Grammar precedence, loosest to tightest:
//
//	implies < or, xor < and < equality (= !=) < comparison (< <= > >=)
//	  < type operators (is, as) < additive (+ -) < multiplicative (* / div mod)
//	  < unary (- +) < invocation (.member, .func(args)) < primary
package parser
