package ast

import "github.com/joelmontavon/fhir4ds3-sub006/internal/schema"

// Node is a canonical AST node.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the translator.
//
// Node types:
//   - Literal: a typed constant
//   - PathStep: property access, annotated with schema metadata
//   - FunctionCall: a named function applied to a base collection
//   - BinaryOp: an infix operator
//   - UnaryOp: prefix + or -
//   - TypeOperation: is / as / ofType
//   - VariableRef: $this and friends
type Node interface {
	astNode() // Marker method - seals interface to this package
}

// LiteralKind identifies the type of a Literal node.
type LiteralKind string

const (
	LiteralString   LiteralKind = "string"
	LiteralInteger  LiteralKind = "integer"
	LiteralDecimal  LiteralKind = "decimal"
	LiteralBoolean  LiteralKind = "boolean"
	LiteralDate     LiteralKind = "date"
	LiteralDateTime LiteralKind = "dateTime"
	LiteralTime     LiteralKind = "time"
	LiteralEmpty    LiteralKind = "empty" // the {} collection literal
)

// Precision is the granularity of a temporal literal, derived from how many
// components its text spells out.
type Precision int

const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
)

// TruncateLength returns the prefix length of an ISO-8601 string that covers
// this precision: "2019" is 4, "2019-03" is 7, and so on.
func (p Precision) TruncateLength() int {
	switch p {
	case PrecisionYear:
		return 4
	case PrecisionMonth:
		return 7
	case PrecisionDay:
		return 10
	case PrecisionHour:
		return 13
	case PrecisionMinute:
		return 16
	case PrecisionSecond:
		return 19
	}
	return 0
}

// Coarser returns the less precise of p and q.
func (p Precision) Coarser(q Precision) Precision {
	if q < p {
		return q
	}
	return p
}

// Literal is a typed constant. Value holds the literal text with quote and
// sigil characters already stripped.
type Literal struct {
	Kind      LiteralKind
	Value     string
	Precision Precision // set for date and dateTime literals
}

// PathStep is a property access. Base is the expression the step is applied
// to; a nil Base means the step resolves against the enclosing focus (the
// resource root at top level, the unnested element inside a predicate).
//
// Cardinality, ElementType, and Variants come from the schema registry at
// adapter time. A step whose property is unknown to the registry carries
// CardinalityUnknown; the translator decides whether that is fatal.
type PathStep struct {
	Base        Node
	Name        string
	Resource    bool // the step names a resource type, not a property
	Cardinality schema.Cardinality
	ElementType string
	Variants    []schema.Variant // non-empty iff the property is polymorphic
}

// Polymorphic reports whether the step resolves a choice-typed property.
func (s *PathStep) Polymorphic() bool { return len(s.Variants) > 0 }

// FunctionCall applies a named function to Base. Base is nil for bare calls
// with no subject.
type FunctionCall struct {
	Base Node
	Name string
	Args []Node
}

// Operator is the spelling of a binary operator.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpAdd          Operator = "+"
	OpSubtract     Operator = "-"
	OpMultiply     Operator = "*"
	OpDivide       Operator = "/"
	OpDiv          Operator = "div"
	OpMod          Operator = "mod"
	OpAnd          Operator = "and"
	OpOr           Operator = "or"
	OpXor          Operator = "xor"
	OpImplies      Operator = "implies"
)

// BinaryOp is an infix operator application.
type BinaryOp struct {
	Op  Operator
	LHS Node
	RHS Node
}

// UnaryOp is prefix negation or identity.
type UnaryOp struct {
	Op      Operator // OpAdd or OpSubtract
	Operand Node
}

// TypeOpKind identifies a type operation.
type TypeOpKind string

const (
	TypeOpIs     TypeOpKind = "is"
	TypeOpAs     TypeOpKind = "as"
	TypeOpOfType TypeOpKind = "ofType"
)

// TypeOperation is a type test, cast, or collection type filter. TypeName is
// always non-empty: a call form with the wrong argument count is left as a
// FunctionCall and rejected during translation, so a TypeOperation without a
// type argument is never built.
type TypeOperation struct {
	Op       TypeOpKind
	Base     Node
	TypeName string
}

// VariableRef references an environment variable such as $this.
type VariableRef struct {
	Name string
}

func (*Literal) astNode()       {}
func (*PathStep) astNode()      {}
func (*FunctionCall) astNode()  {}
func (*BinaryOp) astNode()      {}
func (*UnaryOp) astNode()       {}
func (*TypeOperation) astNode() {}
func (*VariableRef) astNode()   {}

// Walk visits n and every node reachable from it, parents before children.
// It stops early when fn returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	switch v := n.(type) {
	case *Literal, *VariableRef:
	case *PathStep:
		if !Walk(v.Base, fn) {
			return false
		}
	case *FunctionCall:
		if !Walk(v.Base, fn) {
			return false
		}
		for _, arg := range v.Args {
			if !Walk(arg, fn) {
				return false
			}
		}
	case *BinaryOp:
		if !Walk(v.LHS, fn) {
			return false
		}
		if !Walk(v.RHS, fn) {
			return false
		}
	case *UnaryOp:
		if !Walk(v.Operand, fn) {
			return false
		}
	case *TypeOperation:
		if !Walk(v.Base, fn) {
			return false
		}
	}
	return true
}
