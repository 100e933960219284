package parser

// Kind identifies a parse tree node kind.
type Kind string

const (
	// KindExpression is the root wrapper around a whole expression.
	KindExpression Kind = "expression"

	// KindTerm wraps a single term. Carries no semantic content.
	KindTerm Kind = "term"

	// KindParen wraps a parenthesized sub-expression. Carries no semantic content.
	KindParen Kind = "paren"

	// KindLiteral is a literal. Text holds the raw literal text and Literal
	// the decoded form.
	KindLiteral Kind = "literal"

	// KindIdentifier is a bare identifier (path component or type name).
	KindIdentifier Kind = "identifier"

	// KindInvocation is member access: Children[0] is the base expression,
	// Children[1] the invoked member (identifier or function).
	KindInvocation Kind = "invocation"

	// KindFunction is a function call. Text holds the function name; when the
	// name was lexed as a keyword Text is empty and Children[0] is the
	// identifier carrying the name, followed by the argument nodes.
	KindFunction Kind = "function"

	// KindOperator is a binary operator. Text holds the operator spelling;
	// Children are [lhs, rhs].
	KindOperator Kind = "operator"

	// KindUnary is a unary operator. Text holds "+" or "-"; Children[0] is
	// the operand.
	KindUnary Kind = "unary"

	// KindTypeOp is a type test or cast: Text is "is" or "as"; Children are
	// [base, type identifier].
	KindTypeOp Kind = "typeop"

	// KindVariable is a variable reference such as $this.
	KindVariable Kind = "variable"
)

// LiteralKind identifies the decoded type of a literal node.
type LiteralKind string

const (
	LiteralString   LiteralKind = "string"
	LiteralInteger  LiteralKind = "integer"
	LiteralDecimal  LiteralKind = "decimal"
	LiteralBoolean  LiteralKind = "boolean"
	LiteralDate     LiteralKind = "date"
	LiteralDateTime LiteralKind = "dateTime"
	LiteralTime     LiteralKind = "time"
	LiteralNull     LiteralKind = "null" // the empty collection literal {}
)

// Tree is a raw parse tree node.
type Tree struct {
	Kind     Kind
	Text     string
	Literal  LiteralKind // set for KindLiteral nodes
	Pos      int         // byte offset of the first token of this node
	Children []*Tree
}

// wrap returns t wrapped in a single-child wrapper node of the given kind.
func wrap(kind Kind, t *Tree) *Tree {
	return &Tree{Kind: kind, Pos: t.Pos, Children: []*Tree{t}}
}
