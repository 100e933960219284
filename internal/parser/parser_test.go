package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unwrapRoot strips the KindExpression wrapper added by Parse.
func unwrapRoot(t *testing.T, tree *Tree) *Tree {
	t.Helper()
	require.Equal(t, KindExpression, tree.Kind)
	require.Len(t, tree.Children, 1)
	return tree.Children[0]
}

func TestParsePathChain(t *testing.T) {
	tree, err := Parse("Patient.name.family")
	require.NoError(t, err)

	node := unwrapRoot(t, tree)
	require.Equal(t, KindInvocation, node.Kind)
	assert.Equal(t, KindIdentifier, node.Children[1].Kind)
	assert.Equal(t, "family", node.Children[1].Text)

	inner := node.Children[0]
	require.Equal(t, KindInvocation, inner.Kind)
	assert.Equal(t, "name", inner.Children[1].Text)
	assert.Equal(t, KindIdentifier, inner.Children[0].Kind)
	assert.Equal(t, "Patient", inner.Children[0].Text)
}

func TestParseFunctionWithPredicate(t *testing.T) {
	tree, err := Parse("Patient.name.where(use = 'official')")
	require.NoError(t, err)

	node := unwrapRoot(t, tree)
	require.Equal(t, KindInvocation, node.Kind)
	fn := node.Children[1]
	require.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, "where", fn.Text)
	require.Len(t, fn.Children, 1)

	pred := fn.Children[0]
	require.Equal(t, KindOperator, pred.Kind)
	assert.Equal(t, "=", pred.Text)
}

func TestParseKeywordFunctionHasEmptyText(t *testing.T) {
	// "contains" lexes as a keyword, so the function node's display text is
	// empty and the name travels in the first child.
	tree, err := Parse("Patient.name.family.contains('son')")
	require.NoError(t, err)

	node := unwrapRoot(t, tree)
	fn := node.Children[1]
	require.Equal(t, KindFunction, fn.Kind)
	assert.Empty(t, fn.Text)
	require.Len(t, fn.Children, 2)
	assert.Equal(t, KindIdentifier, fn.Children[0].Kind)
	assert.Equal(t, "contains", fn.Children[0].Text)
	assert.Equal(t, KindTerm, fn.Children[1].Kind)
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  LiteralKind
		text  string
	}{
		{"integer", "42", LiteralInteger, "42"},
		{"decimal", "3.14", LiteralDecimal, "3.14"},
		{"string", "'hello'", LiteralString, "hello"},
		{"boolean true", "true", LiteralBoolean, "true"},
		{"boolean false", "false", LiteralBoolean, "false"},
		{"date", "@2019-01-01", LiteralDate, "2019-01-01"},
		{"year only", "@2019", LiteralDate, "2019"},
		{"dateTime", "@2019-01-01T12:30:05Z", LiteralDateTime, "2019-01-01T12:30:05Z"},
		{"time", "@T14:30", LiteralTime, "T14:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.input)
			require.NoError(t, err)

			node := unwrapRoot(t, tree)
			require.Equal(t, KindTerm, node.Kind)
			lit := node.Children[0]
			require.Equal(t, KindLiteral, lit.Kind)
			assert.Equal(t, tt.kind, lit.Literal)
			assert.Equal(t, tt.text, lit.Text)
		})
	}
}

func TestParseStringEscapes(t *testing.T) {
	tree, err := Parse(`'it\'s a \\ test'`)
	require.NoError(t, err)

	lit := unwrapRoot(t, tree).Children[0]
	assert.Equal(t, `it's a \ test`, lit.Text)
}

func TestParseEmptyCollectionLiteral(t *testing.T) {
	tree, err := Parse("{}")
	require.NoError(t, err)

	node := unwrapRoot(t, tree)
	require.Equal(t, KindLiteral, node.Kind)
	assert.Equal(t, LiteralNull, node.Literal)
}

func TestParsePrecedence(t *testing.T) {
	// and binds tighter than or: a or b and c == a or (b and c).
	tree, err := Parse("active or deceased and verified")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindOperator, root.Kind)
	assert.Equal(t, "or", root.Text)
	right := root.Children[1]
	require.Equal(t, KindOperator, right.Kind)
	assert.Equal(t, "and", right.Text)
}

func TestParseArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 == 1 + (2 * 3).
	tree, err := Parse("1 + 2 * 3")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindOperator, root.Kind)
	assert.Equal(t, "+", root.Text)
	right := root.Children[1]
	require.Equal(t, KindOperator, right.Kind)
	assert.Equal(t, "*", right.Text)
}

func TestParseComparisonBindsTighterThanEquality(t *testing.T) {
	tree, err := Parse("a < b = c < d")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindOperator, root.Kind)
	assert.Equal(t, "=", root.Text)
	assert.Equal(t, "<", root.Children[0].Text)
	assert.Equal(t, "<", root.Children[1].Text)
}

func TestParseParenthesesOverridePrecedence(t *testing.T) {
	tree, err := Parse("(1 + 2) * 3")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindOperator, root.Kind)
	assert.Equal(t, "*", root.Text)

	left := root.Children[0]
	require.Equal(t, KindParen, left.Kind)
	assert.Equal(t, "+", left.Children[0].Text)
}

func TestParseTypeOperators(t *testing.T) {
	tree, err := Parse("Observation.value is Quantity")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindTypeOp, root.Kind)
	assert.Equal(t, "is", root.Text)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Quantity", root.Children[1].Text)
}

func TestParseDivModKeywords(t *testing.T) {
	tree, err := Parse("7 div 2")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindOperator, root.Kind)
	assert.Equal(t, "div", root.Text)
}

func TestParseUnaryMinus(t *testing.T) {
	tree, err := Parse("-5")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindUnary, root.Kind)
	assert.Equal(t, "-", root.Text)
}

func TestParseVariable(t *testing.T) {
	tree, err := Parse("$this.family")
	require.NoError(t, err)

	root := unwrapRoot(t, tree)
	require.Equal(t, KindInvocation, root.Kind)
	base := root.Children[0]
	require.Equal(t, KindVariable, base.Kind)
	assert.Equal(t, "this", base.Text)
}

func TestParseMultiArgFunction(t *testing.T) {
	tree, err := Parse("Patient.name.family.substring(0, 3)")
	require.NoError(t, err)

	fn := unwrapRoot(t, tree).Children[1]
	require.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, "substring", fn.Text)
	assert.Len(t, fn.Children, 2)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"blank input", "   "},
		{"unterminated string", "'abc"},
		{"unbalanced paren", "(1 + 2"},
		{"trailing operator", "a +"},
		{"dangling dot", "Patient."},
		{"trailing garbage", "a b"},
		{"bare keyword", "and"},
		{"lone at sign", "@"},
		{"bad escape", `'a\q'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("Patient.name..family")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 13, perr.Pos)
}
