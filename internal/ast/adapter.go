package ast

import (
	"strings"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// Convert builds the canonical AST from a raw parse tree. The registry
// supplies cardinality and polymorphic-variant metadata, which is attached
// to path steps here so no later stage consults the registry again.
func Convert(tree *parser.Tree, reg *schema.Registry) (Node, error) {
	if tree == nil {
		return nil, adapterErrorf("nil", "", "parse tree is nil")
	}
	c := &converter{reg: reg}
	node, _, err := c.node(tree, "")
	if err != nil {
		return nil, err
	}
	return node, nil
}

type converter struct {
	reg *schema.Registry
}

// unwrap collapses wrapper nodes (expression, term, paren) that carry no
// semantic content of their own.
func (c *converter) unwrap(t *parser.Tree) (*parser.Tree, error) {
	for t.Kind == parser.KindExpression || t.Kind == parser.KindTerm || t.Kind == parser.KindParen {
		if len(t.Children) != 1 {
			return nil, adapterErrorf(string(t.Kind), "", "wrapper node has %d children, want 1", len(t.Children))
		}
		t = t.Children[0]
	}
	return t, nil
}

// node converts one parse tree node. scope is the resource or element type
// the node's bare identifiers resolve against; the returned string is the
// element type the converted node yields, or "" when unknown.
func (c *converter) node(t *parser.Tree, scope string) (Node, string, error) {
	t, err := c.unwrap(t)
	if err != nil {
		return nil, "", err
	}

	switch t.Kind {
	case parser.KindLiteral:
		return c.literal(t)

	case parser.KindIdentifier:
		if scope == "" && c.reg.HasType(t.Text) {
			step := &PathStep{Name: t.Text, Resource: true, ElementType: t.Text, Cardinality: schema.CardinalityScalar}
			return step, t.Text, nil
		}
		step := c.step(nil, scope, t.Text)
		return step, step.ElementType, nil

	case parser.KindVariable:
		return &VariableRef{Name: t.Text}, scope, nil

	case parser.KindInvocation:
		if len(t.Children) != 2 {
			return nil, "", adapterErrorf(string(t.Kind), "", "invocation has %d children, want 2", len(t.Children))
		}
		base, baseType, err := c.node(t.Children[0], scope)
		if err != nil {
			return nil, "", err
		}
		return c.member(t.Children[1], base, baseType)

	case parser.KindFunction:
		return c.function(t, nil, scope)

	case parser.KindOperator:
		return c.operator(t, scope)

	case parser.KindUnary:
		if len(t.Children) != 1 {
			return nil, "", adapterErrorf(string(t.Kind), "", "unary node has %d children, want 1", len(t.Children))
		}
		operand, _, err := c.node(t.Children[0], scope)
		if err != nil {
			return nil, "", err
		}
		return &UnaryOp{Op: Operator(t.Text), Operand: operand}, "decimal", nil

	case parser.KindTypeOp:
		if len(t.Children) != 2 {
			return nil, "", adapterErrorf(string(t.Kind), "", "type operator has %d children, want 2", len(t.Children))
		}
		base, _, err := c.node(t.Children[0], scope)
		if err != nil {
			return nil, "", err
		}
		typeName := t.Children[1].Text
		op := TypeOpKind(t.Text)
		result := typeName
		if op == TypeOpIs {
			result = "boolean"
		}
		return &TypeOperation{Op: op, Base: base, TypeName: typeName}, result, nil

	default:
		return nil, "", adapterErrorf(string(t.Kind), "", "unsupported parse tree node")
	}
}

func (c *converter) literal(t *parser.Tree) (Node, string, error) {
	switch t.Literal {
	case parser.LiteralString:
		return &Literal{Kind: LiteralString, Value: t.Text}, "string", nil
	case parser.LiteralInteger:
		return &Literal{Kind: LiteralInteger, Value: t.Text}, "integer", nil
	case parser.LiteralDecimal:
		return &Literal{Kind: LiteralDecimal, Value: t.Text}, "decimal", nil
	case parser.LiteralBoolean:
		return &Literal{Kind: LiteralBoolean, Value: t.Text}, "boolean", nil
	case parser.LiteralDate:
		return &Literal{Kind: LiteralDate, Value: t.Text, Precision: precisionOf(t.Text)}, "date", nil
	case parser.LiteralDateTime:
		return &Literal{Kind: LiteralDateTime, Value: t.Text, Precision: precisionOf(t.Text)}, "dateTime", nil
	case parser.LiteralTime:
		return &Literal{Kind: LiteralTime, Value: t.Text}, "time", nil
	case parser.LiteralNull:
		return &Literal{Kind: LiteralEmpty}, "", nil
	}
	return nil, "", adapterErrorf(string(t.Kind), "", "unknown literal kind %q", t.Literal)
}

// member converts the node after a dot, applied to an already-converted base.
func (c *converter) member(t *parser.Tree, base Node, baseType string) (Node, string, error) {
	t, err := c.unwrap(t)
	if err != nil {
		return nil, "", err
	}
	switch t.Kind {
	case parser.KindIdentifier:
		step := c.step(base, baseType, t.Text)
		return step, step.ElementType, nil
	case parser.KindFunction:
		return c.function(t, base, baseType)
	default:
		return nil, "", adapterErrorf(string(t.Kind), "member access", "expected identifier or function")
	}
}

// step builds a PathStep with registry metadata attached. Unknown base types
// and unknown properties yield CardinalityUnknown; whether that is fatal is
// the translator's call.
func (c *converter) step(base Node, baseType, name string) *PathStep {
	step := &PathStep{Base: base, Name: name, Cardinality: schema.CardinalityUnknown}
	if baseType == "" {
		return step
	}
	prop, ok := c.reg.Lookup(baseType, name)
	if !ok {
		return step
	}
	step.ElementType = prop.Type
	step.Variants = prop.Variants
	if prop.Array {
		step.Cardinality = schema.CardinalityArray
	} else {
		step.Cardinality = schema.CardinalityScalar
	}
	return step
}

// predicateFunctions evaluate their first argument against each element of
// the base collection rather than in the enclosing scope.
var predicateFunctions = map[string]bool{
	"where": true, "exists": true, "all": true,
}

func (c *converter) function(t *parser.Tree, base Node, baseType string) (Node, string, error) {
	name, argTrees, err := c.functionName(t)
	if err != nil {
		return nil, "", err
	}

	// Call forms of the type operators become TypeOperation nodes when well
	// formed. Malformed arities stay FunctionCall so translation can reject
	// them with an argument-count error.
	if op, ok := typeOpNames[name]; ok && len(argTrees) == 1 {
		if typeName, ok := c.typeArgument(argTrees[0]); ok {
			result := typeName
			if op == TypeOpIs {
				result = "boolean"
			}
			return &TypeOperation{Op: op, Base: base, TypeName: typeName}, result, nil
		}
	}

	argScope := baseType
	if !predicateFunctions[name] {
		argScope = ""
	}
	args := make([]Node, 0, len(argTrees))
	for _, at := range argTrees {
		arg, _, err := c.node(at, argScope)
		if err != nil {
			return nil, "", err
		}
		args = append(args, arg)
	}
	call := &FunctionCall{Base: base, Name: name, Args: args}
	return call, functionResultType(name, baseType), nil
}

var typeOpNames = map[string]TypeOpKind{
	"is": TypeOpIs, "as": TypeOpAs, "ofType": TypeOpOfType,
}

// functionName resolves the callee name. When the parse tree left the display
// text empty (keyword-named functions), the name is rebuilt from the leading
// child path components.
func (c *converter) functionName(t *parser.Tree) (string, []*parser.Tree, error) {
	if t.Text != "" {
		return t.Text, t.Children, nil
	}
	if len(t.Children) == 0 {
		return "", nil, adapterErrorf(string(t.Kind), "function call", "function has no name")
	}
	parts, err := c.nameParts(t.Children[0])
	if err != nil {
		return "", nil, err
	}
	return strings.Join(parts, "."), t.Children[1:], nil
}

func (c *converter) nameParts(t *parser.Tree) ([]string, error) {
	t, err := c.unwrap(t)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case parser.KindIdentifier:
		return []string{t.Text}, nil
	case parser.KindInvocation:
		if len(t.Children) != 2 {
			return nil, adapterErrorf(string(t.Kind), "function name", "invocation has %d children, want 2", len(t.Children))
		}
		left, err := c.nameParts(t.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := c.nameParts(t.Children[1])
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	default:
		return nil, adapterErrorf(string(t.Kind), "function name", "expected identifier path")
	}
}

// typeArgument extracts a bare type name from a type operator's argument.
func (c *converter) typeArgument(t *parser.Tree) (string, bool) {
	t, err := c.unwrap(t)
	if err != nil {
		return "", false
	}
	if t.Kind == parser.KindIdentifier {
		return t.Text, true
	}
	return "", false
}

func (c *converter) operator(t *parser.Tree, scope string) (Node, string, error) {
	if len(t.Children) != 2 {
		return nil, "", adapterErrorf(string(t.Kind), "", "operator has %d children, want 2", len(t.Children))
	}
	lhs, _, err := c.node(t.Children[0], scope)
	if err != nil {
		return nil, "", err
	}
	rhs, _, err := c.node(t.Children[1], scope)
	if err != nil {
		return nil, "", err
	}
	op := Operator(t.Text)
	result := "boolean"
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpDiv, OpMod:
		result = "decimal"
	}
	return &BinaryOp{Op: op, LHS: lhs, RHS: rhs}, result, nil
}

// functionResultType tracks the element type through a call so subsequent
// path steps still resolve against the registry.
func functionResultType(name, baseType string) string {
	switch name {
	case "where", "distinct", "first", "last", "tail", "skip", "take", "single":
		return baseType
	case "count", "length":
		return "integer"
	case "exists", "empty", "not", "all", "startsWith", "endsWith", "contains", "matches":
		return "boolean"
	case "lower", "upper", "substring", "replace", "toString":
		return "string"
	case "abs", "ceiling", "floor", "round", "sqrt", "truncate":
		return "decimal"
	}
	return ""
}

// precisionOf derives temporal precision from the literal text, ignoring any
// timezone suffix.
func precisionOf(text string) Precision {
	if i := strings.IndexAny(text, "Z+"); i >= 0 {
		text = text[:i]
	}
	// A '-' after the time designator is a timezone offset, not a separator.
	if ti := strings.Index(text, "T"); ti >= 0 {
		if mi := strings.Index(text[ti:], "-"); mi >= 0 {
			text = text[:ti+mi]
		}
	}
	switch {
	case len(text) <= 4:
		return PrecisionYear
	case len(text) <= 7:
		return PrecisionMonth
	case len(text) <= 10:
		return PrecisionDay
	case len(text) <= 13:
		return PrecisionHour
	case len(text) <= 16:
		return PrecisionMinute
	default:
		return PrecisionSecond
	}
}
