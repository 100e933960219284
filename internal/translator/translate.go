package translator

import (
	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

type translator struct {
	ctx *Context
}

// Translate compiles a canonical AST into an ordered fragment list plus the
// final projection. The context must be fresh; it accumulates all state for
// exactly one translation.
func Translate(node ast.Node, ctx *Context) (*Result, error) {
	if node == nil {
		return nil, errorf(ErrCodeUnsupportedConstruct, "nil AST")
	}
	if ctx.Table == "" {
		ctx.Table = DefaultTable
	}
	t := &translator{ctx: ctx}

	o, err := t.visit(node, nil, false)
	if err != nil {
		return nil, err
	}
	final, err := t.finalize(o)
	if err != nil {
		return nil, err
	}
	return &Result{
		Resource:  ctx.resource,
		Table:     ctx.Table,
		Root:      ctx.rootName,
		Stages:    ctx.stages,
		Fragments: ctx.fragments,
		Final:     final,
	}, nil
}

// visit dispatches on the node kind. focus is the element operand bare
// identifiers resolve against inside predicates; inPred guards constructs
// that cannot nest inside a predicate expression.
func (t *translator) visit(n ast.Node, focus *operand, inPred bool) (operand, error) {
	switch v := n.(type) {
	case *ast.Literal:
		return t.literal(v)

	case *ast.VariableRef:
		if v.Name == "this" && focus != nil {
			return cloneOperand(*focus), nil
		}
		return operand{}, errorf(ErrCodeUnknownVariable, "variable $%s is not defined here", v.Name)

	case *ast.PathStep:
		return t.pathStep(v, focus, inPred)

	case *ast.FunctionCall:
		if inPred {
			return operand{}, errorf(ErrCodeUnsupportedConstruct,
				"function %q inside a predicate is not supported", v.Name)
		}
		return t.function(v, focus)

	case *ast.TypeOperation:
		if inPred {
			return operand{}, errorf(ErrCodeUnsupportedConstruct,
				"type operation %q inside a predicate is not supported", v.Op)
		}
		return t.typeOperation(v, focus)

	case *ast.BinaryOp:
		return t.binary(v, focus, inPred)

	case *ast.UnaryOp:
		return t.unary(v, focus, inPred)
	}
	return operand{}, errorf(ErrCodeUnsupportedConstruct, "unhandled AST node %T", n)
}

func (t *translator) literal(v *ast.Literal) (operand, error) {
	d := t.ctx.Dialect
	switch v.Kind {
	case ast.LiteralString:
		return operand{computed: d.QuoteString(v.Value), kind: kindText,
			card: schema.CardinalityScalar, elemType: "string"}, nil
	case ast.LiteralInteger:
		return operand{computed: v.Value, kind: kindNumber,
			card: schema.CardinalityScalar, elemType: "integer"}, nil
	case ast.LiteralDecimal:
		return operand{computed: v.Value, kind: kindNumber,
			card: schema.CardinalityScalar, elemType: "decimal"}, nil
	case ast.LiteralBoolean:
		b := v.Value == "true"
		return operand{computed: d.BooleanLiteral(b), kind: kindBool, boolLit: &b,
			card: schema.CardinalityScalar, elemType: "boolean"}, nil
	case ast.LiteralDate:
		return operand{computed: d.QuoteString(v.Value), kind: kindText,
			precision: v.Precision, card: schema.CardinalityScalar, elemType: "date"}, nil
	case ast.LiteralDateTime:
		return operand{computed: d.QuoteString(v.Value), kind: kindText,
			precision: v.Precision, card: schema.CardinalityScalar, elemType: "dateTime"}, nil
	case ast.LiteralTime:
		return operand{computed: d.QuoteString(v.Value), kind: kindText,
			card: schema.CardinalityScalar, elemType: "time"}, nil
	case ast.LiteralEmpty:
		return operand{computed: "NULL", kind: kindJSON, card: schema.CardinalityScalar}, nil
	}
	return operand{}, errorf(ErrCodeUnsupportedConstruct, "unknown literal kind %q", v.Kind)
}

func (t *translator) pathStep(v *ast.PathStep, focus *operand, inPred bool) (operand, error) {
	if v.Resource {
		name, err := t.ctx.root(v.Name)
		if err != nil {
			return operand{}, err
		}
		return operand{
			src:      name,
			base:     name + ".value",
			kind:     kindJSON,
			card:     schema.CardinalityScalar,
			elemType: v.Name,
		}, nil
	}

	var o operand
	if v.Base == nil {
		if focus == nil {
			return operand{}, errorf(ErrCodeUnsupportedConstruct,
				"path %q has no resource context: expressions begin with a resource type", v.Name)
		}
		o = cloneOperand(*focus)
	} else {
		var err error
		o, err = t.visit(v.Base, focus, inPred)
		if err != nil {
			return operand{}, err
		}
	}
	if o.computed != "" {
		return operand{}, errorf(ErrCodeUnsupportedConstruct,
			"property %q accessed on a literal value", v.Name)
	}

	seg := pathSeg{name: v.Name, card: v.Cardinality, variants: v.Variants, elemType: v.ElementType}
	o.pending = append(clonePending(o.pending), seg)
	o.kind = kindJSON
	o.elemType = seg.elemType
	o.precision = ast.PrecisionNone
	o.boolLit = nil
	switch {
	case seg.card == schema.CardinalityArray || o.card == schema.CardinalityArray:
		o.card = schema.CardinalityArray
	case seg.card == schema.CardinalityUnknown:
		o.card = schema.CardinalityUnknown
	}
	return o, nil
}

func (t *translator) unary(n *ast.UnaryOp, focus *operand, inPred bool) (operand, error) {
	o, err := t.visit(n.Operand, focus, inPred)
	if err != nil {
		return operand{}, err
	}
	num, err := t.renderNumeric(o)
	if err != nil {
		return operand{}, err
	}
	out, err := mergeSources(o, operand{})
	if err != nil {
		return operand{}, err
	}
	if n.Op == ast.OpSubtract {
		out.computed = "(-" + num + ")"
	} else {
		out.computed = num
	}
	out.kind = kindNumber
	out.elemType = "decimal"
	return out, nil
}

// predicate renders an expression as a boolean condition over one element of
// a collection.
func (t *translator) predicate(n ast.Node, elem operand) (string, error) {
	o, err := t.visit(n, &elem, true)
	if err != nil {
		return "", err
	}
	return t.renderBool(o)
}

// elementOperand is the focus for predicates: the single element the source
// rows expose.
func elementOperand(base operand) operand {
	e := cloneOperand(base)
	e.card = schema.CardinalityScalar
	return e
}

func (t *translator) finalize(o operand) (Final, error) {
	if o.computed != "" {
		return Final{Source: o.src, Joins: o.joins, Value: o.computed, PerElement: o.perElement}, nil
	}
	if err := t.flatten(&o, false); err != nil {
		return Final{}, err
	}
	var value string
	var err error
	if o.elemType == "" || isPrimitiveType(o.elemType) {
		value, err = t.renderText(o)
	} else {
		value, err = t.renderJSON(o)
	}
	if err != nil {
		return Final{}, err
	}
	return Final{
		Source:     o.src,
		Joins:      o.joins,
		Value:      value,
		PerElement: o.perElement,
		DropNull:   o.perElement && len(o.pending) > 0,
	}, nil
}

func cloneOperand(o operand) operand {
	o.pending = clonePending(o.pending)
	o.joins = append([]string{}, o.joins...)
	o.frags = append([]int{}, o.frags...)
	return o
}

func clonePending(segs []pathSeg) []pathSeg {
	return append([]pathSeg{}, segs...)
}

// mergeSources combines the row sources of two operands for a folded
// expression. Per-record sources join on the identity column; at most one
// element stream may contribute.
func mergeSources(a, b operand) (operand, error) {
	type src struct {
		name string
		elem bool
	}
	var all []src
	add := func(name string, elem bool) {
		if name == "" {
			return
		}
		for i := range all {
			if all[i].name == name {
				all[i].elem = all[i].elem || elem
				return
			}
		}
		all = append(all, src{name, elem})
	}
	add(a.src, a.perElement)
	for _, j := range a.joins {
		add(j, false)
	}
	add(b.src, b.perElement)
	for _, j := range b.joins {
		add(j, false)
	}

	out := operand{card: schema.CardinalityScalar}
	out.frags = dedupeInts(append(append([]int{}, a.frags...), b.frags...))

	elemIdx := -1
	for i, s := range all {
		if s.elem {
			if elemIdx >= 0 {
				return operand{}, errorf(ErrCodeCollectionOperand,
					"cannot combine two element streams in one expression")
			}
			elemIdx = i
		}
	}
	if len(all) == 0 {
		return out, nil
	}
	first := 0
	if elemIdx >= 0 {
		first = elemIdx
		out.perElement = true
	}
	out.src = all[first].name
	for i, s := range all {
		if i != first {
			out.joins = append(out.joins, s.name)
		}
	}
	return out, nil
}

func dedupeInts(xs []int) []int {
	seen := map[int]bool{}
	out := xs[:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
