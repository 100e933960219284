package translator

import (
	"strconv"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// functionArity maps each supported function to its [min, max] argument count.
// Validated before any dialect call.
var functionArity = map[string][2]int{
	"where":    {1, 1},
	"exists":   {0, 1},
	"all":      {1, 1},
	"empty":    {0, 0},
	"count":    {0, 0},
	"not":      {0, 0},
	"first":    {0, 0},
	"last":     {0, 0},
	"skip":     {1, 1},
	"take":     {1, 1},
	"distinct": {0, 0},

	"lower":      {0, 0},
	"upper":      {0, 0},
	"length":     {0, 0},
	"substring":  {1, 2},
	"startsWith": {1, 1},
	"endsWith":   {1, 1},
	"contains":   {1, 1},
	"matches":    {1, 1},

	"abs":      {0, 0},
	"ceiling":  {0, 0},
	"floor":    {0, 0},
	"round":    {0, 0},
	"sqrt":     {0, 0},
	"truncate": {0, 0},

	// Well-formed call forms become TypeOperation nodes at adapter time;
	// reaching here means the arity was wrong.
	"is":     {1, 1},
	"as":     {1, 1},
	"ofType": {1, 1},
}

var mathFunctions = map[string]bool{
	"abs": true, "ceiling": true, "floor": true,
	"round": true, "sqrt": true, "truncate": true,
}

func (t *translator) function(call *ast.FunctionCall, focus *operand) (operand, error) {
	arity, known := functionArity[call.Name]
	if !known {
		return operand{}, errorf(ErrCodeUnknownFunction, "unknown function %q", call.Name)
	}
	if len(call.Args) < arity[0] || len(call.Args) > arity[1] {
		return operand{}, errorf(ErrCodeWrongArgumentCount,
			"%s() takes %d to %d arguments, got %d", call.Name, arity[0], arity[1], len(call.Args))
	}
	if call.Base == nil {
		return operand{}, errorf(ErrCodeUnsupportedConstruct,
			"function %q called without a subject", call.Name)
	}

	stagesBefore := len(t.ctx.stages)
	base, err := t.visit(call.Base, focus, false)
	if err != nil {
		return operand{}, err
	}

	switch call.Name {
	case "where":
		return t.whereFn(call, base, stagesBefore)
	case "exists", "empty", "count", "all":
		return t.aggregateFn(call, base, stagesBefore)
	case "not":
		return t.notFn(base, stagesBefore)
	case "first", "last", "skip", "take":
		return t.ordFn(call, base, stagesBefore)
	case "distinct":
		return t.distinctFn(base, stagesBefore)
	case "lower", "upper", "length", "substring", "startsWith", "endsWith", "contains", "matches":
		return t.stringFn(call, base, stagesBefore)
	}
	if mathFunctions[call.Name] {
		return t.mathFn(call.Name, base, stagesBefore)
	}
	// is/as/ofType with a valid arity but an argument that is not a type name.
	return operand{}, errorf(ErrCodeArgument, "%s() requires a type name argument", call.Name)
}

func (t *translator) whereFn(call *ast.FunctionCall, base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, true); err != nil {
		return operand{}, err
	}
	if base.src == "" {
		return operand{}, errorf(ErrCodeUnsupportedConstruct, "where() over a literal value")
	}
	pred, err := t.predicate(call.Args[0], elementOperand(base))
	if err != nil {
		return operand{}, err
	}
	value, err := t.renderJSON(base)
	if err != nil {
		return operand{}, err
	}
	f := t.ctx.promote(Fragment{
		Kind:           FragmentFilter,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		Value:          value,
		Predicate:      pred,
		DropNull:       len(base.pending) > 0,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	return fromFragment(f, kindJSON, schema.CardinalityArray, base.elemType), nil
}

// aggregateFn covers exists, empty, count, and all. A flattened input becomes
// a per-record aggregate over element rows, LEFT-JOINed to the root
// population so empty collections still yield a row. A scalar input keeps
// the canonical three-way CASE: NULL means empty, an array means its length
// semantics, anything else is a singleton.
func (t *translator) aggregateFn(call *ast.FunctionCall, base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, false); err != nil {
		return operand{}, err
	}
	d := t.ctx.Dialect

	if base.perElement {
		value, err := t.renderJSON(base)
		if err != nil {
			return operand{}, err
		}
		var pred string
		if len(call.Args) == 1 {
			pred, err = t.predicate(call.Args[0], elementOperand(base))
			if err != nil {
				return operand{}, err
			}
		}
		var expr string
		counted := "COUNT(" + value + ")"
		if pred != "" {
			counted = "COUNT(CASE WHEN " + pred + " THEN 1 END)"
		}
		kind := kindBool
		elemType := "boolean"
		switch call.Name {
		case "count":
			expr = counted
			kind = kindNumber
			elemType = "integer"
		case "exists":
			expr = counted + " > 0"
		case "empty":
			expr = counted + " = 0"
		case "all":
			expr = "COUNT(CASE WHEN " + d.Not(pred) + " THEN 1 END) = 0"
		}
		f := t.ctx.promote(Fragment{
			Kind:           FragmentAggregate,
			Source:         base.src,
			Joins:          base.joins,
			Value:          expr,
			IsAggregate:    true,
			RequiresUnnest: len(t.ctx.stages) > stagesBefore,
			Dependencies:   base.frags,
		})
		return fromFragment(f, kind, schema.CardinalityScalar, elemType), nil
	}

	value, err := t.renderJSON(base)
	if err != nil {
		return operand{}, err
	}
	var pred string
	if len(call.Args) == 1 {
		pred, err = t.predicate(call.Args[0], elementOperand(base))
		if err != nil {
			return operand{}, err
		}
	}
	isArray := d.KindCheck(value, dialect.KindArray)
	long := d.ArrayLength(value)
	truth := d.BooleanLiteral(true)
	falsity := d.BooleanLiteral(false)

	var expr string
	kind := kindBool
	elemType := "boolean"
	switch call.Name {
	case "count":
		expr = "CASE WHEN " + value + " IS NULL THEN 0 WHEN " + isArray + " THEN " + long + " ELSE 1 END"
		kind = kindNumber
		elemType = "integer"
	case "exists":
		if pred != "" {
			expr = "CASE WHEN " + value + " IS NULL THEN " + falsity +
				" WHEN " + pred + " THEN " + truth + " ELSE " + falsity + " END"
		} else {
			expr = "CASE WHEN " + value + " IS NULL THEN " + falsity +
				" WHEN " + isArray + " THEN " + long + " > 0 ELSE " + truth + " END"
		}
	case "empty":
		expr = "CASE WHEN " + value + " IS NULL THEN " + truth +
			" WHEN " + isArray + " THEN " + long + " = 0 ELSE " + falsity + " END"
	case "all":
		expr = "CASE WHEN " + value + " IS NULL THEN " + truth +
			" WHEN " + pred + " THEN " + truth + " ELSE " + falsity + " END"
	}
	f := t.ctx.promote(Fragment{
		Kind:           FragmentProject,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		Value:          expr,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	return fromFragment(f, kind, schema.CardinalityScalar, elemType), nil
}

func (t *translator) notFn(base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, false); err != nil {
		return operand{}, err
	}
	cond, err := t.renderBool(base)
	if err != nil {
		return operand{}, err
	}
	f := t.ctx.promote(Fragment{
		Kind:           FragmentProject,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		Value:          t.ctx.Dialect.Not(cond),
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	return fromFragment(f, kindBool, schema.CardinalityScalar, "boolean"), nil
}

func (t *translator) ordFn(call *ast.FunctionCall, base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, true); err != nil {
		return operand{}, err
	}
	n := 0
	if len(call.Args) == 1 {
		var err error
		n, err = intArgument(call.Name, call.Args[0])
		if err != nil {
			return operand{}, err
		}
	}
	value, err := t.renderJSON(base)
	if err != nil {
		return operand{}, err
	}

	if !base.perElement {
		// Singleton semantics: first/last are the identity, skip(>0) and
		// take(0) drop the value.
		if (call.Name == "skip" && n > 0) || (call.Name == "take" && n == 0) {
			value = "NULL"
		}
		f := t.ctx.promote(Fragment{
			Kind:         FragmentProject,
			Source:       base.src,
			Joins:        base.joins,
			Value:        value,
			Dependencies: base.frags,
		})
		return fromFragment(f, kindJSON, schema.CardinalityScalar, base.elemType), nil
	}

	f := t.ctx.promote(Fragment{
		Kind:           FragmentOrdSelect,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     true,
		Value:          value,
		DropNull:       len(base.pending) > 0,
		Ord:            &OrdSpec{Kind: call.Name, N: n},
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	card := schema.CardinalityArray
	if call.Name == "first" || call.Name == "last" {
		card = schema.CardinalityScalar
	}
	return fromFragment(f, kindJSON, card, base.elemType), nil
}

func (t *translator) distinctFn(base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, true); err != nil {
		return operand{}, err
	}
	value, err := t.renderJSON(base)
	if err != nil {
		return operand{}, err
	}
	kind := FragmentDistinct
	if !base.perElement {
		kind = FragmentProject // a singleton is trivially distinct
	}
	f := t.ctx.promote(Fragment{
		Kind:           kind,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		Value:          value,
		DropNull:       base.perElement && len(base.pending) > 0,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	return fromFragment(f, kindJSON, base.card, base.elemType), nil
}

func (t *translator) stringFn(call *ast.FunctionCall, base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, false); err != nil {
		return operand{}, err
	}
	d := t.ctx.Dialect
	txt, err := t.renderText(base)
	if err != nil {
		return operand{}, err
	}

	f := Fragment{
		Kind:           FragmentProject,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		DropNull:       base.perElement && len(base.pending) > 0,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	}
	kind := kindText
	elemType := "string"

	switch call.Name {
	case "lower":
		f.Value = "lower(" + txt + ")"
	case "upper":
		f.Value = "upper(" + txt + ")"
	case "length":
		f.Value = d.StringLength(txt)
		kind = kindNumber
		elemType = "integer"
	case "substring":
		start, err := t.textArg(call.Args[0], &f, renderModeNumeric)
		if err != nil {
			return operand{}, err
		}
		length := ""
		if len(call.Args) == 2 {
			length, err = t.textArg(call.Args[1], &f, renderModeNumeric)
			if err != nil {
				return operand{}, err
			}
		}
		// The expression language indexes from zero, SQL from one.
		f.Value = d.Substring(txt, "("+start+") + 1", length)
	case "startsWith":
		s, err := t.textArg(call.Args[0], &f, renderModeText)
		if err != nil {
			return operand{}, err
		}
		f.Value = d.Substring(txt, "1", d.StringLength(s)) + " = " + s
		kind = kindBool
		elemType = "boolean"
	case "endsWith":
		s, err := t.textArg(call.Args[0], &f, renderModeText)
		if err != nil {
			return operand{}, err
		}
		start := "(" + d.StringLength(txt) + " - " + d.StringLength(s) + " + 1)"
		f.Value = d.Substring(txt, start, "") + " = " + s
		kind = kindBool
		elemType = "boolean"
	case "contains":
		s, err := t.textArg(call.Args[0], &f, renderModeText)
		if err != nil {
			return operand{}, err
		}
		f.Value = d.StringContains(txt, s)
		kind = kindBool
		elemType = "boolean"
	case "matches":
		lit, ok := call.Args[0].(*ast.Literal)
		if !ok || lit.Kind != ast.LiteralString {
			return operand{}, errorf(ErrCodeArgument, "matches() requires a string literal pattern")
		}
		f.Value = d.RegexMatch(txt, lit.Value)
		kind = kindBool
		elemType = "boolean"
	}

	promoted := t.ctx.promote(f)
	return fromFragment(promoted, kind, base.card, elemType), nil
}

func (t *translator) mathFn(name string, base operand, stagesBefore int) (operand, error) {
	if err := t.flatten(&base, false); err != nil {
		return operand{}, err
	}
	num, err := t.renderNumeric(base)
	if err != nil {
		return operand{}, err
	}
	f := t.ctx.promote(Fragment{
		Kind:           FragmentProject,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		Value:          t.ctx.Dialect.MathFunction(name) + "(" + num + ")",
		DropNull:       base.perElement && len(base.pending) > 0,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	})
	return fromFragment(f, kindNumber, base.card, "decimal"), nil
}

type renderMode int

const (
	renderModeText renderMode = iota
	renderModeNumeric
)

// textArg renders a function argument and absorbs its row sources into the
// enclosing fragment.
func (t *translator) textArg(arg ast.Node, f *Fragment, mode renderMode) (string, error) {
	o, err := t.visit(arg, nil, false)
	if err != nil {
		return "", err
	}
	if o.perElement {
		return "", errorf(ErrCodeCollectionOperand, "collection-valued function argument")
	}
	if o.src != "" && o.src != f.Source {
		f.Joins = appendUnique(f.Joins, o.src)
	}
	for _, j := range o.joins {
		if j != f.Source {
			f.Joins = appendUnique(f.Joins, j)
		}
	}
	f.Dependencies = dedupeInts(append(f.Dependencies, o.frags...))
	if mode == renderModeNumeric {
		return t.renderNumeric(o)
	}
	return t.renderText(o)
}

func intArgument(fn string, arg ast.Node) (int, error) {
	lit, ok := arg.(*ast.Literal)
	if !ok || lit.Kind != ast.LiteralInteger {
		return 0, errorf(ErrCodeArgument, "%s() requires an integer literal argument", fn)
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil || n < 0 {
		return 0, errorf(ErrCodeArgument, "%s() requires a non-negative integer, got %q", fn, lit.Value)
	}
	return n, nil
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
