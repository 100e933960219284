package translator

import (
	"strings"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

func (t *translator) typeOperation(n *ast.TypeOperation, focus *operand) (operand, error) {
	stagesBefore := len(t.ctx.stages)
	base, err := t.visit(n.Base, focus, false)
	if err != nil {
		return operand{}, err
	}
	if base.computed != "" {
		return operand{}, errorf(ErrCodeUnsupportedConstruct,
			"type operation %q on a literal value", n.Op)
	}

	// Choice-typed property: resolve by variant rather than runtime probing.
	if last, ok := lastSeg(base); ok && last.polymorphic() {
		return t.variantTypeOp(n, base, stagesBefore)
	}

	kind, primitive := primitiveJSONKind(n.TypeName)
	if !primitive {
		return operand{}, errorf(ErrCodeTypeFilter,
			"cannot test type %q: not a choice property and not a primitive type", n.TypeName)
	}
	d := t.ctx.Dialect

	switch n.Op {
	case ast.TypeOpIs:
		if err := t.flatten(&base, false); err != nil {
			return operand{}, err
		}
		value, err := t.renderJSON(base)
		if err != nil {
			return operand{}, err
		}
		f := t.ctx.promote(Fragment{
			Kind:           FragmentProject,
			Source:         base.src,
			Joins:          base.joins,
			PerElement:     base.perElement,
			Value:          d.KindCheck(value, kind),
			RequiresUnnest: len(t.ctx.stages) > stagesBefore,
			Dependencies:   base.frags,
		})
		return fromFragment(f, kindBool, schema.CardinalityScalar, "boolean"), nil

	case ast.TypeOpOfType, ast.TypeOpAs:
		if err := t.flatten(&base, true); err != nil {
			return operand{}, err
		}
		value, err := t.renderJSON(base)
		if err != nil {
			return operand{}, err
		}
		check := d.KindCheck(value, kind)
		if base.perElement {
			f := t.ctx.promote(Fragment{
				Kind:           FragmentFilter,
				Source:         base.src,
				Joins:          base.joins,
				PerElement:     true,
				Value:          value,
				Predicate:      check,
				DropNull:       len(base.pending) > 0,
				RequiresUnnest: len(t.ctx.stages) > stagesBefore,
				Dependencies:   base.frags,
			})
			return fromFragment(f, kindJSON, schema.CardinalityArray, n.TypeName), nil
		}
		f := t.ctx.promote(Fragment{
			Kind:         FragmentProject,
			Source:       base.src,
			Joins:        base.joins,
			Value:        "CASE WHEN " + check + " THEN " + value + " ELSE NULL END",
			Dependencies: base.frags,
		})
		return fromFragment(f, kindJSON, schema.CardinalityScalar, n.TypeName), nil
	}
	return operand{}, errorf(ErrCodeUnsupportedConstruct, "unknown type operator %q", n.Op)
}

// variantTypeOp handles is/as/ofType against a choice-typed property: the
// variants whose declared type matches are resolved in declaration order,
// first non-null wins.
func (t *translator) variantTypeOp(n *ast.TypeOperation, base operand, stagesBefore int) (operand, error) {
	// Flatten any arrays leading up to the choice property; the property
	// itself stays pending.
	last := base.pending[len(base.pending)-1]
	if last.card == schema.CardinalityArray {
		return operand{}, errorf(ErrCodeUnsupportedConstruct,
			"type operation on array-valued choice property %q", last.name)
	}
	if err := t.flatten(&base, false); err != nil {
		return operand{}, err
	}

	prefix := base
	prefix.pending = base.pending[:len(base.pending)-1]
	baseExpr, err := t.renderJSON(prefix)
	if err != nil {
		return operand{}, err
	}

	d := t.ctx.Dialect
	var matches []string
	for _, v := range last.variants {
		if strings.EqualFold(v.Type, n.TypeName) {
			matches = append(matches, d.ExtractField(baseExpr, v.Property))
		}
	}
	resolved := "NULL"
	switch len(matches) {
	case 0:
	case 1:
		resolved = matches[0]
	default:
		resolved = d.Coalesce(matches...)
	}

	f := Fragment{
		Kind:           FragmentProject,
		Source:         base.src,
		Joins:          base.joins,
		PerElement:     base.perElement,
		RequiresUnnest: len(t.ctx.stages) > stagesBefore,
		Dependencies:   base.frags,
	}
	kind := kindJSON
	elemType := n.TypeName
	switch n.Op {
	case ast.TypeOpIs:
		if resolved == "NULL" {
			f.Value = d.BooleanLiteral(false)
		} else {
			f.Value = "(" + resolved + ") IS NOT NULL"
		}
		kind = kindBool
		elemType = "boolean"
	default: // as, ofType
		f.Value = resolved
	}
	promoted := t.ctx.promote(f)
	return fromFragment(promoted, kind, schema.CardinalityScalar, elemType), nil
}

func lastSeg(o operand) (pathSeg, bool) {
	if len(o.pending) == 0 {
		return pathSeg{}, false
	}
	return o.pending[len(o.pending)-1], true
}

// primitiveJSONKind maps a primitive type name to the JSON kind it is stored
// as. Complex types return false: they cannot be distinguished in stored
// JSON without choice-property metadata.
func primitiveJSONKind(typeName string) (dialect.JSONKind, bool) {
	switch strings.ToLower(typeName) {
	case "string", "code", "uri", "url", "canonical", "id", "oid", "uuid",
		"markdown", "base64binary", "date", "datetime", "instant", "time":
		return dialect.KindString, true
	case "integer", "positiveint", "unsignedint", "decimal":
		return dialect.KindNumber, true
	case "boolean":
		return dialect.KindBool, true
	}
	return dialect.KindNull, false
}

func isPrimitiveType(typeName string) bool {
	_, ok := primitiveJSONKind(typeName)
	return ok
}
