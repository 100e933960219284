package translator

import (
	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// valueKind is the SQL-level type of an operand's current value expression.
type valueKind int

const (
	kindJSON valueKind = iota
	kindText
	kindNumber
	kindBool
)

// pathSeg is one property step not yet rendered into SQL.
type pathSeg struct {
	name     string
	card     schema.Cardinality
	variants []schema.Variant
	elemType string
}

func (s pathSeg) polymorphic() bool { return len(s.variants) > 0 }

// operand is the translator-internal value model. It either references rows
// of a CTE (src + base column + pending path steps) or carries a fully
// rendered expression (computed).
type operand struct {
	src        string   // CTE providing rows; "" for pure literals
	perElement bool     // src rows are collection elements (id, value, ord)
	joins      []string // extra per-record CTEs joined on id
	frags      []int    // fragment ids this operand depends on

	base     string    // qualified value expression over src rows
	pending  []pathSeg // property steps not yet applied to base
	computed string    // non-empty: the operand is a rendered expression

	kind      valueKind
	card      schema.Cardinality
	elemType  string
	precision ast.Precision // for temporal literals
	boolLit   *bool         // set for boolean literals
}

func (o *operand) addFrag(id int) {
	o.frags = append(o.frags, id)
}

// fromFragment builds the operand representing a promoted fragment's output.
func fromFragment(f Fragment, kind valueKind, card schema.Cardinality, elemType string) operand {
	o := operand{
		src:        f.Name,
		perElement: f.PerElement,
		base:       f.Name + ".value",
		kind:       kind,
		card:       card,
		elemType:   elemType,
		frags:      append([]int{}, f.Dependencies...),
	}
	o.addFrag(f.ID)
	return o
}

// hasArraySeg reports whether any pending step is array-valued.
func (o *operand) hasArraySeg() bool {
	for _, seg := range o.pending {
		if seg.card == schema.CardinalityArray {
			return true
		}
	}
	return false
}

// temporal reports whether the operand carries a date or dateTime value.
func (o *operand) temporal() bool {
	if o.boolLit != nil {
		return false
	}
	if o.precision != ast.PrecisionNone {
		return true
	}
	switch o.elemType {
	case "date", "dateTime", "instant":
		return true
	}
	return false
}

// effectivePrecision is the statically known temporal precision: literals
// carry their own, stored values are assumed fully precise per their type.
func (o *operand) effectivePrecision() ast.Precision {
	if o.precision != ast.PrecisionNone {
		return o.precision
	}
	switch o.elemType {
	case "date":
		return ast.PrecisionDay
	case "dateTime", "instant":
		return ast.PrecisionSecond
	}
	return ast.PrecisionNone
}

func (o *operand) numericType() bool {
	if o.kind == kindNumber {
		return true
	}
	switch o.elemType {
	case "integer", "decimal", "positiveInt", "unsignedInt":
		return true
	}
	return false
}

func (o *operand) textType() bool {
	if o.kind == kindText && o.precision == ast.PrecisionNone {
		return true
	}
	switch o.elemType {
	case "string", "code", "uri", "url", "canonical", "id", "markdown":
		return true
	}
	return false
}

// flatten materializes the operand's pending array steps into stages so that
// src exposes one row per collection element. Trailing scalar steps after the
// last array remain pending.
//
// strict is set by operations that need one row per element (where, first,
// distinct, ...): a step with unknown cardinality is then fatal, because
// whether to flatten cannot be decided without schema metadata. Lenient
// callers (aggregates, the final projection) navigate unknown steps as
// scalars and let the emitted CASE probe the runtime type.
func (t *translator) flatten(o *operand, strict bool) error {
	if o.computed != "" || len(o.pending) == 0 {
		return nil
	}
	if strict {
		for _, seg := range o.pending {
			if seg.card == schema.CardinalityUnknown {
				return errorf(ErrCodeMissingSchemaMetadata,
					"cannot flatten %q: no cardinality metadata in the schema registry", seg.name)
			}
		}
	}

	lastArray := -1
	for i, seg := range o.pending {
		if seg.card == schema.CardinalityArray {
			lastArray = i
		}
	}
	if lastArray < 0 {
		return nil
	}

	d := t.ctx.Dialect
	cur := o.base
	var run []string
	for i := 0; i <= lastArray; i++ {
		seg := o.pending[i]
		if seg.card == schema.CardinalityArray {
			var arr string
			if seg.polymorphic() {
				arr = t.coalesceVariants(t.foldRun(cur, run), seg)
			} else {
				arr = d.Path(cur, append(run, seg.name))
			}
			name := t.ctx.addStage(o.src, d.ArrayNormalize(arr), o.perElement)
			o.src = name
			o.perElement = true
			cur = name + ".value"
			run = nil
			continue
		}
		if seg.polymorphic() {
			cur = t.coalesceVariants(t.foldRun(cur, run), seg)
			run = nil
			continue
		}
		run = append(run, seg.name)
	}
	o.base = cur
	o.pending = append([]pathSeg{}, o.pending[lastArray+1:]...)
	o.kind = kindJSON
	return nil
}

// foldRun applies accumulated plain property names to base as one path call.
func (t *translator) foldRun(base string, run []string) string {
	if len(run) == 0 {
		return base
	}
	return t.ctx.Dialect.Path(base, run)
}

// coalesceVariants renders polymorphic resolution: one candidate per typed
// variant, declaration order, first non-null wins.
func (t *translator) coalesceVariants(base string, seg pathSeg) string {
	d := t.ctx.Dialect
	exprs := make([]string, len(seg.variants))
	for i, v := range seg.variants {
		exprs[i] = d.ExtractField(base, v.Property)
	}
	if len(exprs) == 1 {
		return exprs[0]
	}
	return d.Coalesce(exprs...)
}

// renderJSON renders the operand as a JSON-typed scalar expression. Pending
// array steps are not allowed here; callers materialize first or reject.
func (t *translator) renderJSON(o operand) (string, error) {
	if o.computed != "" {
		return o.computed, nil
	}
	if o.hasArraySeg() {
		return "", errorf(ErrCodeCollectionOperand,
			"collection-valued path where a single value is required")
	}
	cur := o.base
	var run []string
	for _, seg := range o.pending {
		if seg.polymorphic() {
			cur = t.coalesceVariants(t.foldRun(cur, run), seg)
			run = nil
			continue
		}
		run = append(run, seg.name)
	}
	return t.foldRun(cur, run), nil
}

// renderText renders the operand as SQL text (JSON string values unquoted).
func (t *translator) renderText(o operand) (string, error) {
	if o.computed != "" {
		return o.computed, nil
	}
	if o.hasArraySeg() {
		return "", errorf(ErrCodeCollectionOperand,
			"collection-valued path where a single value is required")
	}
	d := t.ctx.Dialect

	// Fast path: a plain property run extracts text directly.
	plain := true
	for _, seg := range o.pending {
		if seg.polymorphic() {
			plain = false
			break
		}
	}
	if plain {
		if len(o.pending) == 0 && o.kind != kindJSON {
			return o.base, nil
		}
		names := make([]string, len(o.pending))
		for i, seg := range o.pending {
			names[i] = seg.name
		}
		return d.PathText(o.base, names), nil
	}

	expr, err := t.renderJSON(o)
	if err != nil {
		return "", err
	}
	return d.CastText(expr), nil
}

// renderNumeric renders the operand as a numeric expression, NULL when the
// underlying value is not a number.
func (t *translator) renderNumeric(o operand) (string, error) {
	if o.computed != "" {
		if o.kind == kindNumber {
			return o.computed, nil
		}
		return "", errorf(ErrCodeUnsupportedConstruct, "non-numeric operand in arithmetic")
	}
	if len(o.pending) == 0 && o.kind == kindNumber {
		return o.base, nil
	}
	expr, err := t.renderJSON(o)
	if err != nil {
		return "", err
	}
	return t.ctx.Dialect.TryCastNumeric(expr), nil
}

// renderBool renders the operand as a boolean condition.
func (t *translator) renderBool(o operand) (string, error) {
	if o.computed != "" {
		if o.kind == kindBool {
			return o.computed, nil
		}
		return "", errorf(ErrCodeUnsupportedConstruct, "non-boolean operand in condition")
	}
	if len(o.pending) == 0 && o.kind == kindBool {
		return o.base, nil
	}
	// A stored JSON boolean compares against the dialect's extracted form.
	text, err := t.renderText(o)
	if err != nil {
		return "", err
	}
	return text + " = " + t.ctx.Dialect.JSONBoolLiteral(true), nil
}
