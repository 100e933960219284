package translator

import (
	"strconv"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
)

func (t *translator) binary(n *ast.BinaryOp, focus *operand, inPred bool) (operand, error) {
	l, err := t.visit(n.LHS, focus, inPred)
	if err != nil {
		return operand{}, err
	}
	r, err := t.visit(n.RHS, focus, inPred)
	if err != nil {
		return operand{}, err
	}

	switch n.Op {
	case ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpImplies:
		return t.logical(n.Op, l, r)
	case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		return t.comparison(n.Op, l, r)
	case ast.OpAdd, ast.OpSubtract, ast.OpMultiply, ast.OpDivide, ast.OpDiv, ast.OpMod:
		return t.arithmetic(n.Op, l, r)
	}
	return operand{}, errorf(ErrCodeUnknownOperator, "unknown operator %q", n.Op)
}

func (t *translator) logical(op ast.Operator, l, r operand) (operand, error) {
	lb, err := t.renderBool(l)
	if err != nil {
		return operand{}, err
	}
	rb, err := t.renderBool(r)
	if err != nil {
		return operand{}, err
	}
	var expr string
	switch op {
	case ast.OpAnd:
		expr = "(" + lb + " AND " + rb + ")"
	case ast.OpOr:
		expr = "(" + lb + " OR " + rb + ")"
	case ast.OpXor:
		expr = "((" + lb + ") <> (" + rb + "))"
	case ast.OpImplies:
		expr = "(" + t.ctx.Dialect.Not(lb) + " OR " + rb + ")"
	}
	out, err := mergeSources(l, r)
	if err != nil {
		return operand{}, err
	}
	out.computed = expr
	out.kind = kindBool
	out.elemType = "boolean"
	return out, nil
}

func (t *translator) comparison(op ast.Operator, l, r operand) (operand, error) {
	sqlOp := string(op)

	var expr string
	switch {
	case l.temporal() || r.temporal():
		// Mixed-precision temporal comparison happens at the coarser shared
		// precision: a year-only literal against a full timestamp compares
		// year prefixes only. ISO-8601 text ordering matches temporal
		// ordering within one precision.
		lt, err := t.renderText(l)
		if err != nil {
			return operand{}, err
		}
		rt, err := t.renderText(r)
		if err != nil {
			return operand{}, err
		}
		lp, rp := l.effectivePrecision(), r.effectivePrecision()
		if lp != rp && lp != ast.PrecisionNone && rp != ast.PrecisionNone {
			d := t.ctx.Dialect
			width := strconv.Itoa(lp.Coarser(rp).TruncateLength())
			lt = d.Substring(lt, "1", width)
			rt = d.Substring(rt, "1", width)
		}
		expr = "(" + lt + " " + sqlOp + " " + rt + ")"

	case l.numericType() || r.numericType():
		ln, err := t.renderNumeric(l)
		if err != nil {
			return operand{}, err
		}
		rn, err := t.renderNumeric(r)
		if err != nil {
			return operand{}, err
		}
		expr = "(" + ln + " " + sqlOp + " " + rn + ")"

	case l.boolLit != nil || r.boolLit != nil:
		if sqlOp != "=" && sqlOp != "!=" {
			return operand{}, errorf(ErrCodeUnsupportedConstruct,
				"boolean operands do not support operator %q", op)
		}
		var err error
		expr, err = t.boolCompare(sqlOp, l, r)
		if err != nil {
			return operand{}, err
		}

	default:
		lt, err := t.renderText(l)
		if err != nil {
			return operand{}, err
		}
		rt, err := t.renderText(r)
		if err != nil {
			return operand{}, err
		}
		expr = "(" + lt + " " + sqlOp + " " + rt + ")"
	}

	out, err := mergeSources(l, r)
	if err != nil {
		return operand{}, err
	}
	out.computed = expr
	out.kind = kindBool
	out.elemType = "boolean"
	return out, nil
}

func (t *translator) boolCompare(sqlOp string, l, r operand) (string, error) {
	if sqlOp != "=" && sqlOp != "!=" {
		return "", nil
	}
	lit, path := l, r
	if r.boolLit != nil {
		lit, path = r, l
	}
	pt, err := t.renderText(path)
	if err != nil {
		return "", err
	}
	return "(" + pt + " " + sqlOp + " " + t.ctx.Dialect.JSONBoolLiteral(*lit.boolLit) + ")", nil
}

func (t *translator) arithmetic(op ast.Operator, l, r operand) (operand, error) {
	d := t.ctx.Dialect

	if op == ast.OpAdd && (l.textType() || r.textType()) {
		lt, err := t.renderText(l)
		if err != nil {
			return operand{}, err
		}
		rt, err := t.renderText(r)
		if err != nil {
			return operand{}, err
		}
		out, err := mergeSources(l, r)
		if err != nil {
			return operand{}, err
		}
		out.computed = d.StringConcat(lt, rt)
		out.kind = kindText
		out.elemType = "string"
		return out, nil
	}

	ln, err := t.renderNumeric(l)
	if err != nil {
		return operand{}, err
	}
	rn, err := t.renderNumeric(r)
	if err != nil {
		return operand{}, err
	}

	elemType := "decimal"
	var expr string
	switch op {
	case ast.OpAdd:
		expr = "(" + ln + " + " + rn + ")"
	case ast.OpSubtract:
		expr = "(" + ln + " - " + rn + ")"
	case ast.OpMultiply:
		expr = "(" + ln + " * " + rn + ")"
	case ast.OpDivide:
		// Division by zero yields empty, never a SQL error.
		expr = "(" + ln + " / NULLIF(" + rn + ", 0))"
	case ast.OpDiv:
		expr = "CAST(" + d.MathFunction("truncate") + "(" + ln + " / NULLIF(" + rn + ", 0)) AS BIGINT)"
		elemType = "integer"
	case ast.OpMod:
		expr = "(" + ln + " % NULLIF(" + rn + ", 0))"
		elemType = "integer"
	}

	out, err := mergeSources(l, r)
	if err != nil {
		return operand{}, err
	}
	out.computed = expr
	out.kind = kindNumber
	out.elemType = elemType
	return out, nil
}
