package parser

import "strings"

// Parse turns FHIRPath expression text into a raw parse tree.
func Parse(input string) (*Tree, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errorf(0, "empty expression")
	}

	lex := &lexer{input: input}
	var toks []token
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.typ == tokenEOF {
			break
		}
	}

	p := &parser{toks: toks}
	expr, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokenEOF {
		return nil, errorf(tok.pos, "unexpected trailing token %q", tok.text)
	}
	return wrap(KindExpression, expr), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ tokenType, what string) (token, error) {
	tok := p.peek()
	if tok.typ != typ {
		return tok, errorf(tok.pos, "expected %s, found %q", what, tok.text)
	}
	return p.advance(), nil
}

// binary builds a left-associative binary operator level.
func (p *parser) binary(next func() (*Tree, error), match func(token) bool) (*Tree, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for match(p.peek()) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Tree{Kind: KindOperator, Text: op.text, Pos: left.Pos, Children: []*Tree{left, right}}
	}
	return left, nil
}

func (p *parser) parseImplies() (*Tree, error) {
	return p.binary(p.parseOr, func(t token) bool {
		return t.typ == tokenKeyword && t.text == "implies"
	})
}

func (p *parser) parseOr() (*Tree, error) {
	return p.binary(p.parseAnd, func(t token) bool {
		return t.typ == tokenKeyword && (t.text == "or" || t.text == "xor")
	})
}

func (p *parser) parseAnd() (*Tree, error) {
	return p.binary(p.parseEquality, func(t token) bool {
		return t.typ == tokenKeyword && t.text == "and"
	})
}

func (p *parser) parseEquality() (*Tree, error) {
	return p.binary(p.parseComparison, func(t token) bool {
		return t.typ == tokenOperator && (t.text == "=" || t.text == "!=")
	})
}

func (p *parser) parseComparison() (*Tree, error) {
	return p.binary(p.parseTypeOp, func(t token) bool {
		if t.typ != tokenOperator {
			return false
		}
		switch t.text {
		case "<", "<=", ">", ">=":
			return true
		}
		return false
	})
}

// parseTypeOp handles the is/as infix type operators:  expr is TypeName.
func (p *parser) parseTypeOp() (*Tree, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokenKeyword || (tok.text != "is" && tok.text != "as") {
			return left, nil
		}
		op := p.advance()
		typeTok, err := p.expect(tokenIdent, "type name")
		if err != nil {
			return nil, err
		}
		typeNode := &Tree{Kind: KindIdentifier, Text: typeTok.text, Pos: typeTok.pos}
		left = &Tree{Kind: KindTypeOp, Text: op.text, Pos: left.Pos, Children: []*Tree{left, typeNode}}
	}
}

func (p *parser) parseAdditive() (*Tree, error) {
	return p.binary(p.parseMultiplicative, func(t token) bool {
		return t.typ == tokenOperator && (t.text == "+" || t.text == "-")
	})
}

func (p *parser) parseMultiplicative() (*Tree, error) {
	return p.binary(p.parseUnary, func(t token) bool {
		if t.typ == tokenOperator && (t.text == "*" || t.text == "/") {
			return true
		}
		return t.typ == tokenKeyword && (t.text == "div" || t.text == "mod")
	})
}

func (p *parser) parseUnary() (*Tree, error) {
	tok := p.peek()
	if tok.typ == tokenOperator && (tok.text == "+" || tok.text == "-") {
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Tree{Kind: KindUnary, Text: op.text, Pos: op.pos, Children: []*Tree{operand}}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any number of member invocations.
func (p *parser) parsePostfix() (*Tree, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokenDot {
		p.advance()
		member, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		base = &Tree{Kind: KindInvocation, Pos: base.Pos, Children: []*Tree{base, member}}
	}
	return base, nil
}

// parseMember parses the element after a dot: an identifier or function call.
// A function named by a keyword token (contains, not via grammar collisions)
// yields a function node with empty display text whose first child carries
// the name; the AST adapter reconstructs it.
func (p *parser) parseMember() (*Tree, error) {
	tok := p.peek()
	if tok.typ != tokenIdent && tok.typ != tokenKeyword {
		return nil, errorf(tok.pos, "expected member name after '.', found %q", tok.text)
	}
	name := p.advance()

	if p.peek().typ != tokenLParen {
		if name.typ == tokenKeyword {
			return nil, errorf(name.pos, "unexpected keyword %q after '.'", name.text)
		}
		return &Tree{Kind: KindIdentifier, Text: name.text, Pos: name.pos}, nil
	}

	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	if name.typ == tokenKeyword {
		nameNode := &Tree{Kind: KindIdentifier, Text: name.text, Pos: name.pos}
		return &Tree{Kind: KindFunction, Text: "", Pos: name.pos, Children: append([]*Tree{nameNode}, args...)}, nil
	}
	return &Tree{Kind: KindFunction, Text: name.text, Pos: name.pos, Children: args}, nil
}

func (p *parser) parseArgs() ([]*Tree, error) {
	if _, err := p.expect(tokenLParen, "'('"); err != nil {
		return nil, err
	}
	var args []*Tree
	if p.peek().typ == tokenRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		tok := p.peek()
		if tok.typ == tokenComma {
			p.advance()
			continue
		}
		if tok.typ == tokenRParen {
			p.advance()
			return args, nil
		}
		return nil, errorf(tok.pos, "expected ',' or ')' in argument list, found %q", tok.text)
	}
}

func (p *parser) parsePrimary() (*Tree, error) {
	tok := p.peek()
	switch tok.typ {
	case tokenLParen:
		p.advance()
		inner, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen, "')'"); err != nil {
			return nil, err
		}
		return wrap(KindParen, inner), nil

	case tokenLBrace:
		p.advance()
		if _, err := p.expect(tokenRBrace, "'}'"); err != nil {
			return nil, err
		}
		return &Tree{Kind: KindLiteral, Literal: LiteralNull, Pos: tok.pos}, nil

	case tokenString:
		p.advance()
		lit := &Tree{Kind: KindLiteral, Text: tok.text, Literal: LiteralString, Pos: tok.pos}
		return wrap(KindTerm, lit), nil

	case tokenNumber:
		p.advance()
		kind := LiteralInteger
		if strings.Contains(tok.text, ".") {
			kind = LiteralDecimal
		}
		lit := &Tree{Kind: KindLiteral, Text: tok.text, Literal: kind, Pos: tok.pos}
		return wrap(KindTerm, lit), nil

	case tokenDateTime:
		p.advance()
		lit := &Tree{Kind: KindLiteral, Text: tok.text, Literal: classifyTemporal(tok.text), Pos: tok.pos}
		return wrap(KindTerm, lit), nil

	case tokenVariable:
		p.advance()
		return &Tree{Kind: KindVariable, Text: tok.text, Pos: tok.pos}, nil

	case tokenKeyword:
		if tok.text == "true" || tok.text == "false" {
			p.advance()
			lit := &Tree{Kind: KindLiteral, Text: tok.text, Literal: LiteralBoolean, Pos: tok.pos}
			return wrap(KindTerm, lit), nil
		}
		return nil, errorf(tok.pos, "unexpected keyword %q", tok.text)

	case tokenIdent:
		p.advance()
		if p.peek().typ == tokenLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Tree{Kind: KindFunction, Text: tok.text, Pos: tok.pos, Children: args}, nil
		}
		return &Tree{Kind: KindIdentifier, Text: tok.text, Pos: tok.pos}, nil

	default:
		return nil, errorf(tok.pos, "unexpected token %q", tok.text)
	}
}

// classifyTemporal determines whether a stripped @-literal is a date, a
// dateTime, or a time.
func classifyTemporal(text string) LiteralKind {
	if strings.HasPrefix(text, "T") {
		return LiteralTime
	}
	if strings.Contains(text, "T") {
		return LiteralDateTime
	}
	return LiteralDate
}
