package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenKeyword // and or xor implies is as div mod contains true false
	tokenNumber
	tokenString   // single-quoted, quotes stripped
	tokenDateTime // @-prefixed date/time literal, @ stripped
	tokenVariable // $-prefixed, $ stripped
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenComma
	tokenDot
	tokenOperator // symbolic operators: + - * / = != < <= > >=
)

var keywords = map[string]bool{
	"and": true, "or": true, "xor": true, "implies": true,
	"is": true, "as": true, "div": true, "mod": true,
	"contains": true, "true": true, "false": true,
}

type token struct {
	typ  tokenType
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '(':
		l.pos++
		return token{typ: tokenLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{typ: tokenRParen, text: ")", pos: start}, nil
	case ch == '{':
		l.pos++
		return token{typ: tokenLBrace, text: "{", pos: start}, nil
	case ch == '}':
		l.pos++
		return token{typ: tokenRBrace, text: "}", pos: start}, nil
	case ch == ',':
		l.pos++
		return token{typ: tokenComma, text: ",", pos: start}, nil
	case ch == '.':
		l.pos++
		return token{typ: tokenDot, text: ".", pos: start}, nil
	case ch == '\'':
		return l.lexString()
	case ch == '@':
		return l.lexDateTime()
	case ch == '$':
		return l.lexVariable()
	case ch >= '0' && ch <= '9':
		return l.lexNumber()
	case ch == '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{typ: tokenOperator, text: "!=", pos: start}, nil
		}
		return token{}, errorf(start, "unexpected character %q", "!")
	case ch == '<' || ch == '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
		}
		return token{typ: tokenOperator, text: l.input[start:l.pos], pos: start}, nil
	case strings.ContainsRune("+-*/=", rune(ch)):
		l.pos++
		return token{typ: tokenOperator, text: string(ch), pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	if unicode.IsLetter(r) || ch == '_' {
		return l.lexIdent()
	}
	return token{}, errorf(start, "unexpected character %q", string(r))
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.pos += size
	}
	text := l.input[start:l.pos]
	if keywords[text] {
		return token{typ: tokenKeyword, text: text, pos: start}, nil
	}
	return token{typ: tokenIdent, text: text, pos: start}, nil
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' &&
		l.pos+1 < len(l.input) && l.input[l.pos+1] >= '0' && l.input[l.pos+1] <= '9' {
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
	}
	return token{typ: tokenNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' {
			if l.pos+1 >= len(l.input) {
				return token{}, errorf(start, "unterminated escape in string literal")
			}
			next := l.input[l.pos+1]
			switch next {
			case '\'', '\\', '/':
				sb.WriteByte(next)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				return token{}, errorf(l.pos, "unsupported escape \\%c in string literal", next)
			}
			l.pos += 2
			continue
		}
		if ch == '\'' {
			l.pos++
			return token{typ: tokenString, text: sb.String(), pos: start}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return token{}, errorf(start, "unterminated string literal")
}

// lexDateTime reads an @-prefixed date/time literal: @2019, @2019-01-01,
// @2019-01-01T12:30:05Z, @T14:30.
func (l *lexer) lexDateTime() (token, error) {
	start := l.pos
	l.pos++ // @
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch >= '0' && ch <= '9' || strings.ContainsRune("-:TZ+.", rune(ch)) {
			l.pos++
			continue
		}
		break
	}
	text := l.input[start+1 : l.pos]
	if text == "" {
		return token{}, errorf(start, "empty date/time literal")
	}
	return token{typ: tokenDateTime, text: text, pos: start}, nil
}

func (l *lexer) lexVariable() (token, error) {
	start := l.pos
	l.pos++ // $
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	text := l.input[start+1 : l.pos]
	if text == "" {
		return token{}, errorf(start, "empty variable reference")
	}
	return token{typ: tokenVariable, text: text, pos: start}, nil
}
