package command

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports where a call failed to parse.
type ParseError struct {
	Src string
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Src, e.Pos, e.Msg)
}

// Parse reads a single call. Only positional arguments are accepted.
func Parse(src string) (*Command, error) {
	p := &parser{src: src}
	p.skipSpace()
	cmd, err := p.call()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return cmd, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Src: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.pos++
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }

func (p *parser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	if !isIdentStart(p.peek()) {
		return "", p.errorf("expected identifier")
	}
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// call := [ident "."] ident "(" [arg {"," arg} [","]] ")"
func (p *parser) call() (*Command, error) {
	first, err := p.ident()
	if err != nil {
		return nil, err
	}
	cmd := &Command{Name: first}
	p.skipSpace()
	if p.peek() == '.' {
		p.pos++
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		cmd.Namespace, cmd.Name = first, name
	}
	return p.finishCall(cmd)
}

func (p *parser) finishCall(cmd *Command) (*Command, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return cmd, nil
		}
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, arg)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			if p.pos >= len(p.src) {
				return nil, p.errorf("unterminated argument list")
			}
			return nil, p.errorf("expected ',' or ')', got %q", p.peek())
		}
	}
}

func (p *parser) arg() (Arg, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		s, err := p.stringLit()
		if err != nil {
			return Arg{}, err
		}
		return String(s), nil
	case c == 'f' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == '"' || p.src[p.pos+1] == '\''):
		p.pos++
		return p.template()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.intLit()
	case isIdentStart(c):
		return p.identArg()
	case c == 0:
		return Arg{}, p.errorf("expected argument, got end of input")
	default:
		return Arg{}, p.errorf("unexpected %q", c)
	}
}

func (p *parser) intLit() (Arg, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return Arg{}, p.errorf("invalid integer")
	}
	return Int(n), nil
}

func (p *parser) identArg() (Arg, error) {
	start := p.pos
	name, err := p.ident()
	if err != nil {
		return Arg{}, err
	}
	switch name {
	case "None":
		return None(), nil
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "variables":
		key, err := p.subscript()
		if err != nil {
			return Arg{}, err
		}
		return Variable(key), nil
	}

	p.skipSpace()
	switch p.peek() {
	case '=':
		p.pos = start
		return Arg{}, p.errorf("named arguments are not supported (%s=...)", name)
	case '.', '(':
	default:
		p.pos = start
		return Arg{}, p.errorf("bare identifier %q is not a value", name)
	}

	p.pos = start
	nested, err := p.call()
	if err != nil {
		return Arg{}, err
	}
	if nested.Namespace == "" && nested.Name == "getConfig" {
		if len(nested.Args) != 1 || nested.Args[0].Kind != ArgString {
			return Arg{}, p.errorf("getConfig takes a single string key")
		}
		return Config(nested.Args[0].Str), nil
	}
	return Nested(nested), nil
}

// subscript := "[" string "]"
func (p *parser) subscript() (string, error) {
	if err := p.expect('['); err != nil {
		return "", err
	}
	p.skipSpace()
	if c := p.peek(); c != '"' && c != '\'' {
		return "", p.errorf("variables[] key must be a string")
	}
	key, err := p.stringLit()
	if err != nil {
		return "", err
	}
	if err := p.expect(']'); err != nil {
		return "", err
	}
	return key, nil
}

func (p *parser) stringLit() (string, error) {
	quoteChar := p.peek()
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quoteChar:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(unescape(p.src[p.pos+1]))
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	default:
		return c
	}
}

// template reads an f-string body. Braced expressions must be variable references.
func (p *parser) template() (Arg, error) {
	quoteChar := p.peek()
	p.pos++
	var segs []Segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quoteChar:
			p.pos++
			flush()
			return Template(segs...), nil
		case c == '\\' && p.pos+1 < len(p.src):
			lit.WriteByte(unescape(p.src[p.pos+1]))
			p.pos += 2
		case c == '{' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '{':
			lit.WriteByte('{')
			p.pos += 2
		case c == '}' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '}':
			lit.WriteByte('}')
			p.pos += 2
		case c == '{':
			p.pos++
			key, err := p.templateExpr(quoteChar)
			if err != nil {
				return Arg{}, err
			}
			flush()
			segs = append(segs, Segment{Var: key})
		default:
			lit.WriteByte(c)
			p.pos++
		}
	}
	return Arg{}, p.errorf("unterminated template string")
}

// templateExpr := "variables" "[" string "]" "}"; the key may use either quote
// style as long as it differs from the template's own delimiter.
func (p *parser) templateExpr(outer byte) (string, error) {
	name, err := p.ident()
	if err != nil || name != "variables" {
		return "", p.errorf("template expressions must be variables['key']")
	}
	if err := p.expect('['); err != nil {
		return "", err
	}
	p.skipSpace()
	c := p.peek()
	if (c != '"' && c != '\'') || c == outer {
		return "", p.errorf("template variable key must use the other quote style")
	}
	key, err := p.stringLit()
	if err != nil {
		return "", err
	}
	if err := p.expect(']'); err != nil {
		return "", err
	}
	if err := p.expect('}'); err != nil {
		return "", err
	}
	return key, nil
}
