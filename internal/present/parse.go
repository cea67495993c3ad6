package present

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errSyntax = errors.New("not a literal list of tuples")

// parseRows parses text of the form [(v, v, ...), (v, ...), ...] into string cells.
// Accepted values are integers, floats, single- or double-quoted strings,
// None/True/False and nested tuples or lists (kept as their source text).
// A tuple may end with a trailing comma only when it directly precedes the
// closing parenthesis, as in (1,).
func parseRows(text string) ([][]string, error) {
	p := &parser{src: strings.TrimSpace(text)}
	rows, err := p.list()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("trailing input")
	}
	return rows, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", errSyntax, fmt.Sprintf(format, args...), p.pos)
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) list() ([][]string, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	var rows [][]string
	for {
		p.skipSpace()
		row, err := p.tuple()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return rows, nil
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *parser) tuple() ([]string, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var cells []string
	for {
		p.skipSpace()
		cell, err := p.value()
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			if p.peek() == ')' {
				p.pos++
				return cells, nil
			}
		case ')':
			p.pos++
			return cells, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) value() (string, error) {
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		return p.str()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case c == '(' || c == '[':
		return p.nested()
	case c >= 'A' && c <= 'Z':
		for _, word := range []string{"None", "True", "False"} {
			if strings.HasPrefix(p.src[p.pos:], word) && !isIdentByte(p.byteAt(p.pos+len(word))) {
				p.pos += len(word)
				return word, nil
			}
		}
		return "", p.errorf("unexpected identifier")
	default:
		return "", p.errorf("unexpected character")
	}
}

func (p *parser) byteAt(i int) byte {
	if i >= len(p.src) {
		return 0
	}
	return p.src[i]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *parser) number() (string, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	digits := 0
	for c := p.peek(); c >= '0' && c <= '9' || c == '_'; c = p.peek() {
		p.pos++
		digits++
	}
	isFloat := false
	if p.peek() == '.' {
		isFloat = true
		p.pos++
		for c := p.peek(); c >= '0' && c <= '9'; c = p.peek() {
			p.pos++
			digits++
		}
	}
	if digits == 0 {
		return "", p.errorf("malformed number")
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		isFloat = true
		p.pos++
		if c := p.peek(); c == '-' || c == '+' {
			p.pos++
		}
		exp := 0
		for c := p.peek(); c >= '0' && c <= '9'; c = p.peek() {
			p.pos++
			exp++
		}
		if exp == 0 {
			return "", p.errorf("malformed exponent")
		}
	}
	if isIdentByte(p.peek()) {
		return "", p.errorf("malformed number")
	}

	raw := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", p.errorf("malformed float")
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Out of int64 range: keep the digits as written.
		return strings.TrimPrefix(raw, "+"), nil
	}
	return strconv.FormatInt(n, 10), nil
}

func (p *parser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", p.errorf("newline in string")
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("dangling escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		return p.hexEscape(b, 4)
	case 'U':
		return p.hexEscape(b, 8)
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) hexEscape(b *strings.Builder, n int) error {
	if p.pos+n > len(p.src) {
		return p.errorf("short escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return p.errorf("bad escape")
	}
	p.pos += n
	b.WriteRune(rune(v))
	return nil
}

// nested consumes a balanced tuple or list and returns its source text.
func (p *parser) nested() (string, error) {
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '(', '[':
			depth++
			p.pos++
		case ')', ']':
			depth--
			p.pos++
			if depth == 0 {
				return p.src[start:p.pos], nil
			}
		case '\'', '"':
			if _, err := p.str(); err != nil {
				return "", err
			}
		default:
			p.pos++
		}
	}
	return "", p.errorf("unbalanced brackets")
}
