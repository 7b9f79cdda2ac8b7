package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack
const maxDepth = 512

// parser is a recursive-descent reader for the relaxed object notation models
// tend to emit: strict JSON plus unquoted keys, single quotes, trailing commas,
// comments, Python/JS literals and loose number forms.
type parser struct {
	src   string
	pos   int
	depth int
}

// parseRegion parses exactly one value spanning all of src
func parseRegion(src string) (Value, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Value{}, p.errorf("unexpected %s after value", p.describe())
	}
	return v, nil
}

// parseError carries an offset relative to the region; the locator rebases it.
type parseError struct {
	offset int
	reason string
}

func (e *parseError) Error() string { return fmt.Sprintf("offset %d: %s", e.offset, e.reason) }

func (p *parser) errorf(format string, args ...any) error {
	return &parseError{offset: p.pos, reason: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) describe() string {
	if p.eof() {
		return "end of input"
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return strconv.QuoteRune(r)
}

// skipSpace skips whitespace and both comment styles
func (p *parser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			end := strings.Index(p.src[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 4
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if r != '\uFEFF' && !unicode.IsSpace(r) {
				return
			}
			p.pos += size
		default:
			return
		}
	}
}

func (p *parser) parseValue() (Value, error) {
	if p.eof() {
		return Value{}, p.errorf("unexpected end of input, expected a value")
	}
	switch c := p.peek(); {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"' || c == '\'' || c == '`':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseLiteral()
	}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("nesting deeper than %d levels", maxDepth)
	}
	return nil
}

func (p *parser) parseObject() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // '{'
	obj := Value{kind: KindObject, obj: []Member{}}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return obj, nil
		}

		key, err := p.parseKey()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return Value{}, p.errorf("expected ':' after key %q, found %s", key, p.describe())
		}
		p.pos++
		p.skipSpace()

		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		obj.obj = setMember(obj.obj, key, val)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return Value{}, p.errorf("expected ',' or '}' in object, found %s", p.describe())
		}
	}
}

func (p *parser) parseArray() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // '['
	arr := Value{kind: KindArray, arr: []Value{}}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			return arr, nil
		}

		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		arr.arr = append(arr.arr, val)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			return Value{}, p.errorf("expected ',' or ']' in array, found %s", p.describe())
		}
	}
}

// parseKey accepts quoted strings, bare identifiers and numbers
func (p *parser) parseKey() (string, error) {
	if p.eof() {
		return "", p.errorf("unexpected end of input, expected a key")
	}
	switch c := p.peek(); {
	case c == '"' || c == '\'' || c == '`':
		return p.parseString()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		v, err := p.parseNumber()
		if err != nil {
			return "", err
		}
		return v.num, nil
	}

	start := p.pos
	word := p.scanIdentifier()
	if word == "" {
		p.pos = start
		return "", p.errorf("expected a key, found %s", p.describe())
	}
	return word, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '-' || unicode.IsDigit(r)
}

func (p *parser) scanIdentifier() string {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if p.pos == start && !isIdentStart(r) {
			break
		}
		if p.pos > start && !isIdentPart(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func (p *parser) parseLiteral() (Value, error) {
	start := p.pos
	word := p.scanIdentifier()
	switch word {
	case "true", "True":
		return Bool(true), nil
	case "false", "False":
		return Bool(false), nil
	case "null", "None", "undefined", "nil":
		return Null(), nil
	case "":
		return Value{}, p.errorf("unexpected %s, expected a value", p.describe())
	case "NaN", "Infinity":
		p.pos = start
		return Value{}, p.errorf("non-finite number %s is not representable", word)
	default:
		p.pos = start
		return Value{}, p.errorf("unexpected identifier %q", word)
	}
}

func (p *parser) parseString() (string, error) {
	quote := p.src[p.pos]
	start := p.pos
	p.pos++

	var sb strings.Builder
	for {
		if p.eof() {
			p.pos = start
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			if err := p.parseEscape(&sb); err != nil {
				return "", err
			}
		default:
			// raw control characters, including newlines, are kept as-is
			sb.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) parseEscape(sb *strings.Builder) error {
	p.pos++ // '\'
	if p.eof() {
		return p.errorf("unterminated escape sequence")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\n':
		// line continuation
	case '\r':
		if p.peek() == '\n' {
			p.pos++
		}
	case 'x':
		n, err := p.hexDigits(2)
		if err != nil {
			return err
		}
		sb.WriteRune(rune(n))
	case 'u':
		n, err := p.hexDigits(4)
		if err != nil {
			return err
		}
		r := rune(n)
		if r >= 0xD800 && r < 0xDC00 && strings.HasPrefix(p.src[p.pos:], "\\u") {
			save := p.pos
			p.pos += 2
			lo, err := p.hexDigits(4)
			if err == nil && lo >= 0xDC00 && lo < 0xE000 {
				r = (r-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
			} else {
				p.pos = save
				r = utf8.RuneError
			}
		} else if r >= 0xD800 && r < 0xE000 {
			r = utf8.RuneError
		}
		sb.WriteRune(r)
	default:
		// \" \' \\ \/ and unknown escapes stand for the character itself
		p.pos--
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		sb.WriteRune(r)
		p.pos += size
	}
	return nil
}

func (p *parser) hexDigits(n int) (uint64, error) {
	if p.pos+n > len(p.src) {
		return 0, p.errorf("truncated escape sequence")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return 0, p.errorf("invalid escape sequence %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseNumber reads decimal, hex and loose forms (+1, .5, 5.) and returns the
// strict JSON literal for the same value
func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	neg := false
	switch p.peek() {
	case '-':
		neg = true
		p.pos++
	case '+':
		p.pos++
	}

	if p.peek() == '0' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == 'x' || p.src[p.pos+1] == 'X') {
		p.pos += 2
		digitsStart := p.pos
		for !p.eof() && strings.IndexByte("0123456789abcdefABCDEF", p.peek()) >= 0 {
			p.pos++
		}
		n, err := strconv.ParseUint(p.src[digitsStart:p.pos], 16, 64)
		if err != nil {
			p.pos = start
			return Value{}, p.errorf("invalid hex number")
		}
		if err := p.numberEnd(start); err != nil {
			return Value{}, err
		}
		text := strconv.FormatUint(n, 10)
		if neg && n != 0 {
			text = "-" + text
		}
		return Value{kind: KindNumber, num: text}, nil
	}

	intStart := p.pos
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	intPart := p.src[intStart:p.pos]

	var fracPart string
	if p.peek() == '.' {
		p.pos++
		fracStart := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		fracPart = p.src[fracStart:p.pos]
	}
	if intPart == "" && fracPart == "" {
		p.pos = start
		return Value{}, p.errorf("invalid number")
	}

	var expPart string
	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		expSign := ""
		if c := p.peek(); c == '-' || c == '+' {
			if c == '-' {
				expSign = "-"
			}
			p.pos++
		}
		expStart := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		if p.pos == expStart {
			p.pos = start
			return Value{}, p.errorf("invalid number exponent")
		}
		expPart = "e" + expSign + p.src[expStart:p.pos]
	}

	if err := p.numberEnd(start); err != nil {
		return Value{}, err
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(intPart)
	if fracPart != "" {
		sb.WriteByte('.')
		sb.WriteString(fracPart)
	}
	sb.WriteString(expPart)

	text := sb.String()
	if text == "-0" {
		text = "0"
	}
	return Value{kind: KindNumber, num: text}, nil
}

// numberEnd rejects numbers glued to other characters, e.g. "3px"
func (p *parser) numberEnd(start int) error {
	if p.eof() {
		return nil
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	if isIdentPart(r) || r == '.' {
		p.pos = start
		return p.errorf("invalid number")
	}
	return nil
}
