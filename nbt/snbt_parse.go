package nbt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDoubleBare = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?$`)
	reDouble     = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]?|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?d$`)
	reFloat      = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]?|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?f$`)
	reByte       = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)b$`)
	reShort      = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)s$`)
	reLong       = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)l$`)
	reInt        = regexp.MustCompile(`^[-+]?(?:0|[1-9][0-9]*)$`)
	reNonFinite  = regexp.MustCompile(`^([-+]?)(NaN|Infinity)([dDfF])$`)
)

// Document is one value of a multi-value SNBT file together with the comment
// lines that precede it.
type Document struct {
	Header Header
	Value  Tag
}

// ParseSNBT parses a single SNBT value. Leading "//" comment lines are
// skipped.
func ParseSNBT(text string) (Tag, error) {
	p := &parser{src: text}
	p.skipSpace(nil)
	t, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace(nil)
	if p.pos < len(p.src) {
		return nil, p.fail("end of input")
	}
	return t, nil
}

// ParseSNBTCompound parses text and requires the value to be a compound.
func ParseSNBTCompound(text string) (*Compound, error) {
	p := &parser{src: text}
	p.skipSpace(nil)
	if p.peek() != '{' {
		return nil, p.fail("'{'")
	}
	t, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace(nil)
	if p.pos < len(p.src) {
		return nil, p.fail("end of input")
	}
	return t.(*Compound), nil
}

// ParseSNBTDocuments parses a sequence of values, each optionally preceded
// by "//" comment lines which become that document's header.
func ParseSNBTDocuments(text string) ([]Document, error) {
	p := &parser{src: text}
	var docs []Document
	for {
		var comments []string
		p.skipSpace(&comments)
		if p.pos >= len(p.src) {
			if len(docs) > 0 && len(comments) > 0 {
				docs[len(docs)-1].Header = append(docs[len(docs)-1].Header, parseHeaderLines(comments)...)
			}
			return docs, nil
		}
		t, err := p.value(0)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Header: parseHeaderLines(comments), Value: t})
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) fail(expected string) *ParseError {
	return p.failAt(p.pos, expected)
}

func (p *parser) failAt(offset int, expected string) *ParseError {
	line := 1 + strings.Count(p.src[:offset], "\n")
	col := offset - strings.LastIndexByte(p.src[:offset], '\n')
	found := ""
	if offset < len(p.src) {
		end := offset + 1
		for end < len(p.src) && end-offset < 16 && isUnquotedChar(p.src[end]) && isUnquotedChar(p.src[offset]) {
			end++
		}
		found = p.src[offset:end]
	}
	return &ParseError{Offset: offset, Line: line, Column: col, Expected: expected, Found: found}
}

// skipSpace consumes whitespace and "//" comments. Comment text is appended
// to comments when it is non-nil.
func (p *parser) skipSpace(comments *[]string) {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			end := strings.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				end = len(p.src) - p.pos
			}
			if comments != nil {
				*comments = append(*comments, strings.TrimRight(p.src[p.pos:p.pos+end], "\r"))
			}
			p.pos += end
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.fail(fmt.Sprintf("'%c'", c))
	}
	p.pos++
	return nil
}

func (p *parser) value(depth int) (Tag, error) {
	if depth > maxDepth {
		return nil, p.fail("shallower nesting")
	}
	switch c := p.peek(); {
	case c == '{':
		return p.compound(depth)
	case c == '[':
		if p.pos+2 < len(p.src) && p.src[p.pos+2] == ';' {
			switch p.src[p.pos+1] {
			case 'B', 'I', 'L':
				return p.array()
			}
		}
		return p.list(depth)
	case c == '"' || c == '\'':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case isUnquotedChar(c):
		start := p.pos
		return p.scalar(start, p.unquoted())
	default:
		return nil, p.fail("value")
	}
}

func (p *parser) unquoted() string {
	start := p.pos
	for p.pos < len(p.src) && isUnquotedChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.fail("closing quote")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.fail("escape sequence")
			}
			switch e := p.src[p.pos+1]; e {
			case '\\', '"', '\'':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				return "", p.failAt(p.pos+1, "escape sequence")
			}
			p.pos += 2
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

// scalar infers the type of an unquoted token the same way Minecraft does:
// numeric shapes become numbers, true/false become bytes, anything else is a
// string.
func (p *parser) scalar(start int, tok string) (Tag, error) {
	switch {
	case tok == "true":
		return Byte(1), nil
	case tok == "false":
		return Byte(0), nil
	case reInt.MatchString(tok):
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return nil, p.failAt(start, "int in range")
		}
		return Int(v), nil
	case reByte.MatchString(tok):
		v, err := strconv.ParseInt(tok[:len(tok)-1], 10, 8)
		if err != nil {
			return nil, p.failAt(start, "byte in range")
		}
		return Byte(v), nil
	case reShort.MatchString(tok):
		v, err := strconv.ParseInt(tok[:len(tok)-1], 10, 16)
		if err != nil {
			return nil, p.failAt(start, "short in range")
		}
		return Short(v), nil
	case reLong.MatchString(tok):
		v, err := strconv.ParseInt(tok[:len(tok)-1], 10, 64)
		if err != nil {
			return nil, p.failAt(start, "long in range")
		}
		return Long(v), nil
	case reFloat.MatchString(tok):
		v, err := strconv.ParseFloat(tok[:len(tok)-1], 32)
		if err != nil {
			return nil, p.failAt(start, "float in range")
		}
		return Float(v), nil
	case reDouble.MatchString(tok):
		v, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
		if err != nil {
			return nil, p.failAt(start, "double in range")
		}
		return Double(v), nil
	case reDoubleBare.MatchString(tok):
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, p.failAt(start, "double in range")
		}
		return Double(v), nil
	}
	if m := reNonFinite.FindStringSubmatch(tok); m != nil {
		single := m[3] == "f" || m[3] == "F"
		if m[2] == "NaN" {
			// Java's canonical NaN, which is what Minecraft writes.
			if single {
				return Float(math.Float32frombits(0x7FC00000)), nil
			}
			return Double(math.Float64frombits(0x7FF8000000000000)), nil
		}
		v := math.Inf(1)
		if m[1] == "-" {
			v = math.Inf(-1)
		}
		if single {
			return Float(v), nil
		}
		return Double(v), nil
	}
	return String(tok), nil
}

func (p *parser) key() (string, error) {
	if c := p.peek(); c == '"' || c == '\'' {
		return p.quoted()
	}
	k := p.unquoted()
	if k == "" {
		return "", p.fail("key")
	}
	return k, nil
}

func (p *parser) compound(depth int) (*Compound, error) {
	p.pos++ // '{'
	c := NewCompound()
	p.skipSpace(nil)
	if p.peek() == '}' {
		p.pos++
		return c, nil
	}
	for {
		keyStart := p.pos
		k, err := p.key()
		if err != nil {
			return nil, err
		}
		if c.Has(k) {
			return nil, p.failAt(keyStart, "unique key")
		}
		p.skipSpace(nil)
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		p.skipSpace(nil)
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		c.Set(k, v)
		p.skipSpace(nil)
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace(nil)
		case '}':
			p.pos++
			return c, nil
		default:
			return nil, p.fail("',' or '}'")
		}
	}
}

func (p *parser) list(depth int) (*List, error) {
	p.pos++ // '['
	list := &List{ElemType: TagEnd}
	p.skipSpace(nil)
	if p.peek() == ']' {
		p.pos++
		return list, nil
	}
	for {
		elemStart := p.pos
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if len(list.Elems) > 0 && v.Type() != list.ElemType {
			return nil, p.failAt(elemStart, list.ElemType.String())
		}
		list.ElemType = v.Type()
		list.Elems = append(list.Elems, v)
		p.skipSpace(nil)
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace(nil)
		case ']':
			p.pos++
			return list, nil
		default:
			return nil, p.fail("',' or ']'")
		}
	}
}

func (p *parser) array() (Tag, error) {
	kind := p.src[p.pos+1]
	p.pos += 3 // "[X;"
	var (
		bytes ByteArray
		ints  IntArray
		longs LongArray
	)
	p.skipSpace(nil)
	if p.peek() != ']' {
		for {
			start := p.pos
			tok := p.unquoted()
			if tok == "" {
				return nil, p.fail("number")
			}
			v, err := p.scalar(start, tok)
			if err != nil {
				return nil, err
			}
			switch {
			case kind == 'B' && v.Type() == TagByte:
				bytes = append(bytes, int8(v.(Byte)))
			case kind == 'B' && v.Type() == TagInt && int32(v.(Int)) == int32(int8(v.(Int))):
				bytes = append(bytes, int8(v.(Int)))
			case kind == 'I' && v.Type() == TagInt:
				ints = append(ints, int32(v.(Int)))
			case kind == 'L' && v.Type() == TagLong:
				longs = append(longs, int64(v.(Long)))
			case kind == 'L' && v.Type() == TagInt:
				longs = append(longs, int64(v.(Int)))
			default:
				return nil, p.failAt(start, arrayElemName(kind))
			}
			p.skipSpace(nil)
			if p.peek() == ',' {
				p.pos++
				p.skipSpace(nil)
				continue
			}
			break
		}
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	switch kind {
	case 'B':
		if bytes == nil {
			bytes = ByteArray{}
		}
		return bytes, nil
	case 'I':
		if ints == nil {
			ints = IntArray{}
		}
		return ints, nil
	default:
		if longs == nil {
			longs = LongArray{}
		}
		return longs, nil
	}
}

func arrayElemName(kind byte) string {
	switch kind {
	case 'B':
		return "byte"
	case 'I':
		return "int"
	default:
		return "long"
	}
}
