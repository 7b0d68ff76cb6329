package nbt

import (
	"math"
	"strconv"
	"strings"
)

// ToSNBT renders t in compact canonical SNBT. Identical trees always render
// to identical text: compound keys keep insertion order, string values are
// always double-quoted and numbers carry their type suffix.
func ToSNBT(t Tag) string {
	w := snbtWriter{}
	w.tag(t, 0)
	return w.sb.String()
}

// ToSNBTIndent renders t with one compound entry per line, indenting nested
// values by indent. Lists of scalars and typed arrays stay on one line.
func ToSNBTIndent(t Tag, indent string) string {
	if indent == "" {
		return ToSNBT(t)
	}
	w := snbtWriter{indent: indent}
	w.tag(t, 0)
	return w.sb.String()
}

type snbtWriter struct {
	sb     strings.Builder
	indent string
}

func (w *snbtWriter) pretty() bool {
	return w.indent != ""
}

func (w *snbtWriter) newline(depth int) {
	w.sb.WriteByte('\n')
	for i := 0; i < depth; i++ {
		w.sb.WriteString(w.indent)
	}
}

func (w *snbtWriter) separator() {
	if w.pretty() {
		w.sb.WriteString(", ")
	} else {
		w.sb.WriteByte(',')
	}
}

func (w *snbtWriter) tag(t Tag, depth int) {
	switch v := t.(type) {
	case Byte:
		w.sb.WriteString(strconv.FormatInt(int64(v), 10))
		w.sb.WriteByte('b')
	case Short:
		w.sb.WriteString(strconv.FormatInt(int64(v), 10))
		w.sb.WriteByte('s')
	case Int:
		w.sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Long:
		w.sb.WriteString(strconv.FormatInt(int64(v), 10))
		w.sb.WriteByte('L')
	case Float:
		w.sb.WriteString(formatFloat(float64(v), 32))
		w.sb.WriteByte('f')
	case Double:
		w.sb.WriteString(formatFloat(float64(v), 64))
		w.sb.WriteByte('d')
	case String:
		writeQuoted(&w.sb, string(v))
	case ByteArray:
		w.sb.WriteString("[B;")
		for i, b := range v {
			if i > 0 {
				w.separator()
			} else if w.pretty() {
				w.sb.WriteByte(' ')
			}
			w.sb.WriteString(strconv.FormatInt(int64(b), 10))
			w.sb.WriteByte('b')
		}
		w.sb.WriteByte(']')
	case IntArray:
		w.sb.WriteString("[I;")
		for i, n := range v {
			if i > 0 {
				w.separator()
			} else if w.pretty() {
				w.sb.WriteByte(' ')
			}
			w.sb.WriteString(strconv.FormatInt(int64(n), 10))
		}
		w.sb.WriteByte(']')
	case LongArray:
		w.sb.WriteString("[L;")
		for i, n := range v {
			if i > 0 {
				w.separator()
			} else if w.pretty() {
				w.sb.WriteByte(' ')
			}
			w.sb.WriteString(strconv.FormatInt(n, 10))
			w.sb.WriteByte('L')
		}
		w.sb.WriteByte(']')
	case *List:
		w.list(v, depth)
	case *Compound:
		w.compound(v, depth)
	}
}

func (w *snbtWriter) list(l *List, depth int) {
	if len(l.Elems) == 0 {
		w.sb.WriteString("[]")
		return
	}
	multiline := w.pretty() && (l.ElemType == TagCompound || l.ElemType == TagList)
	w.sb.WriteByte('[')
	for i, elem := range l.Elems {
		if i > 0 {
			if multiline {
				w.sb.WriteByte(',')
			} else {
				w.separator()
			}
		}
		if multiline {
			w.newline(depth + 1)
		}
		w.tag(elem, depth+1)
	}
	if multiline {
		w.newline(depth)
	}
	w.sb.WriteByte(']')
}

func (w *snbtWriter) compound(c *Compound, depth int) {
	if c.Len() == 0 {
		w.sb.WriteString("{}")
		return
	}
	w.sb.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			w.sb.WriteByte(',')
		}
		if w.pretty() {
			w.newline(depth + 1)
		}
		writeKey(&w.sb, e.Name)
		w.sb.WriteByte(':')
		if w.pretty() {
			w.sb.WriteByte(' ')
		}
		w.tag(e.Value, depth+1)
	}
	if w.pretty() {
		w.newline(depth)
	}
	w.sb.WriteByte('}')
}

func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func isUnquotedChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '+'
}

func canLeaveUnquoted(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isUnquotedChar(s[i]) {
			return false
		}
	}
	return true
}

func writeKey(sb *strings.Builder, key string) {
	if canLeaveUnquoted(key) {
		sb.WriteString(key)
		return
	}
	writeQuoted(sb, key)
}

// writeQuoted works byte by byte so strings that are not valid UTF-8 survive
// a text round trip unchanged.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}
