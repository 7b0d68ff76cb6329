package nbt

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// HeaderTotalChunks is the comment key tooling reads to learn how many chunks
// an SNBT file or chunk folder describes without parsing it.
const HeaderTotalChunks = "Total chunks"

// HeaderLine is one "// Key: value" comment line. Lines without a key keep
// their text in Value.
type HeaderLine struct {
	Key   string
	Value string
}

// Header is the block of comment lines that may precede an SNBT value.
type Header []HeaderLine

// Get returns the value of the first line with the given key, compared
// case-insensitively.
func (h Header) Get(key string) (string, bool) {
	for _, l := range h {
		if l.Key != "" && strings.EqualFold(l.Key, key) {
			return l.Value, true
		}
	}
	return "", false
}

// GetInts parses whitespace-separated integers of a line's value,
// e.g. both coordinates of "// Chunk: 4 -7".
func (h Header) GetInts(key string) ([]int, bool) {
	v, ok := h.Get(key)
	if !ok {
		return nil, false
	}
	fields := strings.Fields(v)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// Set replaces the value of key, appending a new line if it is absent.
func (h *Header) Set(key, value string) {
	for i, l := range *h {
		if strings.EqualFold(l.Key, key) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, HeaderLine{Key: key, Value: value})
}

func (h Header) String() string {
	var sb strings.Builder
	for _, l := range h {
		sb.WriteString("// ")
		if l.Key != "" {
			sb.WriteString(l.Key)
			sb.WriteString(": ")
		}
		sb.WriteString(l.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseHeader splits the leading comment block off text and returns it
// together with the remaining body.
func ParseHeader(text string) (Header, string) {
	var lines []string
	rest := text
	for {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(trimmed, "//") {
			return parseHeaderLines(lines), trimmed
		}
		end := strings.IndexByte(trimmed, '\n')
		if end < 0 {
			lines = append(lines, strings.TrimRight(trimmed, "\r"))
			return parseHeaderLines(lines), ""
		}
		lines = append(lines, strings.TrimRight(trimmed[:end], "\r"))
		rest = trimmed[end+1:]
	}
}

func parseHeaderLines(lines []string) Header {
	if len(lines) == 0 {
		return nil
	}
	h := make(Header, 0, len(lines))
	for _, line := range lines {
		h = append(h, parseHeaderLine(line))
	}
	return h
}

func parseHeaderLine(line string) HeaderLine {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "//"))
	if i := strings.Index(text, ": "); i > 0 {
		return HeaderLine{Key: text[:i], Value: text[i+2:]}
	}
	if strings.HasSuffix(text, ":") && len(text) > 1 {
		return HeaderLine{Key: text[:len(text)-1]}
	}
	return HeaderLine{Value: text}
}

// TotalChunks scans only the leading comment lines of r for a
// "// Total chunks: N" line.
func TotalChunks(r io.Reader) (int, bool, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		l := parseHeaderLine(line)
		if strings.EqualFold(l.Key, HeaderTotalChunks) {
			n, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return 0, false, nil
			}
			return n, true, nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
		return 0, false, err
	}
	return 0, false, nil
}
