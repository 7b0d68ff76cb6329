package nbt

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSNBTHelloWorld(t *testing.T) {
	nt, err := Decode(helloWorld)
	require.NoError(t, err)
	assert.Equal(t, `{name:"Bananrama"}`, ToSNBT(nt.Root))

	back, err := ParseSNBTCompound(`{name:"Bananrama"}`)
	require.NoError(t, err)
	out, err := Encode(&NamedTag{Name: "hello world", Root: back})
	require.NoError(t, err)
	assert.Equal(t, helloWorld, out)
}

func TestToSNBTScalars(t *testing.T) {
	cases := []struct {
		tag  Tag
		want string
	}{
		{Byte(-3), "-3b"},
		{Short(300), "300s"},
		{Int(42), "42"},
		{Long(-9000000000), "-9000000000L"},
		{Float(0.1), "0.1f"},
		{Float(1), "1.0f"},
		{Double(2), "2.0d"},
		{Double(1e21), "1e+21d"},
		{Double(math.Copysign(0, -1)), "-0.0d"},
		{Double(math.Inf(-1)), "-Infinityd"},
		{Float(float32(math.NaN())), "NaNf"},
		{String(`a"b\c`), `"a\"b\\c"`},
		{ByteArray{1, -1}, "[B;1b,-1b]"},
		{IntArray{}, "[I;]"},
		{LongArray{7}, "[L;7L]"},
		{&List{}, "[]"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ToSNBT(c.tag))
	}
}

func TestToSNBTQuotesKeys(t *testing.T) {
	c := NewCompound()
	c.Set("plain_key.1", Int(1))
	c.Set("minecraft:stone", Int(2))
	c.Set("", Int(3))
	assert.Equal(t, `{plain_key.1:1,"minecraft:stone":2,"":3}`, ToSNBT(c))
}

func TestTextRoundTrip(t *testing.T) {
	root := sampleTree(t)
	for _, indent := range []string{"", "    ", "\t"} {
		text := ToSNBTIndent(root, indent)
		parsed, err := ParseSNBT(text)
		require.NoError(t, err, "indent %q", indent)
		assert.Nil(t, Diff(root, parsed), "indent %q", indent)

		assert.Equal(t, text, ToSNBTIndent(parsed, indent), "indent %q is not idempotent", indent)
	}
}

func TestJavaNaNSurvivesText(t *testing.T) {
	root := NewCompound()
	root.Set("d", Double(math.Float64frombits(0x7FF8000000000000)))
	root.Set("f", Float(math.Float32frombits(0x7FC00000)))
	root.Set("inf", Double(math.Inf(-1)))
	want, err := Encode(&NamedTag{Root: root})
	require.NoError(t, err)

	text := ToSNBT(root)
	assert.Equal(t, "{d:NaNd,f:NaNf,inf:-Infinityd}", text)
	back, err := ParseSNBTCompound(text)
	require.NoError(t, err)
	assert.True(t, Equal(root, back))

	d, _ := back.Get("d")
	assert.Equal(t, uint64(0x7FF8000000000000), math.Float64bits(float64(d.(Double))))
	f, _ := back.Get("f")
	assert.Equal(t, uint32(0x7FC00000), math.Float32bits(float32(f.(Float))))

	got, err := Encode(&NamedTag{Root: back})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestToSNBTIndentLayout(t *testing.T) {
	inner := NewCompound()
	inner.Set("id", String("minecraft:chest"))
	root := NewCompound()
	root.Set("xPos", Int(1))
	root.Set("heights", LongArray{1, 2})
	root.Set("blocks", mustList(t, TagCompound, inner))

	want := strings.Join([]string{
		`{`,
		`  xPos: 1,`,
		`  heights: [L; 1L, 2L],`,
		`  blocks: [`,
		`    {`,
		`      id: "minecraft:chest"`,
		`    }`,
		`  ]`,
		`}`,
	}, "\n")
	assert.Equal(t, want, ToSNBTIndent(root, "  "))
}

func TestParseSNBTTypeInference(t *testing.T) {
	cases := map[string]Tag{
		"1":         Int(1),
		"1b":        Byte(1),
		"1B":        Byte(1),
		"-2s":       Short(-2),
		"3l":        Long(3),
		"3L":        Long(3),
		"1.5":       Double(1.5),
		"1.":        Double(1),
		".5":        Double(0.5),
		"2d":        Double(2),
		"2.5f":      Float(2.5),
		"1e3d":      Double(1000),
		"true":      Byte(1),
		"false":     Byte(0),
		"stone":     String("stone"),
		"01":        String("01"),
		"'single'":  String("single"),
		`"it\'s"`:   String("it's"),
		`"tab\t"`:   String("tab\t"),
		"Infinityd": Double(math.Inf(1)),
	}
	for in, want := range cases {
		got, err := ParseSNBT(in)
		require.NoError(t, err, in)
		assert.Nil(t, Diff(want, got), in)
	}
}

func TestParseSNBTArrays(t *testing.T) {
	got, err := ParseSNBT("[B; 1b, 2, true]")
	require.NoError(t, err)
	assert.Equal(t, ByteArray{1, 2, 1}, got)

	got, err = ParseSNBT("[L;1,2L]")
	require.NoError(t, err)
	assert.Equal(t, LongArray{1, 2}, got)

	_, err = ParseSNBT("[I;1,2L]")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "int", pe.Expected)
	assert.Equal(t, 5, pe.Offset)
}

func TestParseSNBTErrors(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		line     int
		column   int
	}{
		{"{a:1", "',' or '}'", 1, 5},
		{"{a 1}", "':'", 1, 4},
		{"{a:1,a:2}", "unique key", 1, 6},
		{"[1,2b]", "TAG_Int", 1, 4},
		{"{\n  a: \"open\n}", "closing quote", 3, 2},
		{"{a:300b}", "byte in range", 1, 4},
		{"{a:1} x", "end of input", 1, 7},
		{"", "value", 1, 1},
		{`{a:"\q"}`, "escape sequence", 1, 6},
	}
	for _, c := range cases {
		_, err := ParseSNBT(c.in)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "%q: %v", c.in, err)
		assert.Equal(t, c.expected, pe.Expected, c.in)
		assert.Equal(t, c.line, pe.Line, c.in)
		assert.Equal(t, c.column, pe.Column, c.in)
	}
}

func TestParseSNBTSkipsCommentHeader(t *testing.T) {
	text := "// Region: 0 0\n// Total chunks: 12\n{a:1}\n"
	got, err := ParseSNBT(text)
	require.NoError(t, err)
	assert.Equal(t, `{a:1}`, ToSNBT(got))

	h, body := ParseHeader(text)
	assert.Equal(t, "{a:1}\n", body)
	v, ok := h.Get("total chunks")
	assert.True(t, ok)
	assert.Equal(t, "12", v)
	ints, ok := h.GetInts("Region")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 0}, ints)

	n, ok, err := TotalChunks(strings.NewReader(text))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, n)
}

func TestParseSNBTDocuments(t *testing.T) {
	text := strings.Join([]string{
		"// Total chunks: 2",
		"// Chunk: 0 0",
		"{a:1}",
		"",
		"// Chunk: 5 5",
		"{",
		"    b: 2",
		"}",
	}, "\n")
	docs, err := ParseSNBTDocuments(text)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	total, ok := docs[0].Header.Get(HeaderTotalChunks)
	assert.True(t, ok)
	assert.Equal(t, "2", total)
	coords, _ := docs[1].Header.GetInts("Chunk")
	assert.Equal(t, []int{5, 5}, coords)
	assert.Equal(t, `{b:2}`, ToSNBT(docs[1].Value))
}

func TestHeaderStringRoundTrip(t *testing.T) {
	var h Header
	h.Set("Root name", `"hello world"`)
	h.Set("Compression", "gzip")
	h.Set("compression", "zlib")

	assert.Equal(t, "// Root name: \"hello world\"\n// Compression: zlib\n", h.String())
	parsed, body := ParseHeader(h.String() + "{}")
	assert.Equal(t, h, parsed)
	assert.Equal(t, "{}", body)
}
