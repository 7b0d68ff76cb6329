package nbt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mismatch locates the first difference between two trees. Path is written
// in the same key syntax as SNBT, e.g. `Level.Sections[3]."block states"`.
type Mismatch struct {
	Path   string
	Reason string
}

func (m *Mismatch) String() string {
	if m.Path == "" {
		return m.Reason
	}
	return m.Path + ": " + m.Reason
}

// Equal reports whether a and b are structurally identical. Compound order
// is significant, floating point values compare by bit pattern and empty
// lists are equal whatever element type they declare.
func Equal(a, b Tag) bool {
	return Diff(a, b) == nil
}

// Diff returns the first point where a and b differ, or nil if they are
// equal under the rules of Equal.
func Diff(a, b Tag) *Mismatch {
	return diff(a, b, nil)
}

func diff(a, b Tag, path []string) *Mismatch {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return nil
		}
		return mismatch(path, "missing value")
	}
	if a.Type() != b.Type() {
		return mismatch(path, fmt.Sprintf("type %s != %s", a.Type(), b.Type()))
	}
	switch av := a.(type) {
	case Byte, Short, Int, Long, String:
		if a != b {
			return mismatch(path, fmt.Sprintf("value %v != %v", a, b))
		}
	case Float:
		bv := b.(Float)
		if math.Float32bits(float32(av)) != math.Float32bits(float32(bv)) {
			return mismatch(path, fmt.Sprintf("value %v != %v", av, bv))
		}
	case Double:
		bv := b.(Double)
		if math.Float64bits(float64(av)) != math.Float64bits(float64(bv)) {
			return mismatch(path, fmt.Sprintf("value %v != %v", av, bv))
		}
	case ByteArray:
		return diffArray(av, b.(ByteArray), path)
	case IntArray:
		return diffArray(av, b.(IntArray), path)
	case LongArray:
		return diffArray(av, b.(LongArray), path)
	case *List:
		bv := b.(*List)
		if len(av.Elems) != len(bv.Elems) {
			return mismatch(path, fmt.Sprintf("list length %d != %d", len(av.Elems), len(bv.Elems)))
		}
		if len(av.Elems) > 0 && av.ElemType != bv.ElemType {
			return mismatch(path, fmt.Sprintf("list type %s != %s", av.ElemType, bv.ElemType))
		}
		for i := range av.Elems {
			if m := diff(av.Elems[i], bv.Elems[i], append(path, "["+strconv.Itoa(i)+"]")); m != nil {
				return m
			}
		}
	case *Compound:
		bv := b.(*Compound)
		for i, e := range av.entries {
			other, ok := bv.Get(e.Name)
			if !ok {
				return mismatch(append(path, pathKey(e.Name)), "missing on right side")
			}
			if m := diff(e.Value, other, append(path, pathKey(e.Name))); m != nil {
				return m
			}
			if i >= len(bv.entries) || bv.entries[i].Name != e.Name {
				return mismatch(append(path, pathKey(e.Name)), fmt.Sprintf("key order differs at position %d", i))
			}
		}
		if len(bv.entries) > len(av.entries) {
			extra := bv.entries[len(av.entries)].Name
			return mismatch(append(path, pathKey(extra)), "missing on left side")
		}
	}
	return nil
}

func diffArray[T int8 | int32 | int64](a, b []T, path []string) *Mismatch {
	if len(a) != len(b) {
		return mismatch(path, fmt.Sprintf("array length %d != %d", len(a), len(b)))
	}
	for i := range a {
		if a[i] != b[i] {
			return mismatch(append(path, "["+strconv.Itoa(i)+"]"), fmt.Sprintf("value %d != %d", a[i], b[i]))
		}
	}
	return nil
}

func pathKey(name string) string {
	if canLeaveUnquoted(name) {
		return name
	}
	var sb strings.Builder
	writeQuoted(&sb, name)
	return sb.String()
}

func mismatch(path []string, reason string) *Mismatch {
	var sb strings.Builder
	for i, p := range path {
		if i > 0 && !strings.HasPrefix(p, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return &Mismatch{Path: sb.String(), Reason: reason}
}
