package nbt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffReportsPath(t *testing.T) {
	a, err := ParseSNBT(`{Level:{Sections:[{Y:0b},{Y:1b,"block states":[L;1L,2L]}]}}`)
	require.NoError(t, err)
	b, err := ParseSNBT(`{Level:{Sections:[{Y:0b},{Y:1b,"block states":[L;1L,3L]}]}}`)
	require.NoError(t, err)

	m := Diff(a, b)
	require.NotNil(t, m)
	assert.Equal(t, `Level.Sections[1]."block states"[1]`, m.Path)
	assert.Equal(t, "value 2 != 3", m.Reason)
}

func TestDiffKeyOrder(t *testing.T) {
	a, _ := ParseSNBT(`{x:1,z:2}`)
	b, _ := ParseSNBT(`{z:2,x:1}`)
	m := Diff(a, b)
	require.NotNil(t, m)
	assert.Equal(t, "x", m.Path)
	assert.Contains(t, m.Reason, "key order")
}

func TestDiffMissingKeys(t *testing.T) {
	a, _ := ParseSNBT(`{x:1}`)
	b, _ := ParseSNBT(`{x:1,y:2}`)
	assert.Equal(t, &Mismatch{Path: "y", Reason: "missing on left side"}, Diff(a, b))
	assert.Equal(t, &Mismatch{Path: "y", Reason: "missing on right side"}, Diff(b, a))
}

func TestEqualFloatBits(t *testing.T) {
	assert.True(t, Equal(Double(math.NaN()), Double(math.NaN())))
	assert.False(t, Equal(Double(0), Double(math.Copysign(0, -1))))
	assert.False(t, Equal(Int(1), Long(1)))
}

func TestEqualIgnoresEmptyListType(t *testing.T) {
	assert.True(t, Equal(&List{ElemType: TagCompound}, &List{ElemType: TagEnd}))
	assert.False(t, Equal(&List{ElemType: TagInt, Elems: []Tag{Int(1)}}, &List{ElemType: TagInt}))
}
