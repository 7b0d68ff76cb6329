package nbt

import "fmt"

type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagTypeNames = [...]string{
	TagEnd:       "TAG_End",
	TagByte:      "TAG_Byte",
	TagShort:     "TAG_Short",
	TagInt:       "TAG_Int",
	TagLong:      "TAG_Long",
	TagFloat:     "TAG_Float",
	TagDouble:    "TAG_Double",
	TagByteArray: "TAG_Byte_Array",
	TagString:    "TAG_String",
	TagList:      "TAG_List",
	TagCompound:  "TAG_Compound",
	TagIntArray:  "TAG_Int_Array",
	TagLongArray: "TAG_Long_Array",
}

func (t TagType) String() string {
	if t.Valid() {
		return tagTypeNames[t]
	}
	return fmt.Sprintf("TAG_Unknown(%d)", byte(t))
}

// Valid reports whether t is one of the thirteen tag ids defined by the format.
func (t TagType) Valid() bool {
	return t <= TagLongArray
}

// Tag is a single NBT value. The set of implementations is closed: every
// variant of the format has exactly one concrete type in this package, so a
// type switch over Tag can be exhaustive.
type Tag interface {
	Type() TagType
	isTag()
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []int8
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (ByteArray) Type() TagType { return TagByteArray }
func (String) Type() TagType    { return TagString }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }
func (*List) Type() TagType     { return TagList }
func (*Compound) Type() TagType { return TagCompound }

func (Byte) isTag()      {}
func (Short) isTag()     {}
func (Int) isTag()       {}
func (Long) isTag()      {}
func (Float) isTag()     {}
func (Double) isTag()    {}
func (ByteArray) isTag() {}
func (String) isTag()    {}
func (IntArray) isTag()  {}
func (LongArray) isTag() {}
func (*List) isTag()     {}
func (*Compound) isTag() {}

// List is a homogeneous sequence of unnamed tags. An empty list still carries
// its declared element type; TagEnd is the conventional type for empty lists.
type List struct {
	ElemType TagType
	Elems    []Tag
}

// NewList returns a list of the given element type holding elems. It fails if
// any element is of a different type.
func NewList(elemType TagType, elems ...Tag) (*List, error) {
	list := &List{ElemType: elemType, Elems: make([]Tag, 0, len(elems))}
	for _, elem := range elems {
		if err := list.Append(elem); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Append adds t to the end of the list. Appending to an empty list of type
// TagEnd adopts the type of t.
func (l *List) Append(t Tag) error {
	if len(l.Elems) == 0 && l.ElemType == TagEnd {
		l.ElemType = t.Type()
	}
	if t.Type() != l.ElemType {
		return fmt.Errorf("nbt: cannot add %s to list of %s", t.Type(), l.ElemType)
	}
	l.Elems = append(l.Elems, t)
	return nil
}

func (l *List) Len() int {
	return len(l.Elems)
}

// Entry is one named member of a Compound.
type Entry struct {
	Name  string
	Value Tag
}

// Compound is an ordered set of named tags. Names are unique; iteration
// order is insertion order, which the binary and text codecs both preserve.
type Compound struct {
	entries []Entry
	index   map[string]int
}

func NewCompound() *Compound {
	return &Compound{index: make(map[string]int)}
}

// Set stores value under name. An existing entry keeps its position.
func (c *Compound) Set(name string, value Tag) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[name]; ok {
		c.entries[i].Value = value
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, Entry{Name: name, Value: value})
}

func (c *Compound) Get(name string) (Tag, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.entries[i].Value, true
}

func (c *Compound) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

func (c *Compound) Len() int {
	return len(c.entries)
}

// Entries returns the members in insertion order. The slice must not be
// modified.
func (c *Compound) Entries() []Entry {
	return c.entries
}

func (c *Compound) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Name
	}
	return keys
}

// NamedTag is the root of an NBT stream: a compound together with its name,
// which is usually empty.
type NamedTag struct {
	Name string
	Root *Compound
}

// Count returns the number of tags in the tree rooted at t, t included.
func Count(t Tag) int {
	switch v := t.(type) {
	case *List:
		n := 1
		for _, e := range v.Elems {
			n += Count(e)
		}
		return n
	case *Compound:
		n := 1
		for _, e := range v.entries {
			n += Count(e.Value)
		}
		return n
	default:
		return 1
	}
}
