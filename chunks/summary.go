package chunks

import "github.com/astei/anvil2snbt/nbt"

// Summary holds the few chunk fields worth showing in a file header. Chunks
// written before 1.18 keep them under a "Level" compound; newer ones store
// them at the root.
type Summary struct {
	X, Z        int
	HasPos      bool
	DataVersion int
	Status      string
	Sections    int
}

func Summarize(root *nbt.Compound) Summary {
	var s Summary
	if root == nil {
		return s
	}
	if v, ok := root.Get("DataVersion"); ok {
		s.DataVersion = intValue(v)
	}

	level := root
	if v, ok := root.Get("Level"); ok {
		if c, ok := v.(*nbt.Compound); ok {
			level = c
		}
	}
	x, okX := level.Get("xPos")
	z, okZ := level.Get("zPos")
	if okX && okZ {
		s.X, s.Z, s.HasPos = intValue(x), intValue(z), true
	}
	if v, ok := level.Get("Status"); ok {
		if str, ok := v.(nbt.String); ok {
			s.Status = string(str)
		}
	}
	for _, key := range []string{"sections", "Sections"} {
		if v, ok := level.Get(key); ok {
			if l, ok := v.(*nbt.List); ok {
				s.Sections = l.Len()
			}
			break
		}
	}
	return s
}

func intValue(t nbt.Tag) int {
	switch v := t.(type) {
	case nbt.Byte:
		return int(v)
	case nbt.Short:
		return int(v)
	case nbt.Int:
		return int(v)
	case nbt.Long:
		return int(v)
	}
	return 0
}
