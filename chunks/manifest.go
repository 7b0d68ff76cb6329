package chunks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/atomicfile"
	"github.com/astei/anvil2snbt/nbt"
)

const ManifestName = "manifest.snbt"

// Manifest describes a chunk folder. Its file starts with the
// "// Total chunks: N" comment so that the count can be read without a
// parse; the same information is kept in the structured body.
type Manifest struct {
	Source           string
	RegionX, RegionZ int
	Chunks           []ManifestEntry
	Failed           []ManifestFailure
}

type ManifestEntry struct {
	File        string
	X, Z        int
	Compression anvil.CompressionScheme
	Timestamp   uint32
	External    bool
}

type ManifestFailure struct {
	X, Z  int
	Error string
}

func (m *Manifest) compound() *nbt.Compound {
	region := nbt.NewCompound()
	region.Set("X", nbt.Int(m.RegionX))
	region.Set("Z", nbt.Int(m.RegionZ))

	entries := &nbt.List{ElemType: nbt.TagCompound}
	for _, e := range m.Chunks {
		c := nbt.NewCompound()
		c.Set("File", nbt.String(e.File))
		c.Set("X", nbt.Int(e.X))
		c.Set("Z", nbt.Int(e.Z))
		c.Set("Compression", nbt.String(e.Compression.String()))
		c.Set("Timestamp", nbt.Long(e.Timestamp))
		if e.External {
			c.Set("External", nbt.Byte(1))
		}
		entries.Elems = append(entries.Elems, c)
	}
	failed := &nbt.List{ElemType: nbt.TagCompound}
	for _, f := range m.Failed {
		c := nbt.NewCompound()
		c.Set("X", nbt.Int(f.X))
		c.Set("Z", nbt.Int(f.Z))
		c.Set("Error", nbt.String(f.Error))
		failed.Elems = append(failed.Elems, c)
	}

	root := nbt.NewCompound()
	root.Set("Source", nbt.String(m.Source))
	root.Set("Region", region)
	root.Set("TotalChunks", nbt.Int(len(m.Chunks)))
	root.Set("Chunks", entries)
	root.Set("Failed", failed)
	return root
}

// WriteManifest writes m into folder.
func WriteManifest(folder string, m *Manifest, indent string) error {
	var h nbt.Header
	h.Set(nbt.HeaderTotalChunks, strconv.Itoa(len(m.Chunks)))
	h.Set(KeyRegion, fmt.Sprintf("%d %d", m.RegionX, m.RegionZ))
	text := renderChunk(h, m.compound(), indent)
	return atomicfile.WriteFile(filepath.Join(folder, ManifestName), []byte(text))
}

// ReadManifest parses the manifest of folder.
func ReadManifest(folder string) (*Manifest, error) {
	path := filepath.Join(folder, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := nbt.ParseSNBTCompound(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := &Manifest{}
	if v, ok := root.Get("Source"); ok {
		if s, ok := v.(nbt.String); ok {
			m.Source = string(s)
		}
	}
	if v, ok := root.Get("Region"); ok {
		if c, ok := v.(*nbt.Compound); ok {
			m.RegionX, m.RegionZ = field(c, "X"), field(c, "Z")
		}
	}
	for _, c := range compounds(root, "Chunks") {
		e := ManifestEntry{
			File:      stringField(c, "File"),
			X:         field(c, "X"),
			Z:         field(c, "Z"),
			Timestamp: uint32(field(c, "Timestamp")),
			External:  field(c, "External") != 0,
		}
		scheme, err := anvil.ParseCompressionScheme(stringField(c, "Compression"))
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, e.File, err)
		}
		e.Compression = scheme
		m.Chunks = append(m.Chunks, e)
	}
	for _, c := range compounds(root, "Failed") {
		m.Failed = append(m.Failed, ManifestFailure{X: field(c, "X"), Z: field(c, "Z"), Error: stringField(c, "Error")})
	}
	return m, nil
}

// byFile indexes the manifest records by chunk file name.
func (m *Manifest) byFile() map[string]ManifestEntry {
	out := make(map[string]ManifestEntry)
	if m == nil {
		return out
	}
	for _, e := range m.Chunks {
		out[e.File] = e
	}
	return out
}

func compounds(root *nbt.Compound, key string) []*nbt.Compound {
	v, ok := root.Get(key)
	if !ok {
		return nil
	}
	l, ok := v.(*nbt.List)
	if !ok {
		return nil
	}
	var out []*nbt.Compound
	for _, e := range l.Elems {
		if c, ok := e.(*nbt.Compound); ok {
			out = append(out, c)
		}
	}
	return out
}

func field(c *nbt.Compound, key string) int {
	v, _ := c.Get(key)
	return intValue(v)
}

func stringField(c *nbt.Compound, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(nbt.String); ok {
			return string(s)
		}
	}
	return ""
}
