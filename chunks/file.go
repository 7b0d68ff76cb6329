package chunks

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/nbt"
)

// Header keys of a chunk file.
const (
	KeyRegion      = "Region"
	KeyChunk       = "Chunk"
	KeyLocal       = "Local"
	KeyCompression = "Compression"
	KeyTimestamp   = "Timestamp"
	KeyExternal    = "External"
	KeyRootName    = "Root name"
	KeyDataVersion = "DataVersion"
	KeyStatus      = "Status"
)

// FileName names the chunk file for world chunk coordinates.
func FileName(chunkX, chunkZ int) string {
	return fmt.Sprintf("chunk_%d_%d.snbt", chunkX, chunkZ)
}

// ParseFileName returns the world coordinates encoded in a chunk file name.
func ParseFileName(name string) (chunkX, chunkZ int, ok bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "chunk_") || !strings.HasSuffix(base, ".snbt") {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(base, "chunk_"), ".snbt"), "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(parts[0])
	z, errZ := strconv.Atoi(parts[1])
	if errX != nil || errZ != nil {
		return 0, 0, false
	}
	return x, z, true
}

// Meta is what a chunk file header records about the slot it came from.
type Meta struct {
	Coord     anvil.ChunkCoord
	Scheme    anvil.CompressionScheme
	Timestamp uint32
	External  bool
	RootName  string
	// HasTimestamp is set when the header carried a readable timestamp.
	HasTimestamp bool
}

// Header builds the comment block written above a chunk.
func (m Meta) Header(s Summary) nbt.Header {
	var h nbt.Header
	h.Set(KeyRegion, fmt.Sprintf("%d %d", m.Coord.RegionX, m.Coord.RegionZ))
	h.Set(KeyChunk, fmt.Sprintf("%d %d", m.Coord.WorldX(), m.Coord.WorldZ()))
	h.Set(KeyLocal, fmt.Sprintf("%d %d", m.Coord.LocalX, m.Coord.LocalZ))
	h.Set(KeyCompression, m.Scheme.String())
	h.Set(KeyTimestamp, strconv.FormatUint(uint64(m.Timestamp), 10))
	if m.External {
		h.Set(KeyExternal, "true")
	}
	if m.RootName != "" {
		h.Set(KeyRootName, strconv.Quote(m.RootName))
	}
	if s.DataVersion != 0 {
		h.Set(KeyDataVersion, strconv.Itoa(s.DataVersion))
	}
	if s.Status != "" {
		h.Set(KeyStatus, s.Status)
	}
	return h
}

// ParseMeta reads back what a chunk header recorded. Missing or unreadable
// fields stay zero.
func ParseMeta(h nbt.Header) Meta {
	var m Meta
	if v, ok := h.GetInts(KeyChunk); ok && len(v) == 2 {
		m.Coord = anvil.CoordFromWorld(v[0], v[1])
	}
	if v, ok := h.Get(KeyCompression); ok {
		m.Scheme, _ = anvil.ParseCompressionScheme(v)
	}
	if v, ok := h.Get(KeyTimestamp); ok {
		if ts, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil {
			m.Timestamp, m.HasTimestamp = uint32(ts), true
		}
	}
	if v, ok := h.Get(KeyExternal); ok {
		m.External, _ = strconv.ParseBool(v)
	}
	if v, ok := h.Get(KeyRootName); ok {
		if name, err := strconv.Unquote(v); err == nil {
			m.RootName = name
		}
	}
	return m
}

func renderChunk(h nbt.Header, root *nbt.Compound, indent string) string {
	var sb strings.Builder
	sb.WriteString(h.String())
	if indent != "" {
		sb.WriteString(nbt.ToSNBTIndent(root, indent))
	} else {
		sb.WriteString(nbt.ToSNBT(root))
	}
	sb.WriteByte('\n')
	return sb.String()
}
