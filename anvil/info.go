package anvil

import (
	"os"
	"time"
)

// ChunkDescriptor summarises one present slot.
type ChunkDescriptor struct {
	ChunkX          int               `json:"chunkX"`
	ChunkZ          int               `json:"chunkZ"`
	LocalX          int               `json:"localX"`
	LocalZ          int               `json:"localZ"`
	SectorOffset    int               `json:"sectorOffset"`
	SectorCount     int               `json:"sectorCount"`
	DataSize        int               `json:"dataSize"`
	CompressionType CompressionScheme `json:"compressionType"`
	IsOversized     bool              `json:"isOversized"`
	IsValid         bool              `json:"isValid"`
	LastModified    time.Time         `json:"lastModified"`
	// Err explains why the chunk is invalid.
	Err error `json:"-"`
}

// RegionInfo is the summary reported for a whole region file.
type RegionInfo struct {
	Path          string    `json:"path"`
	RegionX       int       `json:"regionX"`
	RegionZ       int       `json:"regionZ"`
	FileSize      int64     `json:"fileSize"`
	TotalChunks   int       `json:"totalChunks"`
	PresentChunks int       `json:"presentChunks"`
	ValidChunks   int       `json:"validChunks"`
	LastModified  time.Time `json:"lastModified"`
}

// ListChunks describes every present slot in slot order. A chunk is valid
// when its slot is sound and its payload decompresses and decodes as NBT.
func (r *Reader) ListChunks() []ChunkDescriptor {
	out := r.Slots()
	for i := range out {
		d := &out[i]
		if !d.IsValid {
			continue
		}
		if _, err := r.ReadChunkTag(d.LocalX, d.LocalZ); err != nil {
			d.IsValid, d.Err = false, err
		}
	}
	return out
}

// Slots is ListChunks without decoding payloads: IsValid only reports that
// the location entry is sound, the chunk header reads and the compression
// scheme is known. Callers that decode every chunk anyway start from here.
func (r *Reader) Slots() []ChunkDescriptor {
	var out []ChunkDescriptor
	for i, loc := range r.locations {
		if loc != 0 {
			out = append(out, r.describe(i))
		}
	}
	return out
}

func (r *Reader) describe(i int) ChunkDescriptor {
	loc := r.locations[i]
	c := r.coord(i%RegionSize, i/RegionSize)
	d := ChunkDescriptor{
		ChunkX:       c.WorldX(),
		ChunkZ:       c.WorldZ(),
		LocalX:       c.LocalX,
		LocalZ:       c.LocalZ,
		SectorOffset: int(loc >> 8),
		SectorCount:  int(loc & 0xFF),
	}
	if ts := r.timestamps[i]; ts != 0 {
		d.LastModified = time.Unix(int64(ts), 0).UTC()
	}
	if d.Err = r.slotErrs[i]; d.Err != nil {
		return d
	}

	length, marker, err := r.readChunkHeader(i)
	if err != nil {
		d.Err = err
		return d
	}
	d.CompressionType = CompressionScheme(marker &^ externalFlag)
	d.IsOversized = marker&externalFlag != 0
	d.DataSize = length - 1
	if !d.CompressionType.Valid() {
		d.Err = &UnsupportedCompressionError{Scheme: byte(d.CompressionType)}
		return d
	}
	if d.IsOversized {
		path, err := r.externalPath(c.LocalX, c.LocalZ)
		if err != nil {
			d.Err = err
			return d
		}
		fi, err := os.Stat(path)
		if err != nil {
			d.Err = err
			return d
		}
		d.DataSize = int(fi.Size())
	}
	d.IsValid = true
	return d
}

// Info summarises the region.
func (r *Reader) Info() RegionInfo {
	info := RegionInfo{
		Path:         r.Name,
		RegionX:      r.regionX,
		RegionZ:      r.regionZ,
		FileSize:     r.size,
		TotalChunks:  ChunkSlots,
		LastModified: r.modTime,
	}
	var newest time.Time
	for _, d := range r.ListChunks() {
		info.PresentChunks++
		if d.IsValid {
			info.ValidChunks++
		}
		if d.LastModified.After(newest) {
			newest = d.LastModified
		}
	}
	// Sources without a file fall back to the newest chunk timestamp.
	if info.LastModified.IsZero() {
		info.LastModified = newest
	}
	return info
}

// GetRegionInfo opens the region at path and summarises it.
func GetRegionInfo(path string, opts ...Option) (*RegionInfo, error) {
	r, err := OpenRegion(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	info := r.Info()
	return &info, nil
}

// IsValidAnvilFile reports whether path holds a readable region header.
func IsValidAnvilFile(path string) bool {
	r, err := OpenRegion(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}
