package anvil

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/astei/anvil2snbt/internal/atomicfile"
)

// ChunkEntry is one chunk handed to the writer. Data is already compressed
// with Scheme.
type ChunkEntry struct {
	LocalX, LocalZ int
	// Timestamp is in epoch seconds and is written as given, zero included.
	Timestamp uint32
	Scheme    CompressionScheme
	Data      []byte
}

// WriteStats describes what a Writer produced.
type WriteStats struct {
	Chunks         int
	ExternalChunks int
	Sectors        int
}

// Writer packs chunks sequentially after the header into a temporary file
// that replaces the target when Close succeeds. Oversized chunks go to .mcc
// files next to the region.
type Writer struct {
	path             string
	regionX, regionZ int
	logger           *slog.Logger

	file       *atomicfile.File
	out        *bufio.Writer
	locations  [ChunkSlots]uint32
	timestamps [ChunkSlots]uint32
	external   map[int][]byte
	nextSector int
	stats      WriteStats
	closed     bool
}

// NewWriter starts writing a region to path.
func NewWriter(path string, opts ...Option) (*Writer, error) {
	o := applyOptions(opts)
	w := &Writer{
		path:       path,
		logger:     o.logger,
		external:   make(map[int][]byte),
		nextSector: headerSectors,
	}
	var ok bool
	if w.regionX, w.regionZ, ok = ParseRegionName(path); !ok {
		w.logger.Debug("region name carries no coordinates, assuming r.0.0", "path", path)
	}

	f, err := atomicfile.Create(path)
	if err != nil {
		return nil, err
	}
	w.file = f
	w.out = bufio.NewWriterSize(f, 1<<16)
	if _, err := w.out.Write(make([]byte, headerSectors*SectorSize)); err != nil {
		f.Abort()
		return nil, err
	}
	return w, nil
}

// WriteChunk appends one chunk. Chunks needing more than 255 sectors are
// stored externally whatever their scheme.
func (w *Writer) WriteChunk(e ChunkEntry) error {
	if w.closed {
		return errors.New("anvil: write to closed region writer")
	}
	if !validLocal(e.LocalX, e.LocalZ) {
		return fmt.Errorf("anvil: local coordinates (%d, %d) out of range", e.LocalX, e.LocalZ)
	}
	if !e.Scheme.Valid() {
		return &UnsupportedCompressionError{Scheme: byte(e.Scheme)}
	}
	i := slotIndex(e.LocalX, e.LocalZ)
	if w.locations[i] != 0 {
		return fmt.Errorf("anvil: chunk (%d, %d) written twice", e.LocalX, e.LocalZ)
	}

	length := len(e.Data) + 1
	sectors := (4 + length + SectorSize - 1) / SectorSize
	marker := byte(e.Scheme)
	payload := e.Data
	if sectors > maxSectorCount {
		w.external[i] = e.Data
		marker |= externalFlag
		payload = nil
		length = 1
		sectors = 1
		w.stats.ExternalChunks++
	}
	if w.nextSector+sectors > maxSectorIndex {
		return fmt.Errorf("anvil: region %s exceeds addressable sectors", w.path)
	}

	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(length))
	hdr[4] = marker
	if _, err := w.out.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.out.Write(payload); err != nil {
		return err
	}
	if pad := sectors*SectorSize - 4 - length; pad > 0 {
		if _, err := w.out.Write(make([]byte, pad)); err != nil {
			return err
		}
	}

	w.locations[i] = uint32(w.nextSector)<<8 | uint32(sectors)
	w.timestamps[i] = e.Timestamp
	w.nextSector += sectors
	w.stats.Chunks++
	w.stats.Sectors = w.nextSector
	return nil
}

func (w *Writer) Stats() WriteStats {
	return w.stats
}

func (w *Writer) externalPath(i int) string {
	c := ChunkCoord{RegionX: w.regionX, RegionZ: w.regionZ, LocalX: i % RegionSize, LocalZ: i / RegionSize}
	return filepath.Join(filepath.Dir(w.path), ExternalChunkName(c.RegionX, c.RegionZ, c.WorldX(), c.WorldZ()))
}

// Close writes the header tables, the external chunk files and moves the
// region into place. Stale .mcc files of chunks now stored inline are
// removed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Abort()

	if err := w.out.Flush(); err != nil {
		return err
	}
	header := make([]byte, headerSectors*SectorSize)
	for i := 0; i < ChunkSlots; i++ {
		binary.BigEndian.PutUint32(header[i*4:], w.locations[i])
		binary.BigEndian.PutUint32(header[SectorSize+i*4:], w.timestamps[i])
	}
	if _, err := w.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("write region header: %w", err)
	}

	indices := make([]int, 0, len(w.external))
	for i := range w.external {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if err := atomicfile.WriteFile(w.externalPath(i), w.external[i]); err != nil {
			return fmt.Errorf("write external chunk: %w", err)
		}
	}

	if err := w.file.Commit(); err != nil {
		return err
	}

	for i := 0; i < ChunkSlots; i++ {
		if _, ok := w.external[i]; ok {
			continue
		}
		err := os.Remove(w.externalPath(i))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("could not remove stale external chunk", "path", w.externalPath(i), "error", err)
		}
	}
	return nil
}

// Abort discards everything written so far.
func (w *Writer) Abort() {
	w.closed = true
	w.file.Abort()
}

// WriteRegion writes entries to a new region at path in slot order.
func WriteRegion(path string, entries []ChunkEntry, opts ...Option) (WriteStats, error) {
	sorted := make([]ChunkEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(a, b int) bool {
		return slotIndex(sorted[a].LocalX, sorted[a].LocalZ) < slotIndex(sorted[b].LocalX, sorted[b].LocalZ)
	})

	w, err := NewWriter(path, opts...)
	if err != nil {
		return WriteStats{}, err
	}
	for _, e := range sorted {
		if err := w.WriteChunk(e); err != nil {
			w.Abort()
			return w.Stats(), err
		}
	}
	if err := w.Close(); err != nil {
		return w.Stats(), err
	}
	return w.Stats(), nil
}
