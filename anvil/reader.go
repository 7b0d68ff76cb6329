package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/astei/anvil2snbt/internal/logging"
	"github.com/astei/anvil2snbt/nbt"
)

type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger that receives warnings about skipped slots.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithName sets the region path for sources that are not *os.File. The
// name provides the region coordinates and the directory searched for .mcc
// files.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

// Chunk is one decompressed chunk together with its slot metadata.
type Chunk struct {
	Coord     ChunkCoord
	Timestamp uint32
	Scheme    CompressionScheme
	External  bool
	// Data is the raw NBT stream.
	Data []byte
}

// Reader allows you to read an Anvil region file and extract its chunks. The
// reader is not safe for concurrent access; open one reader per goroutine if
// concurrent access is desired.
type Reader struct {
	source  io.ReadSeeker
	size    int64
	modTime time.Time
	logger  *slog.Logger

	Name             string
	regionX, regionZ int
	hasCoords        bool

	locations  [ChunkSlots]uint32
	timestamps [ChunkSlots]uint32
	slotErrs   [ChunkSlots]error
}

// OpenRegion opens the region file at path.
func OpenRegion(path string, opts ...Option) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reader, nil
}

// NewReader creates a Reader. The ownership of the source is transferred to
// this reader.
func NewReader(source io.ReadSeeker, opts ...Option) (reader *Reader, err error) {
	o := applyOptions(opts)
	reader = &Reader{source: source, logger: o.logger}

	if file, ok := source.(*os.File); ok {
		reader.Name = file.Name()
		if fi, statErr := file.Stat(); statErr == nil {
			reader.modTime = fi.ModTime()
		}
	}
	if o.name != "" {
		reader.Name = o.name
	}
	reader.regionX, reader.regionZ, reader.hasCoords = ParseRegionName(reader.Name)

	if reader.size, err = source.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	if err = reader.readHeader(); err != nil {
		return nil, err
	}
	reader.validateSlots()
	return reader, nil
}

func (r *Reader) readHeader() (err error) {
	if _, err = r.source.Seek(0, io.SeekStart); err != nil {
		return err
	}

	rawHeader := make([]byte, headerSectors*SectorSize)
	if _, err = io.ReadFull(r.source, rawHeader); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrHeaderTruncated
		}
		return err
	}

	headerIn := bytes.NewReader(rawHeader)
	if err = binary.Read(headerIn, binary.BigEndian, r.locations[:]); err != nil {
		return err
	}
	return binary.Read(headerIn, binary.BigEndian, r.timestamps[:])
}

// validateSlots marks slots whose location entries are unusable. Slots are
// checked in ascending sector order; a slot that starts inside the previous
// accepted slot is rejected, the earlier one is kept.
func (r *Reader) validateSlots() {
	type span struct{ index, start, end int }
	fileSectors := int((r.size + SectorSize - 1) / SectorSize)

	var spans []span
	for i, loc := range r.locations {
		if loc == 0 {
			continue
		}
		offset, count := int(loc>>8), int(loc&0xFF)
		switch {
		case count == 0:
			r.markCorrupt(i, "zero sector count")
		case offset < headerSectors:
			r.markCorrupt(i, "overlaps region header")
		case offset+count > fileSectors:
			r.markCorrupt(i, "extends past end of file")
		default:
			spans = append(spans, span{index: i, start: offset, end: offset + count})
		}
	}

	sort.Slice(spans, func(a, b int) bool {
		if spans[a].start != spans[b].start {
			return spans[a].start < spans[b].start
		}
		return spans[a].index < spans[b].index
	})
	end := headerSectors
	for _, s := range spans {
		if s.start < end {
			r.markCorrupt(s.index, "overlaps another chunk")
			continue
		}
		end = s.end
	}
}

func (r *Reader) markCorrupt(i int, reason string) {
	loc := r.locations[i]
	err := &CorruptRegionError{
		X:            i % RegionSize,
		Z:            i / RegionSize,
		SectorOffset: int(loc >> 8),
		SectorCount:  int(loc & 0xFF),
		Reason:       reason,
	}
	r.slotErrs[i] = err
	r.logger.Warn("skipping corrupt chunk slot",
		"region", r.Name, "x", err.X, "z", err.Z,
		"sector", err.SectorOffset, "count", err.SectorCount, "reason", reason)
}

// Coords returns the region coordinates parsed from the file name.
func (r *Reader) Coords() (x, z int, ok bool) {
	return r.regionX, r.regionZ, r.hasCoords
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) coord(x, z int) ChunkCoord {
	return ChunkCoord{RegionX: r.regionX, RegionZ: r.regionZ, LocalX: x, LocalZ: z}
}

func (r *Reader) ChunkExists(x, z int) bool {
	return validLocal(x, z) && r.locations[slotIndex(x, z)] != 0
}

// Timestamp returns the slot's last-modified time in epoch seconds.
func (r *Reader) Timestamp(x, z int) uint32 {
	return r.timestamps[slotIndex(x, z)]
}

// readChunkHeader reads the 5-byte length and compression prefix of slot i.
func (r *Reader) readChunkHeader(i int) (length int, marker byte, err error) {
	loc := r.locations[i]
	start := int64(loc>>8) * SectorSize
	if _, err = r.source.Seek(start, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("failed to seek: %w", err)
	}

	var payloadInfo struct {
		Length      int32
		Compression byte
	}
	if err = binary.Read(r.source, binary.BigEndian, &payloadInfo); err != nil {
		return 0, 0, fmt.Errorf("could not read payload header: %w", err)
	}

	length = int(payloadInfo.Length)
	external := payloadInfo.Compression&externalFlag != 0
	limit := int64(loc&0xFF) * SectorSize
	if start+limit > r.size {
		limit = r.size - start
	}
	if length < 1 || (!external && int64(length)+4 > limit) {
		return 0, 0, fmt.Errorf("%w: %d bytes in %d sectors", ErrInvalidChunkLength, length, loc&0xFF)
	}
	return length, payloadInfo.Compression, nil
}

func (r *Reader) externalPath(x, z int) (string, error) {
	c := r.coord(x, z)
	dir := filepath.Dir(r.Name)
	candidates := []string{
		filepath.Join(dir, ExternalChunkName(c.RegionX, c.RegionZ, c.WorldX(), c.WorldZ())),
		filepath.Join(dir, vanillaExternalChunkName(c.WorldX(), c.WorldZ())),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrExternalChunkMissing, candidates[0])
}

// ReadRaw returns the still-compressed payload of the chunk at the given
// region-local coordinates.
func (r *Reader) ReadRaw(x, z int) (payload []byte, scheme CompressionScheme, external bool, err error) {
	if !validLocal(x, z) {
		return nil, 0, false, fmt.Errorf("anvil: local coordinates (%d, %d) out of range", x, z)
	}
	i := slotIndex(x, z)
	if r.locations[i] == 0 {
		return nil, 0, false, &ChunkNotFoundError{X: x, Z: z}
	}
	if r.slotErrs[i] != nil {
		return nil, 0, false, r.slotErrs[i]
	}

	length, marker, err := r.readChunkHeader(i)
	if err != nil {
		return nil, 0, false, fmt.Errorf("chunk (%d, %d): %w", x, z, err)
	}
	scheme = CompressionScheme(marker &^ externalFlag)
	external = marker&externalFlag != 0
	if !scheme.Valid() {
		return nil, scheme, external, &UnsupportedCompressionError{Scheme: byte(scheme)}
	}

	if external {
		path, err := r.externalPath(x, z)
		if err != nil {
			return nil, scheme, external, fmt.Errorf("chunk (%d, %d): %w", x, z, err)
		}
		payload, err = os.ReadFile(path)
		if err != nil {
			return nil, scheme, external, fmt.Errorf("chunk (%d, %d): %w", x, z, err)
		}
		return payload, scheme, external, nil
	}

	payload = make([]byte, length-1)
	if _, err = io.ReadFull(r.source, payload); err != nil {
		return nil, scheme, external, fmt.Errorf("chunk (%d, %d): could not read payload data: %w", x, z, err)
	}
	return payload, scheme, external, nil
}

// ReadChunk reads and decompresses the chunk at the specified X and Z
// coordinates. Note that these coordinates are relative to the region file
// and are not world chunk coordinates.
func (r *Reader) ReadChunk(x, z int) (*Chunk, error) {
	payload, scheme, external, err := r.ReadRaw(x, z)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(scheme, payload)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d, %d): %w", x, z, err)
	}
	return &Chunk{
		Coord:     r.coord(x, z),
		Timestamp: r.Timestamp(x, z),
		Scheme:    scheme,
		External:  external,
		Data:      data,
	}, nil
}

// ReadChunkData returns the decompressed NBT bytes of a chunk and the scheme
// it was stored with.
func (r *Reader) ReadChunkData(x, z int) ([]byte, CompressionScheme, error) {
	chunk, err := r.ReadChunk(x, z)
	if err != nil {
		return nil, 0, err
	}
	return chunk.Data, chunk.Scheme, nil
}

// ReadChunkTag reads the chunk at the region-local coordinates and decodes
// its NBT.
func (r *Reader) ReadChunkTag(x, z int) (*nbt.NamedTag, error) {
	chunk, err := r.ReadChunk(x, z)
	if err != nil {
		return nil, err
	}
	nt, err := nbt.Decode(chunk.Data)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d, %d): %w", x, z, err)
	}
	return nt, nil
}

func (r *Reader) Close() error {
	if closer, ok := r.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
