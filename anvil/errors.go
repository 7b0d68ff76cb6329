package anvil

import (
	"errors"
	"fmt"
)

var (
	ErrChunkNotFound          = errors.New("anvil: chunk not found")
	ErrInvalidChunkLength     = errors.New("anvil: invalid chunk length")
	ErrUnsupportedCompression = errors.New("anvil: unsupported compression scheme")
	ErrCorruptRegion          = errors.New("anvil: corrupt region")
	ErrHeaderTruncated        = errors.New("anvil: region header truncated")
	ErrExternalChunkMissing   = errors.New("anvil: external chunk file missing")
	ErrInvalidLZ4Stream       = errors.New("anvil: invalid lz4 block stream")
)

// ChunkNotFoundError is returned when a slot holds no chunk. X and Z are
// region-local coordinates.
type ChunkNotFoundError struct {
	X, Z int
}

func (e *ChunkNotFoundError) Error() string {
	return fmt.Sprintf("anvil: chunk not found at (%d, %d)", e.X, e.Z)
}

func (e *ChunkNotFoundError) Unwrap() error {
	return ErrChunkNotFound
}

type UnsupportedCompressionError struct {
	Scheme byte
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("anvil: unsupported compression scheme %d", e.Scheme)
}

func (e *UnsupportedCompressionError) Unwrap() error {
	return ErrUnsupportedCompression
}

// CorruptRegionError marks a slot whose location entry cannot be trusted.
// The slot is skipped; the rest of the region stays readable.
type CorruptRegionError struct {
	X, Z         int
	SectorOffset int
	SectorCount  int
	Reason       string
}

func (e *CorruptRegionError) Error() string {
	return fmt.Sprintf("anvil: corrupt slot (%d, %d) at sector %d+%d: %s", e.X, e.Z, e.SectorOffset, e.SectorCount, e.Reason)
}

func (e *CorruptRegionError) Unwrap() error {
	return ErrCorruptRegion
}
