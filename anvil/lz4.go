package anvil

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"
)

// Minecraft stores LZ4 chunks with lz4-java's LZ4BlockOutputStream framing:
// each block is "LZ4Block", a token byte, then little-endian compressed
// length, decompressed length and a masked xxhash32 of the decompressed
// bytes. A block with both lengths zero ends the stream.
var lz4Magic = []byte("LZ4Block")

const (
	lz4HeaderSize   = 21
	lz4MethodRaw    = 0x10
	lz4MethodLZ4    = 0x20
	lz4BlockSize    = 1 << 16
	lz4MaxBlockSize = 1 << 25
	// lz4Level encodes the block size: 32 - nlz(lz4BlockSize-1) - 10.
	lz4Level = 6
	lz4Seed  = 0x9747b28c
)

func lz4Checksum(b []byte) uint32 {
	return xxhash.Checksum32S(b, lz4Seed) & 0x0FFFFFFF
}

func writeLZ4Header(buf *bytes.Buffer, method byte, compressed, decompressed int, checksum uint32) {
	var hdr [lz4HeaderSize]byte
	copy(hdr[:], lz4Magic)
	hdr[8] = method | lz4Level
	binary.LittleEndian.PutUint32(hdr[9:], uint32(compressed))
	binary.LittleEndian.PutUint32(hdr[13:], uint32(decompressed))
	binary.LittleEndian.PutUint32(hdr[17:], checksum)
	buf.Write(hdr[:])
}

func compressLZ4(data []byte) ([]byte, error) {
	var out bytes.Buffer
	dst := make([]byte, lz4.CompressBlockBound(lz4BlockSize))
	for off := 0; off < len(data); off += lz4BlockSize {
		block := data[off:min(off+lz4BlockSize, len(data))]
		n, err := lz4.CompressBlock(block, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("anvil: lz4 compress: %w", err)
		}
		method, payload := byte(lz4MethodLZ4), dst[:n]
		if n == 0 || n >= len(block) {
			method, payload = lz4MethodRaw, block
		}
		writeLZ4Header(&out, method, len(payload), len(block), lz4Checksum(block))
		out.Write(payload)
	}
	writeLZ4Header(&out, lz4MethodRaw, 0, 0, 0)
	return out.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		if len(data) < lz4HeaderSize || !bytes.Equal(data[:len(lz4Magic)], lz4Magic) {
			return nil, fmt.Errorf("%w: bad block header", ErrInvalidLZ4Stream)
		}
		method := data[8] & 0xF0
		compressed := binary.LittleEndian.Uint32(data[9:])
		decompressed := binary.LittleEndian.Uint32(data[13:])
		checksum := binary.LittleEndian.Uint32(data[17:])
		data = data[lz4HeaderSize:]

		if compressed == 0 && decompressed == 0 {
			continue
		}
		if decompressed > lz4MaxBlockSize || uint64(compressed) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: block lengths %d/%d", ErrInvalidLZ4Stream, compressed, decompressed)
		}
		block := make([]byte, decompressed)
		switch method {
		case lz4MethodRaw:
			if compressed != decompressed {
				return nil, fmt.Errorf("%w: raw block length mismatch", ErrInvalidLZ4Stream)
			}
			copy(block, data[:compressed])
		case lz4MethodLZ4:
			n, err := lz4.UncompressBlock(data[:compressed], block)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidLZ4Stream, err)
			}
			if n != len(block) {
				return nil, fmt.Errorf("%w: short block", ErrInvalidLZ4Stream)
			}
		default:
			return nil, fmt.Errorf("%w: unknown block method 0x%x", ErrInvalidLZ4Stream, method)
		}
		if lz4Checksum(block) != checksum {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidLZ4Stream)
		}
		out = append(out, block...)
		data = data[compressed:]
	}
	return out, nil
}
