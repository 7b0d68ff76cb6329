package anvil

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// CompressionScheme is the low seven bits of a chunk's compression byte.
type CompressionScheme byte

const (
	CompressionGzip CompressionScheme = 1
	CompressionZlib CompressionScheme = 2
	CompressionNone CompressionScheme = 3
	CompressionLZ4  CompressionScheme = 4
)

// externalFlag marks a chunk whose payload lives in a .mcc file.
const externalFlag = 0x80

func (s CompressionScheme) Valid() bool {
	return s >= CompressionGzip && s <= CompressionLZ4
}

func (s CompressionScheme) String() string {
	switch s {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", byte(s))
	}
}

func ParseCompressionScheme(s string) (CompressionScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gzip", "1":
		return CompressionGzip, nil
	case "zlib", "deflate", "2":
		return CompressionZlib, nil
	case "none", "uncompressed", "3":
		return CompressionNone, nil
	case "lz4", "4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("anvil: unknown compression scheme %q", s)
	}
}

// Decompress returns the raw NBT bytes of a chunk payload.
func Decompress(scheme CompressionScheme, payload []byte) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	switch scheme {
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(payload))
	case CompressionZlib:
		r, err = zlib.NewReader(bytes.NewReader(payload))
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload)
	default:
		return nil, &UnsupportedCompressionError{Scheme: byte(scheme)}
	}
	if err != nil {
		return nil, fmt.Errorf("anvil: open %s payload: %w", scheme, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("anvil: read %s payload: %w", scheme, err)
	}
	return data, nil
}

// Compress encodes raw NBT bytes for storage with the given scheme.
func Compress(scheme CompressionScheme, data []byte) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   io.WriteCloser
	)
	switch scheme {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionZlib:
		w = zlib.NewWriter(&buf)
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	default:
		return nil, &UnsupportedCompressionError{Scheme: byte(scheme)}
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
