package nbt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astei/anvil2snbt/internal/atomicfile"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression is the optional wrapping around a standalone NBT file.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return "none"
	}
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "uncompressed":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	default:
		return CompressionNone, fmt.Errorf("nbt: unknown file compression %q", s)
	}
}

// DetectCompression inspects the leading magic bytes of data.
func DetectCompression(data []byte) Compression {
	if len(data) < 2 {
		return CompressionNone
	}
	if data[0] == 0x1F && data[1] == 0x8B {
		return CompressionGzip
	}
	if data[0] == 0x78 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0 {
		return CompressionZlib
	}
	return CompressionNone
}

// Decompress unwraps data according to its magic bytes. Data without a
// recognised magic is returned unchanged.
func Decompress(data []byte) ([]byte, Compression, error) {
	c := DetectCompression(data)
	var (
		r   io.ReadCloser
		err error
	)
	switch c {
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case CompressionZlib:
		r, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, c, fmt.Errorf("nbt: open %s stream: %w", c, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, c, fmt.Errorf("nbt: read %s stream: %w", c, err)
	}
	return out, c, nil
}

// Compress wraps raw NBT bytes.
func Compress(data []byte, c Compression) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   io.WriteCloser
	)
	switch c {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionZlib:
		w = zlib.NewWriter(&buf)
	default:
		return data, nil
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile reads a standalone .nbt/.dat file and reports the wrapping it
// was stored with.
func ReadFile(path string) (*NamedTag, Compression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, CompressionNone, err
	}
	raw, c, err := Decompress(data)
	if err != nil {
		return nil, c, fmt.Errorf("%s: %w", path, err)
	}
	nt, err := Decode(raw)
	if err != nil {
		return nil, c, fmt.Errorf("%s: %w", path, err)
	}
	return nt, c, nil
}

// WriteFile atomically writes nt to path with the given wrapping.
func WriteFile(path string, nt *NamedTag, c Compression) error {
	f, err := atomicfile.Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var closer io.Closer
	switch c {
	case CompressionGzip:
		gw := gzip.NewWriter(bw)
		w, closer = gw, gw
	case CompressionZlib:
		zw := zlib.NewWriter(bw)
		w, closer = zw, zw
	}
	if err := NewEncoder(w).Encode(nt.Root, nt.Name); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Commit()
}
