package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// maxDepth matches the nesting limit Minecraft enforces when reading NBT.
const maxDepth = 512

// readStep bounds a single allocation while reading arrays, so a corrupt
// length prefix fails with ErrTruncated instead of exhausting memory.
const readStep = 1 << 20

// Decoder reads a binary NBT stream. It expects the stream to be already
// decompressed; see Decompress and ReadFile for wrapped files.
type Decoder struct {
	r   io.Reader
	off int64
	buf [8]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode decodes data as a root compound.
func Decode(data []byte) (*NamedTag, error) {
	return NewDecoder(bytes.NewReader(data)).Decode()
}

// Decode reads one named root compound.
func (d *Decoder) Decode() (*NamedTag, error) {
	start := d.off
	typ, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if TagType(typ) != TagCompound {
		return nil, &FormatError{Offset: start, Err: ErrNotACompoundRoot, Type: typ}
	}
	name, err := d.readString()
	if err != nil {
		return nil, err
	}
	root, err := d.readCompound(1)
	if err != nil {
		return nil, err
	}
	return &NamedTag{Name: name, Root: root}, nil
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.off
}

func (d *Decoder) read(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &FormatError{Offset: d.off, Err: ErrTruncated}
		}
		return err
	}
	return nil
}

func (d *Decoder) readRaw(n int) ([]byte, error) {
	if n <= readStep {
		b := make([]byte, n)
		return b, d.read(b)
	}
	out := make([]byte, 0, readStep)
	for len(out) < n {
		k := n - len(out)
		if k > readStep {
			k = readStep
		}
		chunk := make([]byte, k)
		if err := d.read(chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (d *Decoder) readByte() (byte, error) {
	if err := d.read(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) readUint16() (uint16, error) {
	if err := d.read(d.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(d.buf[:2]), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	if err := d.read(d.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(d.buf[:4]), nil
}

func (d *Decoder) readUint64() (uint64, error) {
	if err := d.read(d.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(d.buf[:8]), nil
}

func (d *Decoder) readLength() (int, error) {
	start := d.off
	n, err := d.readUint32()
	if err != nil {
		return 0, err
	}
	if int32(n) < 0 {
		return 0, &FormatError{Offset: start, Err: ErrNegativeLength}
	}
	return int(int32(n)), nil
}

func (d *Decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	b, err := d.readRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) readPayload(typ TagType, depth int) (Tag, error) {
	switch typ {
	case TagByte:
		b, err := d.readByte()
		return Byte(int8(b)), err
	case TagShort:
		v, err := d.readUint16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.readUint32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.readUint64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.readUint32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.readUint64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		raw, err := d.readRaw(n)
		if err != nil {
			return nil, err
		}
		arr := make(ByteArray, n)
		for i, b := range raw {
			arr[i] = int8(b)
		}
		return arr, nil
	case TagString:
		s, err := d.readString()
		return String(s), err
	case TagList:
		return d.readList(depth + 1)
	case TagCompound:
		return d.readCompound(depth + 1)
	case TagIntArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		raw, err := d.readRaw(n * 4)
		if err != nil {
			return nil, err
		}
		arr := make(IntArray, n)
		for i := range arr {
			arr[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
		}
		return arr, nil
	case TagLongArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		raw, err := d.readRaw(n * 8)
		if err != nil {
			return nil, err
		}
		arr := make(LongArray, n)
		for i := range arr {
			arr[i] = int64(binary.BigEndian.Uint64(raw[i*8:]))
		}
		return arr, nil
	default:
		return nil, &FormatError{Offset: d.off, Err: ErrUnknownTagType, Type: byte(typ)}
	}
}

func (d *Decoder) readList(depth int) (*List, error) {
	if depth > maxDepth {
		return nil, &FormatError{Offset: d.off, Err: ErrTooDeep}
	}
	typeOffset := d.off
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}
	elemType := TagType(b)
	if !elemType.Valid() {
		return nil, &FormatError{Offset: typeOffset, Err: ErrUnknownTagType, Type: b}
	}
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if elemType == TagEnd && n > 0 {
		return nil, &FormatError{Offset: typeOffset, Err: ErrUntypedList}
	}
	capacity := n
	if capacity > 1024 {
		capacity = 1024
	}
	list := &List{ElemType: elemType, Elems: make([]Tag, 0, capacity)}
	for i := 0; i < n; i++ {
		elem, err := d.readPayload(elemType, depth)
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)
	}
	return list, nil
}

func (d *Decoder) readCompound(depth int) (*Compound, error) {
	if depth > maxDepth {
		return nil, &FormatError{Offset: d.off, Err: ErrTooDeep}
	}
	c := NewCompound()
	for {
		typeOffset := d.off
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		typ := TagType(b)
		if typ == TagEnd {
			return c, nil
		}
		if !typ.Valid() {
			return nil, &FormatError{Offset: typeOffset, Err: ErrUnknownTagType, Type: b}
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readPayload(typ, depth)
		if err != nil {
			return nil, err
		}
		c.Set(name, value)
	}
}
