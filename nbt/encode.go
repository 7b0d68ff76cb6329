package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrStringTooLong = errors.New("nbt: string longer than 65535 bytes")

type Encoder struct {
	w   io.Writer
	buf [8]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes nt as a binary NBT stream.
func Encode(nt *NamedTag) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(nt.Root, nt.Name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes root as a compound named tagName.
func (e *Encoder) Encode(root *Compound, tagName string) (err error) {
	if root == nil {
		return errors.New("nbt: nil root compound")
	}
	if err = e.writeByte(byte(TagCompound)); err != nil {
		return
	}
	if err = e.writeString(tagName); err != nil {
		return
	}
	return e.writeCompound(root)
}

func (e *Encoder) write(p []byte) error {
	_, err := e.w.Write(p)
	return err
}

func (e *Encoder) writeByte(b byte) error {
	e.buf[0] = b
	return e.write(e.buf[:1])
}

func (e *Encoder) writeUint16(v uint16) error {
	binary.BigEndian.PutUint16(e.buf[:2], v)
	return e.write(e.buf[:2])
}

func (e *Encoder) writeUint32(v uint32) error {
	binary.BigEndian.PutUint32(e.buf[:4], v)
	return e.write(e.buf[:4])
}

func (e *Encoder) writeUint64(v uint64) error {
	binary.BigEndian.PutUint64(e.buf[:8], v)
	return e.write(e.buf[:8])
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	if err := e.writeUint16(uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writePayload(t Tag) error {
	switch v := t.(type) {
	case Byte:
		return e.writeByte(byte(v))
	case Short:
		return e.writeUint16(uint16(v))
	case Int:
		return e.writeUint32(uint32(v))
	case Long:
		return e.writeUint64(uint64(v))
	case Float:
		return e.writeUint32(math.Float32bits(float32(v)))
	case Double:
		return e.writeUint64(math.Float64bits(float64(v)))
	case ByteArray:
		if err := e.writeUint32(uint32(len(v))); err != nil {
			return err
		}
		raw := make([]byte, len(v))
		for i, b := range v {
			raw[i] = byte(b)
		}
		return e.write(raw)
	case String:
		return e.writeString(string(v))
	case *List:
		return e.writeList(v)
	case *Compound:
		return e.writeCompound(v)
	case IntArray:
		if err := e.writeUint32(uint32(len(v))); err != nil {
			return err
		}
		raw := make([]byte, len(v)*4)
		for i, n := range v {
			binary.BigEndian.PutUint32(raw[i*4:], uint32(n))
		}
		return e.write(raw)
	case LongArray:
		if err := e.writeUint32(uint32(len(v))); err != nil {
			return err
		}
		raw := make([]byte, len(v)*8)
		for i, n := range v {
			binary.BigEndian.PutUint64(raw[i*8:], uint64(n))
		}
		return e.write(raw)
	case nil:
		return errors.New("nbt: nil tag")
	default:
		return fmt.Errorf("nbt: cannot encode %T", t)
	}
}

func (e *Encoder) writeList(l *List) error {
	if err := e.writeByte(byte(l.ElemType)); err != nil {
		return err
	}
	if err := e.writeUint32(uint32(len(l.Elems))); err != nil {
		return err
	}
	for i, elem := range l.Elems {
		if elem == nil || elem.Type() != l.ElemType {
			return fmt.Errorf("nbt: list element %d does not match list type %s", i, l.ElemType)
		}
		if err := e.writePayload(elem); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeCompound(c *Compound) error {
	for _, entry := range c.entries {
		if entry.Value == nil {
			return fmt.Errorf("nbt: nil value for %q", entry.Name)
		}
		if err := e.writeByte(byte(entry.Value.Type())); err != nil {
			return err
		}
		if err := e.writeString(entry.Name); err != nil {
			return err
		}
		if err := e.writePayload(entry.Value); err != nil {
			return err
		}
	}
	return e.writeByte(byte(TagEnd))
}
