package nbt

import (
	"errors"
	"fmt"
)

var (
	ErrNotACompoundRoot = errors.New("nbt: root tag is not a compound")
	ErrUnknownTagType   = errors.New("nbt: unknown tag type")
	ErrTruncated        = errors.New("nbt: truncated data")
	ErrNegativeLength   = errors.New("nbt: negative length")
	ErrTooDeep          = errors.New("nbt: nesting too deep")
	ErrUntypedList      = errors.New("nbt: non-empty list of TAG_End")
)

// FormatError describes malformed binary NBT. Offset is the position in the
// uncompressed stream where decoding failed.
type FormatError struct {
	Offset int64
	Err    error
	// Type is the offending type byte for ErrUnknownTagType and
	// ErrNotACompoundRoot.
	Type byte
}

func (e *FormatError) Error() string {
	if errors.Is(e.Err, ErrUnknownTagType) || errors.Is(e.Err, ErrNotACompoundRoot) {
		return fmt.Sprintf("%s (type %d) at offset %d", e.Err.Error(), e.Type, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d", e.Err.Error(), e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ParseError reports a violation of the SNBT grammar.
type ParseError struct {
	Offset   int
	Line     int
	Column   int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("snbt: line %d, column %d: expected %s", e.Line, e.Column, e.Expected)
	}
	return fmt.Sprintf("snbt: line %d, column %d: expected %s, found %q", e.Line, e.Column, e.Expected, e.Found)
}
