// Package chunk implements a named, length-prefixed, nested binary chunk
// stream.
//
// Every chunk is laid out as
//
//	[name:string][length:int32][payload:length bytes]
//
// where string is a little-endian uint16 byte length followed by UTF-8 bytes.
// Payload is a caller-defined sequence of nested chunks and primitive values
// (int32, float32, string, byte, varint), all little-endian. There is no
// magic number or version field at this layer: files carry their own.
package chunk

import (
	"github.com/pkg/errors"
)

const (
	MaxStringLength = 0xffff
	headerLenSize   = 4
)

var (
	// ErrFormat is returned (wrapped) for every malformed stream condition:
	// truncated data, negative or overflowing lengths, mismatched end offsets.
	ErrFormat = errors.New("chunk format error")
	// ErrUnpairedEnd is returned when a chunk is ended without a matching begin.
	ErrUnpairedEnd = errors.New("unpaired chunk end")
)

// FormatErrorf returns ErrFormat annotated with message. Decoders built on
// top of Reader use it for their own malformed data conditions.
func FormatErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormat, format, args...)
}

// IsFormatError reports whether err (or any error it wraps) is ErrFormat.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}
