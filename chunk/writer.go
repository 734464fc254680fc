package chunk

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

type openChunk struct {
	name  string
	begin int // payload offset inside buf
	scope *Scope
}

// Writer buffers a chunk tree in memory and flushes it to the underlying
// writer once the outermost chunk is ended.
type Writer struct {
	w       io.Writer
	buf     []byte
	flushed int64
	open    []openChunk
	err     error
}

// Scope is the handle of an open chunk. Ending it back-patches the chunk length.
type Scope struct {
	w     *Writer
	name  string
	ended bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, 256)}
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

// Err returns the first write error, if any.
func (w *Writer) Err() error { return w.err }

// Depth returns number of currently open chunks.
func (w *Writer) Depth() int { return len(w.open) }

// Size returns number of bytes buffered and not flushed yet.
func (w *Writer) Size() int { return len(w.buf) }

// Pos returns absolute stream offset of the next written byte.
func (w *Writer) Pos() int64 { return w.flushed + int64(len(w.buf)) }

// Begin writes the chunk header with a placeholder length and opens the chunk.
func (w *Writer) Begin(name string) *Scope {
	w.WriteString(name)
	w.buf = append(w.buf, 0, 0, 0, 0)
	s := &Scope{w: w, name: name}
	w.open = append(w.open, openChunk{name: name, begin: len(w.buf), scope: s})
	return s
}

// End ends the innermost open chunk.
func (w *Writer) End() error {
	if w.err != nil {
		return w.err
	}
	if len(w.open) == 0 {
		return errors.Wrapf(ErrUnpairedEnd, "no open chunk at offset 0x%x", w.Pos())
	}

	top := w.open[len(w.open)-1]
	w.open = w.open[:len(w.open)-1]
	// ending through Writer invalidates the chunk handle
	top.scope.ended = true

	size := len(w.buf) - top.begin
	if size < 0 || top.begin < headerLenSize || size > math.MaxInt32 {
		return w.fail(errors.Errorf("Invalid chunk %q size %d", top.name, size))
	}
	binary.LittleEndian.PutUint32(w.buf[top.begin-headerLenSize:top.begin], uint32(size))

	if len(w.open) == 0 {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.w.Write(w.buf)
	if err != nil {
		return w.fail(errors.Wrapf(err, "Failed to write %d bytes", len(w.buf)))
	}
	w.flushed += int64(n)
	w.buf = w.buf[:0]
	return nil
}

// Close flushes primitives written outside of any chunk.
// It fails if chunks are still open.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if len(w.open) != 0 {
		return errors.Errorf("Closing writer with %d open chunks (innermost %q)",
			len(w.open), w.open[len(w.open)-1].name)
	}
	return w.flush()
}

// End ends the chunk. The chunk must be the innermost open one.
func (s *Scope) End() error {
	if s.w.err != nil {
		return s.w.err
	}
	if s.ended {
		return errors.Wrapf(ErrUnpairedEnd, "chunk %q already ended", s.name)
	}
	if len(s.w.open) == 0 || s.w.open[len(s.w.open)-1].scope != s {
		return errors.Wrapf(ErrUnpairedEnd, "chunk %q is not the innermost open chunk", s.name)
	}
	return s.w.End()
}

func (s *Scope) Name() string { return s.name }

func (w *Writer) WriteByte(v byte) error {
	if w.err != nil {
		return w.err
	}
	w.buf = append(w.buf, v)
	return nil
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteInt(v int) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		w.fail(errors.Errorf("Int value %d overflows int32", v))
		return
	}
	w.WriteInt32(int32(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteFloat32s(v ...float32) {
	for _, f := range v {
		w.WriteFloat32(f)
	}
}

func (w *Writer) WriteString(v string) {
	if len(v) > MaxStringLength {
		w.fail(errors.Errorf("String of length %d is too long", len(v)))
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *Writer) WriteVarInt(v int32) {
	w.buf = appendVarInt(w.buf, v)
}

func (w *Writer) WriteInt32Chunk(name string, v ...int32) error {
	s := w.Begin(name)
	for _, i := range v {
		w.WriteInt32(i)
	}
	return s.End()
}

func (w *Writer) WriteFloat32Chunk(name string, v ...float32) error {
	s := w.Begin(name)
	w.WriteFloat32s(v...)
	return s.End()
}

func (w *Writer) WriteStringChunk(name string, v string) error {
	s := w.Begin(name)
	w.WriteString(v)
	return s.End()
}
