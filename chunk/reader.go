package chunk

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

// Reader reads chunk streams written by Writer.
// Begin returns an absolute end offset that must be passed back to End,
// which allows skipping unread or unknown payload.
type Reader struct {
	r    io.Reader
	s    io.Seeker
	size int64 // -1 if unknown
	pos  int64
	ends []int64
	dec  transform.Transformer

	trace *TraceNode
	cur   *TraceNode

	scratch [8]byte
}

func NewReader(r io.Reader) *Reader {
	cr := &Reader{r: r, size: -1}
	if s, ok := r.(io.Seeker); ok {
		if cur, err := s.Seek(0, io.SeekCurrent); err == nil {
			if end, err := s.Seek(0, io.SeekEnd); err == nil {
				if _, err := s.Seek(cur, io.SeekStart); err == nil {
					cr.s = s
					cr.size = end - cur
				}
			}
		}
	}
	return cr
}

// SetStringDecoder sets decoder applied to every string read (names included).
// nil means strings are UTF-8.
func (r *Reader) SetStringDecoder(dec transform.Transformer) {
	r.dec = dec
}

// Pos returns number of bytes consumed from the stream.
func (r *Reader) Pos() int64 { return r.pos }

// Depth returns number of open chunks.
func (r *Reader) Depth() int { return len(r.ends) }

// More reports whether there are unread bytes before end.
func (r *Reader) More(end int64) bool { return r.pos < end }

func (r *Reader) limit() int64 {
	if len(r.ends) != 0 {
		return r.ends[len(r.ends)-1]
	}
	if r.size >= 0 {
		return r.size
	}
	return math.MaxInt64
}

func (r *Reader) read(n int) ([]byte, error) {
	if r.pos+int64(n) > r.limit() {
		return nil, FormatErrorf("read of %d bytes at 0x%x past chunk end 0x%x", n, r.pos, r.limit())
	}
	var b []byte
	if n <= len(r.scratch) {
		b = r.scratch[:n]
	} else {
		b = make([]byte, n)
	}
	got, err := io.ReadFull(r.r, b)
	r.pos += int64(got)
	if err != nil {
		return nil, r.readError(err, n, got)
	}
	return b, nil
}

func (r *Reader) readError(err error, wanted, got int) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return FormatErrorf("stream truncated at 0x%x (wanted %d bytes, got %d)", r.pos, wanted, got)
	}
	return errors.Wrapf(err, "Failed to read at 0x%x", r.pos)
}

// Begin reads a chunk header. It returns io.EOF when called outside of any
// chunk at the clean end of the stream.
func (r *Reader) Begin() (name string, end int64, err error) {
	start := r.pos
	if len(r.ends) == 0 && r.size >= 0 && r.pos == r.size {
		return "", 0, io.EOF
	}

	var nameLen int
	if len(r.ends) == 0 && r.size < 0 {
		// unknown stream size, clean EOF is only detectable here
		got, err := io.ReadFull(r.r, r.scratch[:2])
		r.pos += int64(got)
		if err == io.EOF {
			return "", 0, io.EOF
		} else if err != nil {
			return "", 0, r.readError(err, 2, got)
		}
		nameLen = int(binary.LittleEndian.Uint16(r.scratch[:2]))
	} else {
		b, err := r.read(2)
		if err != nil {
			return "", 0, err
		}
		nameLen = int(binary.LittleEndian.Uint16(b))
	}
	if name, err = r.readStringBody(nameLen); err != nil {
		return "", 0, err
	}
	b, err := r.read(4)
	if err != nil {
		return "", 0, errors.Wrapf(err, "chunk %q length", name)
	}
	length := int32(binary.LittleEndian.Uint32(b))
	if length < 0 {
		return "", 0, FormatErrorf("invalid chunk %q length %d at 0x%x", name, length, start)
	}
	end = r.pos + int64(length)
	if end > r.limit() {
		return "", 0, FormatErrorf("chunk %q at 0x%x ends at 0x%x beyond its container end 0x%x",
			name, start, end, r.limit())
	}

	r.ends = append(r.ends, end)
	r.traceBegin(name, start, end)
	return name, end, nil
}

// End finishes reading the chunk ending at end and skips any unread payload.
func (r *Reader) End(end int64) error {
	if len(r.ends) == 0 {
		return errors.Wrapf(ErrUnpairedEnd, "end 0x%x without open chunk", end)
	}
	if top := r.ends[len(r.ends)-1]; top != end {
		return FormatErrorf("chunk end mismatch: expected 0x%x, got 0x%x", top, end)
	}
	left := end - r.pos
	if left < 0 {
		return FormatErrorf("chunk read overflow at 0x%x (chunk end 0x%x)", r.pos, end)
	}
	if left > 0 {
		if err := r.skip(left); err != nil {
			return err
		}
	}
	r.ends = r.ends[:len(r.ends)-1]
	r.traceEnd(left)
	return nil
}

func (r *Reader) skip(n int64) error {
	if r.s != nil {
		if _, err := r.s.Seek(n, io.SeekCurrent); err != nil {
			return errors.Wrapf(err, "Failed to skip %d bytes at 0x%x", n, r.pos)
		}
		r.pos += n
		return nil
	}
	got, err := io.CopyN(io.Discard, r.r, n)
	r.pos += got
	if err != nil {
		if err == io.EOF {
			return FormatErrorf("stream truncated at 0x%x while skipping %d bytes", r.pos, n)
		}
		return errors.Wrapf(err, "Failed to skip %d bytes at 0x%x", n, r.pos)
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadInt() (int, error) {
	v, err := r.ReadInt32()
	return int(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadFloat32s(out []float32) error {
	for i := range out {
		f, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		out[i] = f
	}
	return nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.read(2)
	if err != nil {
		return "", err
	}
	return r.readStringBody(int(binary.LittleEndian.Uint16(b)))
}

func (r *Reader) readStringBody(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	raw, err := r.read(n)
	if err != nil {
		return "", err
	}
	if r.dec != nil {
		decoded, _, err := transform.Bytes(r.dec, raw)
		if err != nil {
			return "", errors.Wrapf(err, "Failed to decode string at 0x%x", r.pos)
		}
		return string(decoded), nil
	}
	return string(raw), nil
}

func (r *Reader) ReadVarInt() (int32, error) {
	return decodeVarInt(r.ReadByte)
}
