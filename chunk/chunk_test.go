package chunk

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// onlyReader hides io.Seeker so the reader has to discard bytes.
type onlyReader struct {
	io.Reader
}

func writeTestTree(t *testing.T) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	main := w.Begin("mainchunk")
	w.WriteInt32(123)
	sub1 := w.Begin("subchunk1")
	subsub1 := w.Begin("subsubchunk1")
	w.WriteFloat32(1.5)
	w.WriteString("hello")
	w.WriteString("world")
	require.NoError(t, subsub1.End())
	require.NoError(t, sub1.End())
	sub2 := w.Begin("subchunk2")
	require.NoError(t, w.Begin("subsubchunk2").End())
	require.NoError(t, sub2.End())

	assert.Equal(t, 0, buf.Len(), "nothing must be flushed before the outermost chunk ends")
	require.NoError(t, main.End())
	require.NoError(t, w.Close())
	assert.Equal(t, int64(buf.Len()), w.Pos())
	return buf.Bytes()
}

func readTestTree(t *testing.T, r *Reader) {
	name, mainEnd, err := r.Begin()
	require.NoError(t, err)
	assert.Equal(t, "mainchunk", name)

	i, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(123), i)

	name, sub1End, err := r.Begin()
	require.NoError(t, err)
	assert.Equal(t, "subchunk1", name)
	name, subsub1End, err := r.Begin()
	require.NoError(t, err)
	assert.Equal(t, "subsubchunk1", name)

	f, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)
	for _, expected := range []string{"hello", "world"} {
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, expected, s)
	}
	assert.False(t, r.More(subsub1End))
	require.NoError(t, r.End(subsub1End))
	require.NoError(t, r.End(sub1End))

	name, sub2End, err := r.Begin()
	require.NoError(t, err)
	assert.Equal(t, "subchunk2", name)
	name, subsub2End, err := r.Begin()
	require.NoError(t, err)
	assert.Equal(t, "subsubchunk2", name)
	assert.Equal(t, r.Pos(), subsub2End)
	require.NoError(t, r.End(subsub2End))
	require.NoError(t, r.End(sub2End))
	require.NoError(t, r.End(mainEnd))
	assert.Equal(t, 0, r.Depth())

	_, _, err = r.Begin()
	assert.Equal(t, io.EOF, err)
}

func TestRoundTrip(t *testing.T) {
	data := writeTestTree(t)

	t.Run("seeker", func(t *testing.T) {
		readTestTree(t, NewReader(bytes.NewReader(data)))
	})
	t.Run("stream", func(t *testing.T) {
		readTestTree(t, NewReader(onlyReader{bytes.NewReader(data)}))
	})
}

func TestHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteInt32Chunk("ab", -2))
	expected := []byte{
		0x02, 0x00, 'a', 'b',
		0x04, 0x00, 0x00, 0x00,
		0xfe, 0xff, 0xff, 0xff,
	}
	assert.Equal(t, expected, buf.Bytes())
}

func TestSkip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	a := w.Begin("A")
	b := w.Begin("B")
	c := w.Begin("C")
	w.WriteInt32(1)
	w.WriteString("unread")
	require.NoError(t, c.End())
	w.WriteFloat32s(1, 2, 3)
	require.NoError(t, b.End())
	w.WriteInt32(7)
	require.NoError(t, a.End())

	for _, mode := range []string{"seeker", "stream"} {
		t.Run(mode, func(t *testing.T) {
			var src io.Reader = bytes.NewReader(buf.Bytes())
			if mode == "stream" {
				src = onlyReader{src}
			}
			r := NewReader(src)
			_, aEnd, err := r.Begin()
			require.NoError(t, err)
			name, bEnd, err := r.Begin()
			require.NoError(t, err)
			require.Equal(t, "B", name)
			require.NoError(t, r.End(bEnd))
			assert.Equal(t, bEnd, r.Pos())

			v, err := r.ReadInt32()
			require.NoError(t, err)
			assert.Equal(t, int32(7), v)
			require.NoError(t, r.End(aEnd))
		})
	}
}

func TestWriterUnpairedEnd(t *testing.T) {
	w := NewWriter(io.Discard)
	assert.True(t, errors.Is(w.End(), ErrUnpairedEnd))

	w = NewWriter(io.Discard)
	outer := w.Begin("outer")
	inner := w.Begin("inner")
	assert.True(t, errors.Is(outer.End(), ErrUnpairedEnd))
	require.NoError(t, inner.End())
	assert.True(t, errors.Is(inner.End(), ErrUnpairedEnd))
	require.NoError(t, outer.End())

	// handle of a chunk closed by Writer.End must not close a newer chunk
	// starting at the same offset after flush
	w = NewWriter(io.Discard)
	a := w.Begin("A")
	require.NoError(t, w.End())
	b := w.Begin("B")
	assert.True(t, errors.Is(a.End(), ErrUnpairedEnd))
	assert.Equal(t, 1, w.Depth())
	require.NoError(t, b.End())
	assert.Equal(t, 0, w.Depth())
}

func TestWriterCloseWithOpenChunk(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Begin("open")
	w.WriteInt32(1)
	assert.Error(t, w.Close())
	assert.Equal(t, 0, buf.Len())
}

func TestWriterStringTooLong(t *testing.T) {
	w := NewWriter(io.Discard)
	s := w.Begin("s")
	w.WriteString(strings.Repeat("x", MaxStringLength+1))
	assert.Error(t, w.Err())
	assert.Error(t, s.End())
}

func TestReaderErrors(t *testing.T) {
	valid := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		require.NoError(t, w.WriteInt32Chunk("value", 1, 2, 3))
		return buf.Bytes()
	}()

	for _, test := range []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{"truncated payload", valid[:len(valid)-2], func(r *Reader) error {
			_, _, err := r.Begin()
			if err != nil {
				return err
			}
			var v [3]float32
			return r.ReadFloat32s(v[:])
		}},
		{"truncated header", valid[:3], func(r *Reader) error {
			_, _, err := r.Begin()
			return err
		}},
		{"negative length", []byte{0x01, 0x00, 'n', 0xff, 0xff, 0xff, 0xff}, func(r *Reader) error {
			_, _, err := r.Begin()
			return err
		}},
		{"child beyond parent", []byte{
			0x01, 0x00, 'p', 0x0a, 0x00, 0x00, 0x00,
			0x01, 0x00, 'c', 0x64, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00,
		}, func(r *Reader) error {
			if _, _, err := r.Begin(); err != nil {
				return err
			}
			_, _, err := r.Begin()
			return err
		}},
		{"read past chunk end", valid, func(r *Reader) error {
			_, _, err := r.Begin()
			if err != nil {
				return err
			}
			var v [4]int32
			for i := range v {
				if v[i], err = r.ReadInt32(); err != nil {
					return err
				}
			}
			return nil
		}},
		{"mismatched end", valid, func(r *Reader) error {
			_, end, err := r.Begin()
			if err != nil {
				return err
			}
			return r.End(end + 1)
		}},
	} {
		for _, mode := range []string{"seeker", "stream"} {
			var src io.Reader = bytes.NewReader(test.data)
			if mode == "stream" {
				src = onlyReader{src}
			}
			err := test.read(NewReader(src))
			if !IsFormatError(err) {
				t.Errorf("%s (%s): expected format error, got %v", test.name, mode, err)
			}
		}
	}
}

func TestReaderUnpairedEnd(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	assert.True(t, errors.Is(r.End(0), ErrUnpairedEnd))
	_, _, err := r.Begin()
	assert.Equal(t, io.EOF, err)
}

var varIntTests = []struct {
	in  int32
	out []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x04}},
	{-1, []byte{0x06}},
	{63, []byte{0xfc}},
	{-63, []byte{0xfe}},
	{64, []byte{0x01, 0x02}},
	{-64, []byte{0x03, 0x02}},
	{8191, []byte{0xfd, 0xfe}},
}

func TestVarInt(t *testing.T) {
	for _, test := range varIntTests {
		result := appendVarInt(nil, test.in)
		if !bytes.Equal(result, test.out) {
			t.Errorf("appendVarInt(%d)=% x; expected % x", test.in, result, test.out)
		}
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	values := []int32{0, 1, -1, 1000, -1000, 1 << 20, math.MaxInt32, math.MinInt32}
	s := w.Begin("varints")
	for _, v := range values {
		w.WriteVarInt(v)
	}
	require.NoError(t, s.End())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	_, end, err := r.Begin()
	require.NoError(t, err)
	var got []int32
	for r.More(end) {
		v, err := r.ReadVarInt()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.NoError(t, r.End(end))
	if diff := cmp.Diff(values, got); diff != "" {
		t.Errorf("varint mismatch (-want +got):\n%s", diff)
	}
}

func TestVarIntTooLong(t *testing.T) {
	data := []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x00}
	pos := 0
	_, err := decodeVarInt(func() (byte, error) {
		b := data[pos]
		pos++
		return b, nil
	})
	assert.True(t, IsFormatError(err))
}

func TestStringDecoder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteStringChunk("name", "\xcf\xf0\xe8\xe2\xe5\xf2"))

	r := NewReader(bytes.NewReader(buf.Bytes()))
	r.SetStringDecoder(charmap.Windows1251.NewDecoder())
	_, end, err := r.Begin()
	require.NoError(t, err)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Привет", s)
	require.NoError(t, r.End(end))
}

func TestTrace(t *testing.T) {
	data := writeTestTree(t)
	r := NewReader(bytes.NewReader(data))
	r.EnableTrace()

	_, mainEnd, err := r.Begin()
	require.NoError(t, err)
	_, err = r.ReadInt32()
	require.NoError(t, err)
	_, sub1End, err := r.Begin()
	require.NoError(t, err)
	require.NoError(t, r.End(sub1End))
	_, sub2End, err := r.Begin()
	require.NoError(t, err)
	_, subsub2End, err := r.Begin()
	require.NoError(t, err)
	require.NoError(t, r.End(subsub2End))
	require.NoError(t, r.End(sub2End))
	require.NoError(t, r.End(mainEnd))

	root := r.Trace()
	require.Len(t, root.Childs, 1)
	main := root.Childs[0]

	var names []string
	for _, c := range main.Childs {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"subchunk1", "subchunk2"}, names); diff != "" {
		t.Errorf("trace childs mismatch (-want +got):\n%s", diff)
	}

	sub1 := main.Childs[0]
	assert.Equal(t, sub1.Size, sub1.Skipped)
	assert.Empty(t, sub1.Childs)
	assert.Equal(t, "mainchunk/subchunk2/subsubchunk2", main.Childs[1].Childs[0].Path())

	tree := root.StringTree()
	assert.Contains(t, tree, "chunk<mainchunk>")
	assert.Contains(t, tree, ".  data [ao:0x")
	assert.NotContains(t, tree, "UNCLOSED")
}
