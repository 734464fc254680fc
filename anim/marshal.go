package anim

import (
	"math"

	"github.com/mogaika/scene_browser/chunk"
)

// Write writes animation payload: channels, key count, interpolation,
// then time and channel values of every key.
func (ip *Interpolator) Write(w *chunk.Writer) {
	w.WriteInt(ip.channels)
	w.WriteInt(len(ip.times))
	w.WriteInt(int(ip.interpolation))
	for i, t := range ip.times {
		w.WriteFloat32(t)
		w.WriteFloat32s(ip.KeyValue(i)...)
	}
}

// WriteChunk writes animation as chunk named name.
func (ip *Interpolator) WriteChunk(w *chunk.Writer, name string) error {
	s := w.Begin(name)
	ip.Write(w)
	return s.End()
}

// Read replaces keys of ip with animation payload. When firstKeyOnly is
// set only the first key is kept and the rest is left unread.
func (ip *Interpolator) Read(r *chunk.Reader, firstKeyOnly bool) error {
	channels, err := r.ReadInt()
	if err != nil {
		return err
	}
	if channels != ip.channels {
		return chunk.FormatErrorf("animation has %d channels, expected %d", channels, ip.channels)
	}
	keys, err := r.ReadInt()
	if err != nil {
		return err
	}
	if keys < 1 {
		return chunk.FormatErrorf("animation has invalid key count %d", keys)
	}
	interp, err := r.ReadInt()
	if err != nil {
		return err
	}
	if interp < int(InterpolateStepped) || interp > int(InterpolateCatmullRom) {
		return chunk.FormatErrorf("unknown animation interpolation %d", interp)
	}
	ip.SetInterpolation(Interpolation(interp))

	if firstKeyOnly {
		keys = 1
	}
	ip.times = ip.times[:0]
	ip.values = ip.values[:0]
	value := make([]float32, ip.channels)
	for i := 0; i < keys; i++ {
		t, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		if err := r.ReadFloat32s(value); err != nil {
			return err
		}
		if math.IsNaN(float64(t)) || (i > 0 && t < ip.times[i-1]) {
			return chunk.FormatErrorf("animation key %d time %v is out of order", i, t)
		}
		ip.AddKey(t, value...)
	}
	return nil
}
