package utils

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ColorFloat [4]float32

func (c *ColorFloat) RGBA() (r, g, b, a uint32) {
	const mf = float32(256*256 - 1)
	r = uint32(clamp01(c[0]) * mf)
	g = uint32(clamp01(c[1]) * mf)
	b = uint32(clamp01(c[2]) * mf)
	a = uint32(clamp01(c[3]) * mf)
	return
}

func NewColorFloatA(c []float32) ColorFloat {
	return ColorFloat{c[0], c[1], c[2], c[3]}
}

func NewColorFloat(c []float32) ColorFloat {
	return ColorFloat{c[0], c[1], c[2], 1.0}
}

func (c ColorFloat) Vec4() mgl32.Vec4 { return mgl32.Vec4(c) }

// Float64 returns rgb components, as FBX color properties want them.
func (c ColorFloat) Float64() (r, g, b float64) {
	return float64(c[0]), float64(c[1]), float64(c[2])
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	} else if v > 1 {
		return 1
	}
	return v
}
