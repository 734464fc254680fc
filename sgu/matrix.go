package sgu

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_browser/chunk"
)

// Matrices are stored row by row.

func readMatrix(r *chunk.Reader) (mgl32.Mat4, error) {
	var m mgl32.Mat4
	var row [4]float32
	for j := 0; j < 4; j++ {
		if err := r.ReadFloat32s(row[:]); err != nil {
			return m, err
		}
		for i := 0; i < 4; i++ {
			m.Set(j, i, row[i])
		}
	}
	return m, nil
}

func writeMatrix(w *chunk.Writer, m mgl32.Mat4) {
	for j := 0; j < 4; j++ {
		row := m.Row(j)
		w.WriteFloat32s(row[:]...)
	}
}

func readVec3(r *chunk.Reader) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	err := r.ReadFloat32s(v[:])
	return v, err
}

func vec3(v []float32) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}
