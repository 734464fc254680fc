package mb

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// TexCoordMap returns first 2+ dimensional texture coordinate map or nil.
func (m *MeshBuilder) TexCoordMap() *VertexMap {
	for _, vm := range m.vmaps {
		if vm.format == VertexMapTexCoord && vm.dimensions >= 2 {
			return vm
		}
	}
	return nil
}

// ExportObj writes mesh as wavefront object named name. Vertex indices
// start at offset+1, so several meshes can share one file; returns number
// of written vertices. transform is applied to positions and normals.
func (m *MeshBuilder) ExportObj(_w io.Writer, name string, transform mgl32.Mat4, materials []string, offset int) (int, error) {
	var err error
	w := func(format string, args ...interface{}) {
		if err == nil {
			_, err = _w.Write(([]byte)(fmt.Sprintf(format+"\n", args...)))
		}
	}

	normalTransform := transform.Mat3().Inv().Transpose()
	uvs := m.TexCoordMap()

	w("o %s", strings.ReplaceAll(name, " ", "_"))
	for _, v := range m.vertices {
		p := mgl32.TransformCoordinate(v.position, transform)
		w("v %f %f %f", p[0], p[1], p[2])
	}
	if uvs != nil {
		for _, v := range m.vertices {
			uv, ok := uvs.Value(v.index)
			if !ok {
				uv = []float32{0, 0}
			}
			w("vt %f %f", uv[0], -uv[1])
		}
	}
	for _, v := range m.vertices {
		n := normalTransform.Mul3x1(v.Normal())
		if n.LenSqr() > minFloat {
			n = n.Normalize()
		}
		w("vn %f %f %f", n[0], n[1], n[2])
	}

	lastMaterial := -1
	var sb strings.Builder
	for _, p := range m.polygons {
		if len(p.vertices) < 3 {
			continue
		}
		if materials != nil && p.material != lastMaterial && p.material >= 0 && p.material < len(materials) {
			w("usemtl %s", materials[p.material])
			lastMaterial = p.material
		}
		sb.Reset()
		sb.WriteString("f")
		for _, v := range p.vertices {
			i := offset + v.index + 1
			if uvs != nil {
				fmt.Fprintf(&sb, " %d/%d/%d", i, i, i)
			} else {
				fmt.Fprintf(&sb, " %d//%d", i, i)
			}
		}
		w("%s", sb.String())
	}
	return len(m.vertices), err
}
