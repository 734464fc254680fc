package mb

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is a mesh point shared between polygons.
// Back-references to polygons are maintained by Polygon methods only,
// one entry per polygon slot referencing the vertex.
type Vertex struct {
	mesh     *MeshBuilder
	index    int
	position mgl32.Vec3
	polygons []*Polygon
}

func (v *Vertex) assertLive() {
	if v.mesh == nil {
		panic(fmt.Sprintf("use of removed vertex %p", v))
	}
}

// Index returns position of vertex in mesh vertex list.
func (v *Vertex) Index() int { return v.index }

func (v *Vertex) Mesh() *MeshBuilder { return v.mesh }

func (v *Vertex) Position() mgl32.Vec3 { return v.position }

func (v *Vertex) SetPosition(p mgl32.Vec3) { v.position = p }

// Polygons returns number of polygon slots referencing this vertex.
func (v *Vertex) Polygons() int { return len(v.polygons) }

func (v *Vertex) Polygon(i int) *Polygon {
	if i < 0 || i >= len(v.polygons) {
		panic(fmt.Sprintf("vertex %d polygon index %d out of range [0,%d)", v.index, i, len(v.polygons)))
	}
	return v.polygons[i]
}

func (v *Vertex) addPolygon(p *Polygon) {
	v.polygons = append(v.polygons, p)
}

func (v *Vertex) removePolygon(p *Polygon) {
	for i := len(v.polygons) - 1; i >= 0; i-- {
		if v.polygons[i] == p {
			v.polygons = append(v.polygons[:i], v.polygons[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("vertex %d has no back-reference to polygon %d", v.index, p.index))
}

// Normal returns normalized sum of normals of all polygons using the vertex.
func (v *Vertex) Normal() mgl32.Vec3 {
	var n mgl32.Vec3
	for _, p := range v.polygons {
		n = n.Add(p.Normal())
	}
	if n.LenSqr() > minFloat {
		return n.Normalize()
	}
	return mgl32.Vec3{}
}

// Clone adds copy of vertex to the mesh, including vertex map values and
// discontinuous vertex map values of polygons using this vertex.
// The copy is not referenced by any polygon.
func (v *Vertex) Clone() *Vertex {
	v.assertLive()
	m := v.mesh
	nv := m.AddVertex()
	nv.position = v.position

	for _, vmap := range m.vmaps {
		if data, ok := vmap.Value(v.index); ok {
			vmap.AddValue(nv.index, data)
		}
	}
	for _, vmad := range m.vmads {
		for _, p := range v.polygons {
			if data, ok := vmad.Value(v.index, p.index); ok {
				vmad.AddValue(nv.index, p.index, data)
			}
		}
	}
	return nv
}

// Equal compares positions only.
func (v *Vertex) Equal(other *Vertex) bool {
	return v.position == other.position
}

func (v *Vertex) String() string {
	return fmt.Sprintf("vertex[%d](%v,%v,%v)", v.index, v.position[0], v.position[1], v.position[2])
}
