package mb

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const minFloat = math.SmallestNonzeroFloat32

// Polygon is an ordered list of mesh vertices with a material index.
type Polygon struct {
	mesh     *MeshBuilder
	index    int
	vertices []*Vertex
	material int
}

func (p *Polygon) assertLive() {
	if p.mesh == nil {
		panic(fmt.Sprintf("use of removed polygon %p", p))
	}
}

func (p *Polygon) assertVertexIndex(i int) {
	if i < 0 || i >= len(p.vertices) {
		panic(fmt.Sprintf("polygon %d vertex index %d out of range [0,%d)", p.index, i, len(p.vertices)))
	}
}

// Index returns position of polygon in mesh polygon list.
func (p *Polygon) Index() int { return p.index }

func (p *Polygon) Mesh() *MeshBuilder { return p.mesh }

func (p *Polygon) Material() int { return p.material }

func (p *Polygon) SetMaterial(id int) { p.material = id }

func (p *Polygon) Vertices() int { return len(p.vertices) }

func (p *Polygon) Vertex(i int) *Vertex {
	p.assertVertexIndex(i)
	return p.vertices[i]
}

// AddVertex appends vertex to the polygon.
func (p *Polygon) AddVertex(v *Vertex) {
	p.assertLive()
	v.assertLive()
	if v.mesh != p.mesh {
		panic(fmt.Sprintf("vertex %d belongs to another mesh", v.index))
	}
	p.vertices = append(p.vertices, v)
	v.addPolygon(p)
}

// SetVertex replaces vertex at polygon-local index i.
func (p *Polygon) SetVertex(i int, v *Vertex) {
	p.assertVertexIndex(i)
	v.assertLive()
	old := p.vertices[i]
	if old == v {
		return
	}
	p.vertices[i] = v
	old.removePolygon(p)
	v.addPolygon(p)
}

// RemoveVertex removes the last occurrence of v from the polygon.
// Removing a vertex the polygon does not use panics.
func (p *Polygon) RemoveVertex(v *Vertex) {
	i := p.IndexOf(v)
	if i < 0 {
		panic(fmt.Sprintf("polygon %d does not use vertex %d", p.index, v.index))
	}
	p.removeAt(i)
}

func (p *Polygon) removeAt(i int) {
	v := p.vertices[i]
	p.vertices = append(p.vertices[:i], p.vertices[i+1:]...)
	v.removePolygon(p)
}

// RemoveVertices removes polygon-local vertices in range [v0,v1).
func (p *Polygon) RemoveVertices(v0, v1 int) {
	if v0 < 0 || v0 > v1 || v1 > len(p.vertices) {
		panic(fmt.Sprintf("polygon %d invalid vertex range [%d,%d) of %d", p.index, v0, v1, len(p.vertices)))
	}
	for i := v1 - 1; i >= v0; i-- {
		p.removeAt(i)
	}
}

func (p *Polygon) removeAllVertices() {
	p.RemoveVertices(0, len(p.vertices))
}

// IndexOf returns polygon-local index of the last occurrence of v or -1.
func (p *Polygon) IndexOf(v *Vertex) int {
	for i := len(p.vertices) - 1; i >= 0; i-- {
		if p.vertices[i] == v {
			return i
		}
	}
	return -1
}

func (p *Polygon) HasVertex(v *Vertex) bool {
	return p.IndexOf(v) >= 0
}

// Normal returns unit plane normal computed from the first two edges
// around vertex 0, or zero vector for degenerate polygons.
func (p *Polygon) Normal() mgl32.Vec3 {
	if len(p.vertices) < 3 {
		return mgl32.Vec3{}
	}
	v0 := p.vertices[0].position
	e0 := p.vertices[1].position.Sub(v0)
	e1 := p.vertices[len(p.vertices)-1].position.Sub(v0)
	n := e0.Cross(e1)
	if lensqr := n.LenSqr(); lensqr > minFloat {
		return n.Mul(1 / float32(math.Sqrt(float64(lensqr))))
	}
	return mgl32.Vec3{}
}

// Angle returns angle in radians between polygon normals.
func (p *Polygon) Angle(other *Polygon) float32 {
	d := mgl32.Clamp(p.Normal().Dot(other.Normal()), -1, 1)
	return float32(math.Acos(float64(d)))
}

// Clone adds copy of polygon to the mesh, sharing the same vertices and
// copying discontinuous vertex map values.
func (p *Polygon) Clone() *Polygon {
	p.assertLive()
	m := p.mesh
	np := m.AddPolygon()
	np.material = p.material
	for _, v := range p.vertices {
		np.AddVertex(v)
	}
	for _, vmad := range m.vmads {
		for _, v := range p.vertices {
			if data, ok := vmad.Value(v.index, p.index); ok {
				vmad.AddValue(v.index, np.index, data)
			}
		}
	}
	return np
}

// Split cuts the polygon along the diagonal between polygon-local corners
// v0 and v1. This polygon keeps corners from the lower index to the higher
// one, the new polygon (appended to the mesh) keeps the rest. Both keep the
// diagonal corners. Splits leaving a polygon with less than 3 vertices are
// rejected and the polygon is left untouched.
func (p *Polygon) Split(v0, v1 int) (*Polygon, error) {
	p.assertLive()
	n := len(p.vertices)
	if n <= 3 {
		return nil, errors.Errorf("Can't split polygon %d with %d vertices", p.index, n)
	}
	if v0 < 0 || v0 >= n || v1 < 0 || v1 >= n {
		return nil, errors.Errorf("Split corners (%d,%d) out of polygon %d range [0,%d)", v0, v1, p.index, n)
	}
	if v0 == v1 || (v0+1)%n == v1 || (v1+1)%n == v0 {
		return nil, errors.Errorf("Split corners (%d,%d) of polygon %d are not a diagonal", v0, v1, p.index)
	}
	if v0 > v1 {
		v0, v1 = v1, v0
	}

	other := p.Clone()
	other.RemoveVertices(v0+1, v1)

	p.RemoveVertices(v1+1, n)
	p.RemoveVertices(0, v0)
	return other, nil
}

// Equal compares vertex index sequences.
func (p *Polygon) Equal(other *Polygon) bool {
	if len(p.vertices) != len(other.vertices) {
		return false
	}
	for i, v := range p.vertices {
		if v.index != other.vertices[i].index {
			return false
		}
	}
	return true
}

func (p *Polygon) String() string {
	idx := make([]int, len(p.vertices))
	for i, v := range p.vertices {
		idx[i] = v.index
	}
	return fmt.Sprintf("polygon[%d](mat %d)%v", p.index, p.material, idx)
}
