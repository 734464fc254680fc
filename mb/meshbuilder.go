// Package mb implements an editable polygon mesh with shared vertices,
// vertex to polygon back-references and sparse vertex attribute maps.
package mb

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MeshBuilder owns vertices, polygons and vertex maps of a mesh.
// It is not safe for concurrent use.
type MeshBuilder struct {
	vertices []*Vertex
	polygons []*Polygon
	vmaps    []*VertexMap
	vmads    []*DiscontinuousVertexMap
}

func NewMeshBuilder() *MeshBuilder {
	return &MeshBuilder{}
}

func (m *MeshBuilder) AddVertex() *Vertex {
	v := &Vertex{mesh: m, index: len(m.vertices)}
	m.vertices = append(m.vertices, v)
	return v
}

func (m *MeshBuilder) AddPolygon() *Polygon {
	p := &Polygon{mesh: m, index: len(m.polygons)}
	m.polygons = append(m.polygons, p)
	return p
}

func (m *MeshBuilder) Vertices() int { return len(m.vertices) }

func (m *MeshBuilder) Polygons() int { return len(m.polygons) }

func (m *MeshBuilder) Vertex(i int) *Vertex {
	if i < 0 || i >= len(m.vertices) {
		panic(fmt.Sprintf("vertex index %d out of range [0,%d)", i, len(m.vertices)))
	}
	return m.vertices[i]
}

func (m *MeshBuilder) Polygon(i int) *Polygon {
	if i < 0 || i >= len(m.polygons) {
		panic(fmt.Sprintf("polygon index %d out of range [0,%d)", i, len(m.polygons)))
	}
	return m.polygons[i]
}

// RemovePolygon releases polygon vertices and shifts indices of following
// polygons and discontinuous vertex map values.
func (m *MeshBuilder) RemovePolygon(i int) {
	p := m.Polygon(i)
	p.removeAllVertices()
	m.polygons = append(m.polygons[:i], m.polygons[i+1:]...)
	p.mesh = nil
	p.index = -1

	for j := i; j < len(m.polygons); j++ {
		m.polygons[j].index = j
	}
	for _, vmad := range m.vmads {
		vmad.polygonRemoved(i)
	}
}

// RemoveVertex removes unused vertex and shifts indices of following
// vertices and all vertex map values. Removing a used vertex panics.
func (m *MeshBuilder) RemoveVertex(i int) {
	v := m.Vertex(i)
	if len(v.polygons) != 0 {
		panic(fmt.Sprintf("removing vertex %d used by %d polygons", i, len(v.polygons)))
	}
	m.vertices = append(m.vertices[:i], m.vertices[i+1:]...)
	v.mesh = nil
	v.index = -1

	for j := i; j < len(m.vertices); j++ {
		m.vertices[j].index = j
	}
	for _, vmad := range m.vmads {
		vmad.vertexRemoved(i)
	}
	for _, vmap := range m.vmaps {
		vmap.vertexRemoved(i)
	}
}

func (m *MeshBuilder) RemovePolygons() {
	for i := len(m.polygons) - 1; i >= 0; i-- {
		m.RemovePolygon(i)
	}
}

func (m *MeshBuilder) RemoveVertices() {
	for i := len(m.vertices) - 1; i >= 0; i-- {
		m.RemoveVertex(i)
	}
}

// RemoveUnusedVertices removes vertices not referenced by any polygon.
func (m *MeshBuilder) RemoveUnusedVertices() int {
	removed := 0
	for i := 0; i < len(m.vertices); {
		if len(m.vertices[i].polygons) == 0 {
			m.RemoveVertex(i)
			removed++
		} else {
			i++
		}
	}
	return removed
}

func (m *MeshBuilder) Clear() {
	m.vmaps = nil
	m.vmads = nil
	m.RemovePolygons()
	m.RemoveVertices()
}

func (m *MeshBuilder) AddVertexMap(dimensions int, name string, format VertexMapFormat) *VertexMap {
	vm := &VertexMap{newVmap(dimensions, name, format)}
	m.vmaps = append(m.vmaps, vm)
	return vm
}

func (m *MeshBuilder) AddDiscontinuousVertexMap(dimensions int, name string, format VertexMapFormat) *DiscontinuousVertexMap {
	vm := &DiscontinuousVertexMap{newVmap(dimensions, name, format)}
	m.vmads = append(m.vmads, vm)
	return vm
}

func (m *MeshBuilder) VertexMaps() int { return len(m.vmaps) }

func (m *MeshBuilder) DiscontinuousVertexMaps() int { return len(m.vmads) }

func (m *MeshBuilder) VertexMap(i int) *VertexMap { return m.vmaps[i] }

func (m *MeshBuilder) DiscontinuousVertexMap(i int) *DiscontinuousVertexMap { return m.vmads[i] }

// VertexMapByName returns nil if there is no such map.
func (m *MeshBuilder) VertexMapByName(name string) *VertexMap {
	for _, vm := range m.vmaps {
		if vm.name == name {
			return vm
		}
	}
	return nil
}

func (m *MeshBuilder) DiscontinuousVertexMapByName(name string) *DiscontinuousVertexMap {
	for _, vm := range m.vmads {
		if vm.name == name {
			return vm
		}
	}
	return nil
}

func (m *MeshBuilder) RemoveVertexMap(i int) {
	m.vmaps = append(m.vmaps[:i], m.vmaps[i+1:]...)
}

func (m *MeshBuilder) RemoveDiscontinuousVertexMap(i int) {
	m.vmads = append(m.vmads[:i], m.vmads[i+1:]...)
}

// SplitVertexDiscontinuities clones every vertex whose polygons have
// different values in vmad, so that afterwards each vertex has a single
// value. Returns number of vertices added.
func (m *MeshBuilder) SplitVertexDiscontinuities(vmad *DiscontinuousVertexMap) int {
	added := 0
	for i := 0; i < len(m.vertices); i++ {
		v := m.vertices[i]
		if len(v.polygons) < 2 {
			continue
		}
		poly0 := v.polygons[0]
		data0, ok := vmad.Value(v.index, poly0.index)
		if !ok {
			continue
		}
		for j := 1; j < len(v.polygons); j++ {
			poly1 := v.polygons[j]
			if poly1 == poly0 {
				continue
			}
			data1, ok := vmad.Value(v.index, poly1.index)
			if !ok || floatsEqual(data0, data1) {
				continue
			}
			nv := v.Clone()
			poly1.SetVertex(poly1.IndexOf(v), nv)
			added++
			j--
		}
	}
	return added
}

// Validate checks that vertex back-references match polygon vertex lists.
func (m *MeshBuilder) Validate() error {
	refs := make(map[*Vertex]map[*Polygon]int, len(m.vertices))
	for i, p := range m.polygons {
		if p.index != i || p.mesh != m {
			return errors.Errorf("Polygon %d has index %d", i, p.index)
		}
		for _, v := range p.vertices {
			if v.mesh != m {
				return errors.Errorf("Polygon %d references removed vertex", i)
			}
			if refs[v] == nil {
				refs[v] = make(map[*Polygon]int)
			}
			refs[v][p]++
		}
	}
	for i, v := range m.vertices {
		if v.index != i || v.mesh != m {
			return errors.Errorf("Vertex %d has index %d", i, v.index)
		}
		back := make(map[*Polygon]int, len(v.polygons))
		for _, p := range v.polygons {
			back[p]++
		}
		if len(back) != len(refs[v]) {
			return errors.Errorf("Vertex %d back-references %d polygons, used by %d", i, len(back), len(refs[v]))
		}
		for p, count := range refs[v] {
			if back[p] != count {
				return errors.Errorf("Vertex %d back-references polygon %d %d times, used %d times",
					i, p.index, back[p], count)
			}
		}
	}
	return nil
}

// Triangles returns fan triangulation of all polygons as vertex index
// triples, skipping polygons with less than 3 vertices.
func (m *MeshBuilder) Triangles() [][3]int {
	result := make([][3]int, 0, len(m.polygons))
	for _, p := range m.polygons {
		for i := 2; i < len(p.vertices); i++ {
			result = append(result, [3]int{p.vertices[0].index, p.vertices[i-1].index, p.vertices[i].index})
		}
	}
	return result
}

// Bounds returns axis aligned box of vertex positions.
func (m *MeshBuilder) Bounds() (min, max mgl32.Vec3) {
	for i, v := range m.vertices {
		if i == 0 {
			min, max = v.position, v.position
			continue
		}
		for j := 0; j < 3; j++ {
			if v.position[j] < min[j] {
				min[j] = v.position[j]
			}
			if v.position[j] > max[j] {
				max[j] = v.position[j]
			}
		}
	}
	return
}

// Clone returns deep copy of the mesh.
func (m *MeshBuilder) Clone() *MeshBuilder {
	c := NewMeshBuilder()
	for _, v := range m.vertices {
		c.AddVertex().position = v.position
	}
	for _, p := range m.polygons {
		cp := c.AddPolygon()
		cp.material = p.material
		for _, v := range p.vertices {
			cp.AddVertex(c.vertices[v.index])
		}
	}
	for _, vm := range m.vmaps {
		cm := c.AddVertexMap(vm.dimensions, vm.name, vm.format)
		for k, data := range vm.values {
			cm.add(k, data)
		}
	}
	for _, vm := range m.vmads {
		cm := c.AddDiscontinuousVertexMap(vm.dimensions, vm.name, vm.format)
		for k, data := range vm.values {
			cm.add(k, data)
		}
	}
	return c
}

func (m *MeshBuilder) Equal(other *MeshBuilder) bool {
	if len(m.vertices) != len(other.vertices) || len(m.polygons) != len(other.polygons) ||
		len(m.vmaps) != len(other.vmaps) || len(m.vmads) != len(other.vmads) {
		return false
	}
	for i, v := range m.vertices {
		if !v.Equal(other.vertices[i]) {
			return false
		}
	}
	for i, p := range m.polygons {
		if !p.Equal(other.polygons[i]) || p.material != other.polygons[i].material {
			return false
		}
	}
	for i, vm := range m.vmaps {
		if !vm.Equal(other.vmaps[i]) {
			return false
		}
	}
	for i, vm := range m.vmads {
		if !vm.Equal(other.vmads[i]) {
			return false
		}
	}
	return true
}

func floatsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
