package mb

import (
	"fmt"
	"sort"
	"strings"
)

type VertexMapFormat int

const (
	VertexMapUnknown VertexMapFormat = iota
	VertexMapTexCoord
	VertexMapRGB
	VertexMapRGBA
	VertexMapWeight
	VertexMapNormal
)

var vertexMapFormatNames = []string{"unknown", "texcoord", "rgb", "rgba", "weight", "normal"}

func (f VertexMapFormat) String() string {
	if f >= 0 && int(f) < len(vertexMapFormatNames) {
		return vertexMapFormatNames[f]
	}
	return fmt.Sprintf("VertexMapFormat(%d)", int(f))
}

// ParseVertexMapFormat returns VertexMapUnknown for unrecognized names.
func ParseVertexMapFormat(name string) VertexMapFormat {
	for i, n := range vertexMapFormatNames {
		if strings.EqualFold(n, name) {
			return VertexMapFormat(i)
		}
	}
	return VertexMapUnknown
}

type vmapKey struct {
	vertex  int
	polygon int
}

// vmap is storage shared by vertex maps and discontinuous vertex maps.
// Vertex maps use polygon index -1.
type vmap struct {
	dimensions int
	name       string
	format     VertexMapFormat
	values     map[vmapKey][]float32
}

func newVmap(dimensions int, name string, format VertexMapFormat) vmap {
	if dimensions <= 0 {
		panic(fmt.Sprintf("vertex map %q invalid dimensions %d", name, dimensions))
	}
	return vmap{
		dimensions: dimensions,
		name:       name,
		format:     format,
		values:     make(map[vmapKey][]float32),
	}
}

func (m *vmap) add(key vmapKey, data []float32) {
	if len(data) != m.dimensions {
		panic(fmt.Sprintf("vertex map %q has %d dimensions, got %d values", m.name, m.dimensions, len(data)))
	}
	if cur, ok := m.values[key]; ok {
		copy(cur, data)
		return
	}
	m.values[key] = append([]float32(nil), data...)
}

func (m *vmap) get(key vmapKey) ([]float32, bool) {
	data, ok := m.values[key]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), data...), true
}

func (m *vmap) reindex(removed func(k vmapKey) (vmapKey, bool)) {
	values := make(map[vmapKey][]float32, len(m.values))
	for k, v := range m.values {
		if nk, keep := removed(k); keep {
			values[nk] = v
		}
	}
	m.values = values
}

func (m *vmap) vertexRemoved(index int) {
	m.reindex(func(k vmapKey) (vmapKey, bool) {
		switch {
		case k.vertex < index:
			return k, true
		case k.vertex > index:
			return vmapKey{k.vertex - 1, k.polygon}, true
		}
		return k, false
	})
}

func (m *vmap) polygonRemoved(index int) {
	m.reindex(func(k vmapKey) (vmapKey, bool) {
		switch {
		case k.polygon < index:
			return k, true
		case k.polygon > index:
			return vmapKey{k.vertex, k.polygon - 1}, true
		}
		return k, false
	})
}

func (m *vmap) sortedKeys() []vmapKey {
	keys := make([]vmapKey, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].vertex != keys[j].vertex {
			return keys[i].vertex < keys[j].vertex
		}
		return keys[i].polygon < keys[j].polygon
	})
	return keys
}

func (m *vmap) equal(other *vmap) bool {
	if m.dimensions != other.dimensions || m.name != other.name || m.format != other.format ||
		len(m.values) != len(other.values) {
		return false
	}
	for k, v := range m.values {
		ov, ok := other.values[k]
		if !ok {
			return false
		}
		for i := range v {
			if v[i] != ov[i] {
				return false
			}
		}
	}
	return true
}

func (m *vmap) Name() string { return m.name }

func (m *vmap) Dimensions() int { return m.dimensions }

func (m *vmap) Format() VertexMapFormat { return m.format }

// Len returns number of stored values.
func (m *vmap) Len() int { return len(m.values) }

// VertexMap is a sparse per-vertex attribute channel with fixed dimensions.
type VertexMap struct {
	vmap
}

// AddValue sets value of vertex. len(data) must match map dimensions.
func (m *VertexMap) AddValue(vertex int, data []float32) {
	m.add(vmapKey{vertex, -1}, data)
}

// Value returns copy of vertex value; ok is false if vertex has no value.
func (m *VertexMap) Value(vertex int) (data []float32, ok bool) {
	return m.get(vmapKey{vertex, -1})
}

func (m *VertexMap) RemoveValue(vertex int) {
	delete(m.values, vmapKey{vertex, -1})
}

// Vertices returns sorted indices of vertices having a value.
func (m *VertexMap) Vertices() []int {
	keys := m.sortedKeys()
	result := make([]int, len(keys))
	for i, k := range keys {
		result[i] = k.vertex
	}
	return result
}

func (m *VertexMap) Equal(other *VertexMap) bool { return m.equal(&other.vmap) }

// DiscontinuousVertexMap is a sparse attribute channel keyed by
// (vertex, polygon) so a vertex can have different values per polygon.
type DiscontinuousVertexMap struct {
	vmap
}

func (m *DiscontinuousVertexMap) AddValue(vertex, polygon int, data []float32) {
	m.add(vmapKey{vertex, polygon}, data)
}

func (m *DiscontinuousVertexMap) Value(vertex, polygon int) (data []float32, ok bool) {
	return m.get(vmapKey{vertex, polygon})
}

func (m *DiscontinuousVertexMap) RemoveValue(vertex, polygon int) {
	delete(m.values, vmapKey{vertex, polygon})
}

// Keys returns sorted (vertex, polygon) pairs having a value.
func (m *DiscontinuousVertexMap) Keys() [][2]int {
	keys := m.sortedKeys()
	result := make([][2]int, len(keys))
	for i, k := range keys {
		result[i] = [2]int{k.vertex, k.polygon}
	}
	return result
}

func (m *DiscontinuousVertexMap) Equal(other *DiscontinuousVertexMap) bool {
	return m.equal(&other.vmap)
}
