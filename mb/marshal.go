package mb

import (
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/chunk"
)

const GeometryChunk = "geometry"

// Write writes mesh as "geometry" chunk with "vertices", "polygons",
// "vmap" and "vmad" sub-chunks.
func (m *MeshBuilder) Write(w *chunk.Writer) error {
	geom := w.Begin(GeometryChunk)

	s := w.Begin("vertices")
	w.WriteInt(len(m.vertices))
	for _, v := range m.vertices {
		w.WriteFloat32s(v.position[:]...)
	}
	if err := s.End(); err != nil {
		return err
	}

	s = w.Begin("polygons")
	w.WriteInt(len(m.polygons))
	for _, p := range m.polygons {
		w.WriteInt(p.material)
		w.WriteInt(len(p.vertices))
		for _, v := range p.vertices {
			w.WriteInt(v.index)
		}
	}
	if err := s.End(); err != nil {
		return err
	}

	for _, vm := range m.vmaps {
		s = w.Begin("vmap")
		writeVmapHeader(w, &vm.vmap)
		for _, k := range vm.sortedKeys() {
			w.WriteInt(k.vertex)
			w.WriteFloat32s(vm.values[k]...)
		}
		if err := s.End(); err != nil {
			return err
		}
	}
	for _, vm := range m.vmads {
		s = w.Begin("vmad")
		writeVmapHeader(w, &vm.vmap)
		for _, k := range vm.sortedKeys() {
			w.WriteInt(k.vertex)
			w.WriteInt(k.polygon)
			w.WriteFloat32s(vm.values[k]...)
		}
		if err := s.End(); err != nil {
			return err
		}
	}
	return geom.End()
}

func writeVmapHeader(w *chunk.Writer, vm *vmap) {
	w.WriteString(vm.name)
	w.WriteInt(vm.dimensions)
	w.WriteInt(int(vm.format))
	w.WriteInt(len(vm.values))
}

// ReadChunk reads "geometry" chunk written by Write.
func ReadChunk(r *chunk.Reader) (*MeshBuilder, error) {
	name, end, err := r.Begin()
	if err != nil {
		return nil, err
	}
	if name != GeometryChunk {
		return nil, chunk.FormatErrorf("expected %q chunk, got %q", GeometryChunk, name)
	}
	m, err := Read(r, end)
	if err != nil {
		return nil, err
	}
	return m, r.End(end)
}

// Read reads payload of already begun "geometry" chunk ending at end.
// Unknown sub-chunks are skipped.
func Read(r *chunk.Reader, end int64) (*MeshBuilder, error) {
	m := NewMeshBuilder()
	for r.More(end) {
		name, subEnd, err := r.Begin()
		if err != nil {
			return nil, err
		}
		switch name {
		case "vertices":
			err = m.readVertices(r, subEnd)
		case "polygons":
			err = m.readPolygons(r, subEnd)
		case "vmap":
			err = m.readVmap(r, subEnd, false)
		case "vmad":
			err = m.readVmap(r, subEnd, true)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "geometry %q chunk", name)
		}
		if err := r.End(subEnd); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// readCount reads element count and checks that count elements of at
// least minSize bytes fit before end.
func readCount(r *chunk.Reader, end int64, minSize int64) (int, error) {
	count, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	if count < 0 || int64(count)*minSize > end-r.Pos() {
		return 0, chunk.FormatErrorf("invalid element count %d", count)
	}
	return count, nil
}

func (m *MeshBuilder) readVertices(r *chunk.Reader, end int64) error {
	count, err := readCount(r, end, 12)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		v := m.AddVertex()
		if err := r.ReadFloat32s(v.position[:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MeshBuilder) readPolygons(r *chunk.Reader, end int64) error {
	count, err := readCount(r, end, 8)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		p := m.AddPolygon()
		if p.material, err = r.ReadInt(); err != nil {
			return err
		}
		verts, err := readCount(r, end, 4)
		if err != nil {
			return err
		}
		for j := 0; j < verts; j++ {
			vi, err := r.ReadInt()
			if err != nil {
				return err
			}
			if vi < 0 || vi >= len(m.vertices) {
				return chunk.FormatErrorf("polygon %d references vertex %d of %d", p.index, vi, len(m.vertices))
			}
			p.AddVertex(m.vertices[vi])
		}
	}
	return nil
}

func (m *MeshBuilder) readVmap(r *chunk.Reader, end int64, discontinuous bool) error {
	name, err := r.ReadString()
	if err != nil {
		return err
	}
	dim, err := r.ReadInt()
	if err != nil {
		return err
	}
	if dim <= 0 || dim > 64 {
		return chunk.FormatErrorf("vertex map %q invalid dimensions %d", name, dim)
	}
	format, err := r.ReadInt()
	if err != nil {
		return err
	}

	keySize := int64(4)
	if discontinuous {
		keySize = 8
	}
	count, err := readCount(r, end, keySize+int64(dim)*4)
	if err != nil {
		return err
	}

	var vm *vmap
	if discontinuous {
		vm = &m.AddDiscontinuousVertexMap(dim, name, VertexMapFormat(format)).vmap
	} else {
		vm = &m.AddVertexMap(dim, name, VertexMapFormat(format)).vmap
	}

	data := make([]float32, dim)
	for i := 0; i < count; i++ {
		k := vmapKey{polygon: -1}
		if k.vertex, err = r.ReadInt(); err != nil {
			return err
		}
		if k.vertex < 0 || k.vertex >= len(m.vertices) {
			return chunk.FormatErrorf("vertex map %q references vertex %d of %d", name, k.vertex, len(m.vertices))
		}
		if discontinuous {
			if k.polygon, err = r.ReadInt(); err != nil {
				return err
			}
			if k.polygon < 0 || k.polygon >= len(m.polygons) {
				return chunk.FormatErrorf("vertex map %q references polygon %d of %d", name, k.polygon, len(m.polygons))
			}
		}
		if err := r.ReadFloat32s(data); err != nil {
			return err
		}
		vm.add(k, data)
	}
	return nil
}
