package mb

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_browser/chunk"
)

func TestPolygonVertex(t *testing.T) {
	mesh := NewMeshBuilder()
	var v [4]*Vertex
	for i := range v { // 0 1
		v[i] = mesh.AddVertex() // 3 2
	}

	a := mesh.AddPolygon()
	a.AddVertex(v[0])
	a.AddVertex(v[1])
	a.AddVertex(v[2])

	b := mesh.AddPolygon()
	b.AddVertex(v[0])
	b.AddVertex(v[2])
	b.AddVertex(v[3])

	assert.Equal(t, 2, v[0].Polygons())
	assert.Equal(t, 1, v[1].Polygons())
	assert.Equal(t, 2, v[2].Polygons())
	assert.Equal(t, 1, v[3].Polygons())

	assert.Equal(t, 2, a.Vertex(2).Index())
	assert.Equal(t, 2, b.Vertex(1).Index())
	assert.Equal(t, 3, b.Vertex(2).Index())

	a.RemoveVertex(a.Vertex(2))
	assert.Equal(t, 1, v[2].Polygons())
	assert.Equal(t, 2, b.Vertex(1).Index())

	c := mesh.AddPolygon()
	for i := range v {
		c.AddVertex(v[i])
	}
	c2, err := c.Split(3, 1)
	require.NoError(t, err)
	assert.Same(t, mesh.Polygon(mesh.Polygons()-1), c2)

	assert.Equal(t, 3, c.Vertices())
	assert.Same(t, v[1], c.Vertex(0))
	assert.Same(t, v[2], c.Vertex(1))
	assert.Same(t, v[3], c.Vertex(2))
	assert.Equal(t, 3, c2.Vertices())
	assert.Same(t, v[0], c2.Vertex(0))
	assert.Same(t, v[1], c2.Vertex(1))
	assert.Same(t, v[3], c2.Vertex(2))

	require.NoError(t, mesh.Validate())
}

func quad(mesh *MeshBuilder) *Polygon {
	p := mesh.AddPolygon()
	for i := 0; i < 4; i++ {
		p.AddVertex(mesh.AddVertex())
	}
	return p
}

func TestSplitRejected(t *testing.T) {
	mesh := NewMeshBuilder()
	tri := mesh.AddPolygon()
	for i := 0; i < 3; i++ {
		tri.AddVertex(mesh.AddVertex())
	}
	q := quad(mesh)

	for _, test := range []struct {
		p      *Polygon
		v0, v1 int
	}{
		{tri, 0, 2},
		{q, 1, 1},
		{q, 0, 1},
		{q, 3, 0},
		{q, 2, 3},
		{q, -1, 2},
		{q, 0, 4},
	} {
		_, err := test.p.Split(test.v0, test.v1)
		if err == nil {
			t.Errorf("Split(%d,%d) of %v: expected error", test.v0, test.v1, test.p)
		}
	}
	assert.Equal(t, 2, mesh.Polygons())
	assert.Equal(t, 4, q.Vertices())
	require.NoError(t, mesh.Validate())
}

func TestSplitHexagon(t *testing.T) {
	mesh := NewMeshBuilder()
	p := mesh.AddPolygon()
	for i := 0; i < 6; i++ {
		p.AddVertex(mesh.AddVertex())
	}
	other, err := p.Split(1, 4)
	require.NoError(t, err)

	indices := func(p *Polygon) []int {
		var r []int
		for i := 0; i < p.Vertices(); i++ {
			r = append(r, p.Vertex(i).Index())
		}
		return r
	}
	assert.Equal(t, []int{1, 2, 3, 4}, indices(p))
	assert.Equal(t, []int{0, 1, 4, 5}, indices(other))
	assert.Equal(t, 2, mesh.Vertex(1).Polygons())
	assert.Equal(t, 2, mesh.Vertex(4).Polygons())
	assert.Equal(t, 1, mesh.Vertex(0).Polygons())
	require.NoError(t, mesh.Validate())
}

func TestSplitCopiesDiscontinuousValues(t *testing.T) {
	mesh := NewMeshBuilder()
	uv := mesh.AddDiscontinuousVertexMap(2, "uv", VertexMapTexCoord)
	p := quad(mesh)
	for i := 0; i < 4; i++ {
		uv.AddValue(i, p.Index(), []float32{float32(i), 0})
	}
	other, err := p.Split(0, 2)
	require.NoError(t, err)

	for i := 0; i < other.Vertices(); i++ {
		vi := other.Vertex(i).Index()
		data, ok := uv.Value(vi, other.Index())
		require.True(t, ok)
		assert.Equal(t, []float32{float32(vi), 0}, data)
	}
}

func TestVertexMapAbsent(t *testing.T) {
	mesh := NewMeshBuilder()
	mesh.AddVertex()
	mesh.AddVertex()
	vm := mesh.AddVertexMap(3, "color", VertexMapRGB)
	vm.AddValue(1, []float32{1, 2, 3})

	data, ok := vm.Value(0)
	assert.False(t, ok)
	assert.Nil(t, data)
	data, ok = vm.Value(100)
	assert.False(t, ok)
	assert.Nil(t, data)

	data, ok = vm.Value(1)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, data)

	// returned slice is a copy
	data[0] = 100
	data, _ = vm.Value(1)
	assert.Equal(t, float32(1), data[0])

	assert.Panics(t, func() { vm.AddValue(0, []float32{1}) })
	assert.Same(t, vm, mesh.VertexMapByName("color"))
	assert.Nil(t, mesh.VertexMapByName("uv"))
}

func TestRemoveReindex(t *testing.T) {
	mesh := NewMeshBuilder()
	vm := mesh.AddVertexMap(1, "w", VertexMapWeight)
	vmad := mesh.AddDiscontinuousVertexMap(1, "d", VertexMapUnknown)

	for i := 0; i < 5; i++ {
		v := mesh.AddVertex()
		v.SetPosition(mgl32.Vec3{float32(i), 0, 0})
		vm.AddValue(i, []float32{float32(i)})
	}
	p0 := mesh.AddPolygon()
	p0.AddVertex(mesh.Vertex(0))
	p0.AddVertex(mesh.Vertex(1))
	p0.AddVertex(mesh.Vertex(3))
	p1 := mesh.AddPolygon()
	p1.AddVertex(mesh.Vertex(1))
	p1.AddVertex(mesh.Vertex(3))
	p1.AddVertex(mesh.Vertex(4))
	vmad.AddValue(3, 0, []float32{30})
	vmad.AddValue(3, 1, []float32{31})

	assert.Panics(t, func() { mesh.RemoveVertex(1) })

	assert.Equal(t, 1, mesh.RemoveUnusedVertices())
	assert.Equal(t, 4, mesh.Vertices())
	for i := 0; i < mesh.Vertices(); i++ {
		assert.Equal(t, i, mesh.Vertex(i).Index())
	}
	data, ok := vm.Value(2)
	require.True(t, ok)
	assert.Equal(t, []float32{3}, data)
	data, ok = vmad.Value(2, 1)
	require.True(t, ok)
	assert.Equal(t, []float32{31}, data)

	mesh.RemovePolygon(0)
	assert.Equal(t, 0, p1.Index())
	assert.Equal(t, -1, p0.Index())
	_, ok = vmad.Value(2, 1)
	assert.False(t, ok)
	data, ok = vmad.Value(2, 0)
	require.True(t, ok)
	assert.Equal(t, []float32{31}, data)
	assert.Equal(t, 0, mesh.Vertex(0).Polygons())
	require.NoError(t, mesh.Validate())
}

func TestRemoveMissingVertexPanics(t *testing.T) {
	mesh := NewMeshBuilder()
	p := mesh.AddPolygon()
	p.AddVertex(mesh.AddVertex())
	other := mesh.AddVertex()
	assert.Panics(t, func() { p.RemoveVertex(other) })
}

// Back-reference counts must match polygon usage after any edit sequence.
func TestBackReferencesRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	mesh := NewMeshBuilder()

	for step := 0; step < 2000; step++ {
		switch op := rnd.Intn(7); {
		case op == 0 || mesh.Vertices() < 3:
			mesh.AddVertex()
		case op == 1:
			p := mesh.AddPolygon()
			for n := 3 + rnd.Intn(4); n > 0; n-- {
				p.AddVertex(mesh.Vertex(rnd.Intn(mesh.Vertices())))
			}
		case op == 2 && mesh.Polygons() > 0:
			mesh.RemovePolygon(rnd.Intn(mesh.Polygons()))
		case op == 3:
			mesh.RemoveUnusedVertices()
		case op == 4 && mesh.Polygons() > 0:
			p := mesh.Polygon(rnd.Intn(mesh.Polygons()))
			if p.Vertices() > 0 {
				p.SetVertex(rnd.Intn(p.Vertices()), mesh.Vertex(rnd.Intn(mesh.Vertices())))
			}
		case op == 5 && mesh.Polygons() > 0:
			p := mesh.Polygon(rnd.Intn(mesh.Polygons()))
			if p.Vertices() > 0 {
				p.RemoveVertex(p.Vertex(rnd.Intn(p.Vertices())))
			}
		case op == 6 && mesh.Polygons() > 0:
			p := mesh.Polygon(rnd.Intn(mesh.Polygons()))
			if n := p.Vertices(); n > 3 {
				v0 := rnd.Intn(n)
				p.Split(v0, (v0+2)%n)
			}
		}

		if step%50 == 0 {
			require.NoError(t, mesh.Validate(), "step %d", step)
		}
	}
	require.NoError(t, mesh.Validate())

	counts := make(map[*Vertex]int)
	for i := 0; i < mesh.Polygons(); i++ {
		p := mesh.Polygon(i)
		for j := 0; j < p.Vertices(); j++ {
			counts[p.Vertex(j)]++
		}
	}
	for i := 0; i < mesh.Vertices(); i++ {
		v := mesh.Vertex(i)
		assert.Equal(t, counts[v], v.Polygons(), "vertex %d", i)
	}
}

func TestSplitVertexDiscontinuities(t *testing.T) {
	mesh := NewMeshBuilder()
	uv := mesh.AddDiscontinuousVertexMap(2, "uv", VertexMapTexCoord)
	var v [4]*Vertex
	for i := range v {
		v[i] = mesh.AddVertex()
	}
	a := mesh.AddPolygon()
	a.AddVertex(v[0])
	a.AddVertex(v[1])
	a.AddVertex(v[2])
	b := mesh.AddPolygon()
	b.AddVertex(v[0])
	b.AddVertex(v[2])
	b.AddVertex(v[3])

	for _, vi := range []int{0, 1, 2} {
		uv.AddValue(vi, a.Index(), []float32{float32(vi), 0})
	}
	uv.AddValue(0, b.Index(), []float32{0, 0})
	uv.AddValue(2, b.Index(), []float32{5, 5})
	uv.AddValue(3, b.Index(), []float32{3, 0})

	assert.Equal(t, 1, mesh.SplitVertexDiscontinuities(uv))
	assert.Equal(t, 5, mesh.Vertices())
	assert.Same(t, v[0], b.Vertex(0))
	nv := b.Vertex(1)
	assert.Equal(t, 4, nv.Index())
	assert.Equal(t, 1, v[2].Polygons())
	data, ok := uv.Value(nv.Index(), b.Index())
	require.True(t, ok)
	assert.Equal(t, []float32{5, 5}, data)
	require.NoError(t, mesh.Validate())
}

func buildTestMesh() *MeshBuilder {
	mesh := NewMeshBuilder()
	for i := 0; i < 4; i++ {
		mesh.AddVertex().SetPosition(mgl32.Vec3{float32(i & 1), float32(i >> 1), 0})
	}
	p := mesh.AddPolygon()
	p.SetMaterial(2)
	for _, i := range []int{0, 1, 3, 2} {
		p.AddVertex(mesh.Vertex(i))
	}
	uv := mesh.AddVertexMap(2, "uv", VertexMapTexCoord)
	uv.AddValue(0, []float32{0, 0})
	uv.AddValue(3, []float32{1, 1})
	vmad := mesh.AddDiscontinuousVertexMap(3, "color", VertexMapRGB)
	vmad.AddValue(1, 0, []float32{1, 0, 0})
	return mesh
}

func TestMarshal(t *testing.T) {
	mesh := buildTestMesh()

	var buf bytes.Buffer
	w := chunk.NewWriter(&buf)
	require.NoError(t, mesh.Write(w))

	r := chunk.NewReader(bytes.NewReader(buf.Bytes()))
	result, err := ReadChunk(r)
	require.NoError(t, err)
	assert.True(t, mesh.Equal(result))
	assert.True(t, mesh.Clone().Equal(result))
	require.NoError(t, result.Validate())

	result.Vertex(0).SetPosition(mgl32.Vec3{5, 5, 5})
	assert.False(t, mesh.Equal(result))
}

func TestMarshalBadIndex(t *testing.T) {
	var buf bytes.Buffer
	w := chunk.NewWriter(&buf)
	g := w.Begin(GeometryChunk)
	require.NoError(t, w.WriteInt32Chunk("vertices", 0))
	require.NoError(t, w.WriteInt32Chunk("polygons", 1, 0, 1, 7))
	require.NoError(t, g.End())

	_, err := ReadChunk(chunk.NewReader(bytes.NewReader(buf.Bytes())))
	assert.True(t, chunk.IsFormatError(err), "%v", err)
}

func TestNormalsAndBounds(t *testing.T) {
	mesh := buildTestMesh()
	p := mesh.Polygon(0)
	assert.InDelta(t, 0, p.Normal().Sub(mgl32.Vec3{0, 0, 1}).Len(), 1e-5, "%v", p.Normal())
	assert.InDelta(t, 0, mesh.Vertex(3).Normal().Sub(mgl32.Vec3{0, 0, 1}).Len(), 1e-5, "%v", mesh.Vertex(3).Normal())

	min, max := mesh.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, max)
	assert.Equal(t, [][3]int{{0, 1, 3}, {0, 3, 2}}, mesh.Triangles())
}

func TestExportObj(t *testing.T) {
	mesh := buildTestMesh()
	var buf bytes.Buffer
	n, err := mesh.ExportObj(&buf, "test mesh", mgl32.Ident4(), []string{"a", "b", "c"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "o test_mesh\n"))
	assert.Contains(t, out, "usemtl c\n")
	assert.Contains(t, out, "f 11/11/11 12/12/12 14/14/14 13/13/13\n")
	assert.Equal(t, 4, strings.Count(out, "\nvt "))
}
