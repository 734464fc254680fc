package sgu

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_browser/chunk"
	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

func testModelFile() *ModelFile {
	red := sg.NewMaterial("red")
	red.Diffuse = mgl32.Vec4{1, 0, 0, 0.5}
	red.Specular = mgl32.Vec3{1, 1, 1}
	red.SpecularExponent = 20
	red.Lighting = false
	red.Textures = []string{"brick.tga", "detail.tga"}

	return &ModelFile{
		Name:      "tri.gm",
		Materials: []*sg.Material{red},
		Models: []Model{
			{Material: red, Geometry: triangle(4, 2)},
			{Geometry: triangle(1, 1)},
		},
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	mf := testModelFile()
	var buf bytes.Buffer
	require.NoError(t, mf.Write(&buf))

	loaded, err := ReadModel(bytes.NewReader(buf.Bytes()), "tri.gm")
	require.NoError(t, err)

	require.Len(t, loaded.Materials, 1)
	assert.Equal(t, mf.Materials[0], loaded.Materials[0])
	require.Len(t, loaded.Models, 2)
	assert.Same(t, loaded.Materials[0], loaded.Models[0].Material)
	assert.Nil(t, loaded.Models[1].Material)
	for i := range mf.Models {
		assert.True(t, mf.Models[i].Geometry.Equal(loaded.Models[i].Geometry), "model %d", i)
	}
}

func TestModelFileErrors(t *testing.T) {
	write := func(fn func(w *chunk.Writer)) []byte {
		var buf bytes.Buffer
		w := chunk.NewWriter(&buf)
		s := w.Begin(ModelChunk)
		w.WriteInt(ModelVersion)
		fn(w)
		require.NoError(t, s.End())
		require.NoError(t, w.Close())
		return buf.Bytes()
	}

	for name, data := range map[string][]byte{
		"material index": write(func(w *chunk.Writer) {
			s := w.Begin("model")
			w.WriteInt32Chunk("material", 1)
			triangle(1, 1).Write(w)
			s.End()
		}),
		"no geometry": write(func(w *chunk.Writer) {
			s := w.Begin("model")
			s.End()
		}),
		"opacity": write(func(w *chunk.Writer) {
			s := w.Begin("material")
			w.WriteString("m")
			w.WriteFloat32Chunk("opacity", 2)
			s.End()
		}),
	} {
		_, err := ReadModel(bytes.NewReader(data), name)
		assert.Error(t, err, name)
	}

	// unknown chunks are skipped
	data := write(func(w *chunk.Writer) {
		w.WriteStringChunk("info", "exported by hand")
	})
	mf, err := ReadModel(bytes.NewReader(data), "info.gm")
	require.NoError(t, err)
	assert.Empty(t, mf.Models)

	mf = testModelFile()
	mf.Materials = nil
	assert.Error(t, mf.Write(&bytes.Buffer{}))
}

func writeModel(t *testing.T, path string, mf *ModelFile) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	var buf bytes.Buffer
	require.NoError(t, mf.Write(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0666))
}

func TestModelCache(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, filepath.Join(dir, "models", "tri.gm"), testModelFile())

	cache := NewModelCache(vfs.NewDirectoryDriver(dir))
	defer cache.Close()

	a, err := cache.LoadModel("models/tri.gm")
	require.NoError(t, err)
	b, err := cache.LoadModel("MODELS\\TRI.GM")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.LoadModel("models/missing.gm")
	assert.Error(t, err)

	var invalidated []string
	cache.OnInvalidate(func(p string) { invalidated = append(invalidated, p) })
	cache.Invalidate("Models\\Tri.gm")
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, []string{"Models/Tri.gm"}, invalidated)

	require.NoError(t, cache.Watch())
	_, err = cache.LoadModel("models/tri.gm")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	writeModel(t, filepath.Join(dir, "models", "tri.gm"), testModelFile())
	assert.Eventually(t, func() bool { return cache.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestModelCacheLoadsScene(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, filepath.Join(dir, "scenes", "models", "tri.gm"), testModelFile())

	s := sg.NewScene("level.sg")
	require.NoError(t, sg.NewObjectNode("mesh", &sg.Mesh{Model: "models/tri.gm"}).LinkTo(s.Node))

	storage := vfs.NewDirectoryDriver(dir)
	scenes, err := storage.GetElement("scenes")
	require.NoError(t, err)
	require.NoError(t, scenes.(vfs.Directory).Add(vfs.NewDirectoryDriverFile("level.sg")))
	f, err := vfs.DirectoryGetFile(scenes.(vfs.Directory), "level.sg")
	require.NoError(t, err)
	require.NoError(t, SaveScene(f, s))

	cache := NewModelCache(storage)
	loaded, err := LoadScene(storage, "scenes/level.sg", cache, config.LoadDefault)
	require.NoError(t, err)

	mesh := loaded.FindByName("mesh").Object.(*sg.Mesh)
	require.Len(t, mesh.Primitives, 2)
	assert.Equal(t, "red", mesh.Primitives[0].Material.Name)
	assert.Equal(t, 1, cache.Len())
}
