package sgu

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

func buildMeshScene(t *testing.T) *sg.Scene {
	s := sg.NewScene("meshes.sg")
	mf := testModelFile()

	box := &sg.Mesh{Model: "tri.gm"}
	for _, m := range mf.Models {
		box.AddPrimitive(m.Material, m.Geometry)
	}
	boxNode := sg.NewObjectNode("box", box)
	boxNode.SetPosition(mgl32.Vec3{10, 0, 0})

	single := &sg.Mesh{}
	single.AddPrimitive(nil, triangle(1, 1))
	// unnamed nodes get generated names
	link(t, s.Node, boxNode, sg.NewObjectNode("", single), sg.NewObjectNode("cam", sg.NewCamera()))
	link(t, boxNode, sg.NewNode("box"))
	s.SetState(0)
	return s
}

func TestExportGLTF(t *testing.T) {
	s := buildMeshScene(t)
	doc := ExportGLTF(s)

	assert.Len(t, doc.Scenes[0].Nodes, 3)
	assert.Len(t, doc.Meshes, 2)
	assert.Len(t, doc.Cameras, 1)
	// red and default
	assert.Len(t, doc.Materials, 2)

	names := make(map[string]bool)
	for _, n := range doc.Nodes {
		assert.NotEmpty(t, n.Name)
		assert.False(t, names[n.Name], "duplicate node name %q", n.Name)
		names[n.Name] = true
	}
	assert.Equal(t, [3]float32{10, 0, 0}, doc.Nodes[doc.Scenes[0].Nodes[0]].Translation)

	var buf bytes.Buffer
	require.NoError(t, WriteGLTF(&buf, s))
	assert.Equal(t, "glTF", buf.String()[:4])
}

func TestExportGLTFNamesAreStable(t *testing.T) {
	a := ExportGLTF(buildMeshScene(t))
	b := ExportGLTF(buildMeshScene(t))
	require.Equal(t, len(a.Nodes), len(b.Nodes))
	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i].Name, b.Nodes[i].Name)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, buildMeshScene(t)))

	var summary SceneSummary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, "meshes.sg", summary.Name)
	require.Len(t, summary.Nodes, 3)

	box := summary.Nodes[0]
	assert.Equal(t, "mesh", box.Kind)
	assert.Equal(t, []string{"red", ""}, box.Primitives)
	assert.Equal(t, 6, box.Vertices)
	assert.Equal(t, [3]float32{10, 0, 0}, box.Position)
	require.Len(t, box.Children, 1)
	assert.Equal(t, "camera", summary.Nodes[2].Kind)
}

func TestWriteObj(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObj(&buf, buildMeshScene(t)))

	var vertices, faces int
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "v "):
			vertices++
		case strings.HasPrefix(line, "f "):
			faces++
		}
	}
	assert.Equal(t, 9, vertices)
	assert.Equal(t, 3, faces)
	// world transform is applied
	assert.Contains(t, buf.String(), "v 14.000000 0.000000 0.000000")
	// indices continue across primitives
	assert.Contains(t, buf.String(), "f 7/7/7 8/8/8 9/9/9")
	assert.Contains(t, buf.String(), "usemtl red")
}

func TestWriteFBX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFBX(&buf, buildMeshScene(t)))
	assert.NotZero(t, buf.Len())
}

func TestExportFBXGlobalSettings(t *testing.T) {
	s := buildMeshScene(t)
	f := ExportFBX(s)
	assert.InDeltaSlice(t, []float64{32.0 / 255, 32.0 / 255, 32.0 / 255}, toFloats(f.GlobalProperty("AmbientColor")), 1e-6)
	assert.Equal(t, []interface{}{"Producer Perspective"}, f.GlobalProperty("DefaultCamera"))
	assert.Equal(t, []interface{}{int64(0)}, f.GlobalProperty("TimeSpanStop"))

	s.Ambient = mgl32.Vec3{0.5, 0.25, 1}
	s.Camera = s.FindByName("cam")
	s.AnimationEnd = 2
	f = ExportFBX(s)
	assert.Equal(t, []interface{}{float64(0.5), float64(0.25), float64(1)}, f.GlobalProperty("AmbientColor"))
	assert.Equal(t, []interface{}{"cam"}, f.GlobalProperty("DefaultCamera"))
	assert.Equal(t, []interface{}{int64(0)}, f.GlobalProperty("TimeSpanStart"))
	assert.Equal(t, []interface{}{int64(2 * 46186158000)}, f.GlobalProperty("TimeSpanStop"))
	assert.Equal(t, "cam", f.Settings().DefaultCamera)
	assert.Nil(t, f.GlobalProperty("Missing"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	assert.NotZero(t, buf.Len())
}

func toFloats(values []interface{}) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = v.(float64)
	}
	return result
}

func TestExportFormats(t *testing.T) {
	assert.Equal(t, []string{"fbx", "fbxzip", "gltf", "obj", "yaml"}, ExportFormats())
	ext, ok := ExportExt("gltf")
	assert.True(t, ok)
	assert.Equal(t, ".glb", ext)

	var buf bytes.Buffer
	assert.Error(t, Export(&buf, "collada", sg.NewScene("s"), nil, ""))
	assert.Error(t, Export(&buf, "fbxzip", sg.NewScene("s"), nil, ""))
	require.NoError(t, Export(&buf, "yaml", sg.NewScene("s"), nil, ""))
	assert.Contains(t, buf.String(), "name: s")
}

func TestWriteFBXZip(t *testing.T) {
	s := buildMeshScene(t)
	assert.Equal(t, []string{"brick.tga", "detail.tga"}, SceneTextures(s))

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "levels"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "levels", "brick.tga"), []byte("tga"), 0666))

	var buf bytes.Buffer
	require.NoError(t, WriteFBXZip(&buf, s, vfs.NewDirectoryDriver(dir), "levels"))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"brick.tga", "meshes.fbx"}, names)
}
