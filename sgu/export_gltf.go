package sgu

import (
	"fmt"
	"io"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/scene_browser/mb"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/utils"
	"github.com/mogaika/scene_browser/utils/gltfutils"
)

// cameras are exported with fixed aspect ratio, since viewport is unknown
const gltfCameraAspect = 4.0 / 3.0

type gltfExporter struct {
	doc             *gltf.Document
	materials       map[*sg.Material]uint32
	defaultMaterial *uint32
	names           *nodeNamer
}

// ExportGLTF converts current state of scene to glTF document. Animation
// controllers and mesh bones are not exported.
func ExportGLTF(s *sg.Scene) *gltf.Document {
	e := &gltfExporter{
		doc:       gltfutils.NewDocument(),
		materials: make(map[*sg.Material]uint32),
		names:     newNodeNamer(s),
	}
	e.doc.Scenes[0].Name = s.Name()
	for _, child := range s.Children() {
		e.doc.Scenes[0].Nodes = append(e.doc.Scenes[0].Nodes, e.exportNode(child))
	}
	return e.doc
}

// WriteGLTF writes scene as binary glTF.
func WriteGLTF(w io.Writer, s *sg.Scene) error {
	return gltfutils.ExportBinary(w, ExportGLTF(s))
}

func (e *gltfExporter) exportNode(n *sg.Node) uint32 {
	q := n.Rotation()
	node := &gltf.Node{
		Name:        e.names.Name(n),
		Translation: n.Position(),
		Rotation:    [4]float32{q.V[0], q.V[1], q.V[2], q.W},
		Scale:       n.Scale(),
		Extras:      map[string]interface{}{"kind": n.Kind(), "enabled": n.Enabled()},
	}
	id := gltfutils.AddNode(e.doc, node)

	switch obj := n.Object.(type) {
	case *sg.Mesh:
		if n.Renderable() {
			if mesh, ok := e.exportMesh(node.Name, obj); ok {
				node.Mesh = gltf.Index(mesh)
			}
		}
	case *sg.Camera:
		// glTF cameras look along -Z
		camera := &gltf.Node{
			Name:     node.Name + "_camera",
			Rotation: [4]float32{0, 1, 0, 0},
			Camera:   gltf.Index(e.exportCamera(node.Name, obj)),
		}
		node.Children = append(node.Children, gltfutils.AddNode(e.doc, camera))
	case *sg.Light:
		extras := node.Extras.(map[string]interface{})
		extras["color"] = obj.Color
		extras["intensity"] = obj.Intensity
		if obj.Type == sg.LightPoint || obj.Type == sg.LightSpot {
			extras["range"] = obj.Range
		}
	}

	for _, child := range n.Children() {
		node.Children = append(node.Children, e.exportNode(child))
	}
	return id
}

func (e *gltfExporter) exportCamera(name string, c *sg.Camera) uint32 {
	yfov := 2 * math.Atan(math.Tan(float64(c.HorizontalFOV)/2)/gltfCameraAspect)
	zfar := c.Back
	aspect := float32(gltfCameraAspect)
	e.doc.Cameras = append(e.doc.Cameras, &gltf.Camera{
		Name: name,
		Perspective: &gltf.Perspective{
			AspectRatio: &aspect,
			Yfov:        float32(yfov),
			Znear:       c.Front,
			Zfar:        &zfar,
		},
	})
	return uint32(len(e.doc.Cameras) - 1)
}

func (e *gltfExporter) exportMesh(name string, m *sg.Mesh) (uint32, bool) {
	mesh := &gltf.Mesh{Name: name}
	for _, p := range m.Primitives {
		if p.Geometry == nil {
			continue
		}
		primitive, ok := e.exportPrimitive(p.Geometry)
		if !ok {
			continue
		}
		primitive.Material = gltf.Index(e.exportMaterial(p.Material))
		mesh.Primitives = append(mesh.Primitives, primitive)
	}
	if len(mesh.Primitives) == 0 {
		return 0, false
	}
	e.doc.Meshes = append(e.doc.Meshes, mesh)
	return uint32(len(e.doc.Meshes) - 1), true
}

func (e *gltfExporter) exportPrimitive(g *mb.MeshBuilder) (*gltf.Primitive, bool) {
	triangles := g.Triangles()
	if len(triangles) == 0 {
		return nil, false
	}

	positions := make([][3]float32, g.Vertices())
	normals := make([][3]float32, g.Vertices())
	for i := range positions {
		v := g.Vertex(i)
		positions[i] = v.Position()
		n := v.Normal()
		if n.LenSqr() > 0.25 {
			n = n.Normalize()
		}
		normals[i] = n
	}

	indices := make([]uint32, 0, len(triangles)*3)
	for _, tri := range triangles {
		indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(e.doc, positions),
		"NORMAL":   modeler.WriteNormal(e.doc, normals),
	}
	if uvMap := g.TexCoordMap(); uvMap != nil {
		uvs := make([][2]float32, g.Vertices())
		for i := range uvs {
			if uv, ok := uvMap.Value(i); ok {
				uvs[i] = [2]float32{uv[0], uv[1]}
			}
		}
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(e.doc, uvs)
	}

	return &gltf.Primitive{
		Indices:    gltf.Index(modeler.WriteIndices(e.doc, indices)),
		Attributes: attributes,
	}, true
}

func (e *gltfExporter) exportMaterial(m *sg.Material) uint32 {
	if m == nil {
		if e.defaultMaterial == nil {
			e.doc.Materials = append(e.doc.Materials, &gltf.Material{
				Name:        "default",
				DoubleSided: true,
			})
			e.defaultMaterial = gltf.Index(uint32(len(e.doc.Materials) - 1))
		}
		return *e.defaultMaterial
	}
	if id, ok := e.materials[m]; ok {
		return id
	}

	color := new([4]float32)
	*color = utils.NewColorFloatA(m.Diffuse[:])
	material := &gltf.Material{
		Name:        m.Name,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: color,
		},
	}
	if m.Diffuse[3] < 1 {
		material.AlphaMode = gltf.AlphaBlend
	}
	if len(m.Textures) != 0 {
		material.Extras = map[string]interface{}{"textures": m.Textures}
	}

	e.doc.Materials = append(e.doc.Materials, material)
	id := uint32(len(e.doc.Materials) - 1)
	e.materials[m] = id
	return id
}

// nodeNamer gives unique names to exported nodes. Unnamed and duplicate
// nodes get generated names.
type nodeNamer struct {
	names map[*sg.Node]string
	used  map[string]bool
	rng   *utils.RandomNameGenerator
}

func newNodeNamer(s *sg.Scene) *nodeNamer {
	nn := &nodeNamer{
		names: make(map[*sg.Node]string),
		used:  make(map[string]bool),
		rng:   utils.NewRandomNameGenerator(int64(s.Count())),
	}
	for _, n := range s.Nodes() {
		if n.Name() != "" {
			nn.rng.Reserve(n.Name())
		}
	}
	return nn
}

func (nn *nodeNamer) Name(n *sg.Node) string {
	if name, ok := nn.names[n]; ok {
		return name
	}
	name := n.Name()
	if name == "" {
		name = nn.rng.RandomName()
	} else if nn.used[name] {
		name = fmt.Sprintf("%s_%s", name, nn.rng.RandomName())
	}
	nn.used[name] = true
	nn.names[n] = name
	return name
}
