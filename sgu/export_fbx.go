package sgu

import (
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/scene_browser/mb"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/utils"
	"github.com/mogaika/scene_browser/utils/fbxbuilder"
	"github.com/mogaika/scene_browser/vfs"
)

type fbxExporter struct {
	f     *fbxbuilder.FBXBuilder
	names *nodeNamer
}

// ExportFBX converts current state of scene to FBX document. Every node
// becomes a model; cameras and lights are exported as null models.
func ExportFBX(s *sg.Scene) *fbxbuilder.FBXBuilder {
	names := newNodeNamer(s)
	settings := fbxbuilder.Settings{
		Name:     s.Name(),
		Ambient:  s.Ambient,
		TimeSpan: s.AnimationEnd,
	}
	if s.Camera != nil {
		settings.DefaultCamera = names.Name(s.Camera)
	}
	e := &fbxExporter{
		f:     fbxbuilder.NewFBXBuilder(settings),
		names: names,
	}
	for _, child := range s.Children() {
		e.exportNode(child, 0)
	}
	return e.f
}

func WriteFBX(w io.Writer, s *sg.Scene) error {
	return ExportFBX(s).Write(w)
}

// WriteFBXZip writes zip archive with fbx document of scene and texture
// files of its materials. Textures are looked up in storage relative to
// dir; missing ones are skipped.
func WriteFBXZip(w io.Writer, s *sg.Scene, storage vfs.Directory, dir string) error {
	f := ExportFBX(s)
	for _, tex := range SceneTextures(s) {
		data, err := vfs.ReadFile(storage, path.Join(dir, tex))
		if err != nil {
			log.Printf("[sgu] Texture %q of scene %q skipped: %v", tex, s.Name(), err)
			continue
		}
		f.AddExportFile(path.Base(tex), data)
	}
	base := path.Base(s.Name())
	return f.WriteZip(w, strings.TrimSuffix(base, path.Ext(base))+".fbx")
}

// SceneTextures returns sorted unique texture file names of scene materials.
func SceneTextures(s *sg.Scene) []string {
	seen := make(map[string]bool)
	var result []string
	for _, n := range s.Nodes() {
		mesh, ok := n.Object.(*sg.Mesh)
		if !ok {
			continue
		}
		for _, p := range mesh.Primitives {
			if p.Material == nil {
				continue
			}
			for _, tex := range p.Material.Textures {
				if tex != "" && !seen[tex] {
					seen[tex] = true
					result = append(result, tex)
				}
			}
		}
	}
	sort.Strings(result)
	return result
}

func fbxModel(id int64, name string, element string, n *sg.Node) *fbx.Node {
	pos := n.Position()
	rot := utils.RadiansToDegreeV3(utils.QuatToEuler(n.Rotation()))
	scl := n.Scale()
	return bfbx73.Model(id, name+"\x00\x01Model", element).AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("InheritType", "enum", "", "", int32(1)),
			bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A",
				float64(pos[0]), float64(pos[1]), float64(pos[2])),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A",
				float64(rot[0]), float64(rot[1]), float64(rot[2])),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A",
				float64(scl[0]), float64(scl[1]), float64(scl[2])),
		),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
}

func (e *fbxExporter) exportNode(n *sg.Node, parentId int64) {
	name := e.names.Name(n)
	id := e.f.GenerateId()

	var primitives []sg.Primitive
	if mesh, ok := n.Object.(*sg.Mesh); ok && n.Renderable() {
		for _, p := range mesh.Primitives {
			if p.Geometry != nil && p.Geometry.Polygons() != 0 {
				primitives = append(primitives, p)
			}
		}
	}

	if len(primitives) == 1 {
		e.f.AddObjects(fbxModel(id, name, "Mesh", n))
		e.exportPrimitive(name, primitives[0], id)
	} else {
		nodeAttribute := bfbx73.NodeAttribute(e.f.GenerateId(), name+"\x00\x01NodeAttribute", "Null").AddNodes(
			bfbx73.TypeFlags("Null"),
		)
		e.f.AddObjects(fbxModel(id, name, "Null", n), nodeAttribute)
		e.f.AddConnections(bfbx73.C("OO", nodeAttribute.Properties[0].(int64), id))

		identity := sg.NewNode("")
		for i, p := range primitives {
			pname := fmt.Sprintf("%s_p%d", name, i)
			pid := e.f.GenerateId()
			e.f.AddObjects(fbxModel(pid, pname, "Mesh", identity))
			e.f.AddConnections(bfbx73.C("OO", pid, id))
			e.exportPrimitive(pname, p, pid)
		}
	}
	e.f.AddConnections(bfbx73.C("OO", id, parentId))

	for _, child := range n.Children() {
		e.exportNode(child, id)
	}
}

func (e *fbxExporter) exportPrimitive(name string, p sg.Primitive, modelId int64) {
	geometryId := e.f.GenerateId()
	e.f.AddObjects(fbxGeometry(geometryId, p.Geometry))
	e.f.AddConnections(bfbx73.C("OO", geometryId, modelId))

	materialId := e.f.GetCachedOr(p.Material, func() interface{} {
		return e.exportMaterial(p.Material)
	}).(int64)
	e.f.AddConnections(bfbx73.C("OO", materialId, modelId))
}

func (e *fbxExporter) exportMaterial(m *sg.Material) int64 {
	if m == nil {
		m = sg.NewMaterial("default")
	}
	id := e.f.GenerateId()
	r, g, b := utils.NewColorFloatA(m.Diffuse[:]).Float64()
	sr, sgreen, sb := utils.Vec3To64(m.Specular)

	e.f.AddObjects(bfbx73.Material(id, m.Name+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("phong"),
		bfbx73.MultiLayer(0),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("DiffuseColor", "Color", "", "A", r, g, b),
			bfbx73.P("SpecularColor", "Color", "", "A", sr, sgreen, sb),
			bfbx73.P("Shininess", "double", "Number", "", float64(m.SpecularExponent)),
			bfbx73.P("Emissive", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Ambient", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Diffuse", "Vector3D", "Vector", "", r, g, b),
			bfbx73.P("Opacity", "double", "Number", "", float64(m.Diffuse[3])),
		),
	))
	return id
}

func fbxGeometry(id int64, g *mb.MeshBuilder) *fbx.Node {
	vertices := make([]float64, 0, g.Vertices()*3)
	normals := make([]float64, 0, g.Vertices()*3)
	for i := 0; i < g.Vertices(); i++ {
		v := g.Vertex(i)
		pos := v.Position()
		vertices = append(vertices, utils.FloatArray32to64(pos[:])...)
		n := v.Normal()
		if n.LenSqr() > 0.25 {
			n = n.Normalize()
		}
		normals = append(normals, utils.FloatArray32to64(n[:])...)
	}

	indexes := make([]int32, 0)
	uvindexes := make([]int32, 0)
	for i := 0; i < g.Polygons(); i++ {
		p := g.Polygon(i)
		if p.Vertices() < 3 {
			continue
		}
		for j := 0; j < p.Vertices(); j++ {
			index := int32(p.Vertex(j).Index())
			uvindexes = append(uvindexes, index)
			// last index of polygon is stored negated
			if j == p.Vertices()-1 {
				index = -index - 1
			}
			indexes = append(indexes, index)
		}
	}

	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(id, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		geometryLayer,
		bfbx73.LayerElementNormal(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByVertice"),
			bfbx73.ReferenceInformationType("Direct"),
			bfbx73.Normals(normals),
		),
	)
	geometryLayer.AddNode(
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementNormal"),
			bfbx73.TypedIndex(0),
		),
	)

	if uvMap := g.TexCoordMap(); uvMap != nil {
		uv := make([]float64, 0, g.Vertices()*2)
		for i := 0; i < g.Vertices(); i++ {
			value, ok := uvMap.Value(i)
			if !ok {
				value = []float32{0, 0}
			}
			uv = append(uv, float64(value[0]), float64(-value[1]))
		}
		geometry.AddNode(
			bfbx73.LayerElementUV(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByPolygonVertex"),
				bfbx73.ReferenceInformationType("IndexToDirect"),
				bfbx73.UV(uv),
				bfbx73.UVIndex(uvindexes),
			),
		)
		geometryLayer.AddNode(
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementUV"),
				bfbx73.TypedIndex(0),
			),
		)
	}

	geometry.AddNode(
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("AllSame"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials([]int32{0}),
		),
	)
	geometryLayer.AddNode(
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementMaterial"),
			bfbx73.TypedIndex(0),
		),
	)
	return geometry
}
