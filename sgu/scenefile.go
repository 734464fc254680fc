// Package sgu loads and saves scene files (chunk "sg") and the geometry
// files (chunk "gm") they reference, and exports loaded scenes to
// interchange formats.
package sgu

import (
	"bytes"
	"io"
	"log"
	"math"
	"path"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/anim"
	"github.com/mogaika/scene_browser/chunk"
	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/mb"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

const (
	SceneChunk       = "sg"
	SceneVersion     = 0x122
	sceneVersionMask = 0xFF0
)

// ModelLoader returns geometry file by path relative to storage root.
type ModelLoader interface {
	LoadModel(p string) (*ModelFile, error)
}

type bone struct {
	index int
	rest  mgl32.Mat4
}

// item is a node read from the file with references not resolved yet.
// Items are referenced by their order in the file.
type item struct {
	node   *sg.Node
	parent int
	target int
	model  string
	bones  []bone
	lodID  int
	lodMin float32
	lodMax float32
}

type sceneLoader struct {
	name   string
	dir    string
	flags  config.LoadFlags
	models ModelLoader

	r     *chunk.Reader
	ver   int
	scene *sg.Scene
	items []*item
}

// LoadScene loads scene file name from storage. Models are required only
// when flags have config.LoadGeometry set.
func LoadScene(storage vfs.Directory, name string, models ModelLoader, flags config.LoadFlags) (*sg.Scene, error) {
	data, err := vfs.ReadFile(storage, name)
	if err != nil {
		return nil, err
	}
	return ReadScene(bytes.NewReader(data), name, models, flags)
}

// ReadScene parses scene file. Model paths are resolved relative to
// directory of name. On any error no scene is returned.
func ReadScene(src io.Reader, name string, models ModelLoader, flags config.LoadFlags) (*sg.Scene, error) {
	if flags.Has(config.LoadGeometry) && models == nil {
		return nil, errors.Errorf("Scene %q: geometry loading requested without model loader", name)
	}
	scene, err := newSceneLoader(src, name, models, flags).load()
	if err != nil {
		log.Printf("[sgu] Failed to load scene %s: %v", name, err)
		return nil, errors.Wrapf(err, "Failed to load scene %q", name)
	}
	return scene, nil
}

func newSceneLoader(src io.Reader, name string, models ModelLoader, flags config.LoadFlags) *sceneLoader {
	l := &sceneLoader{
		name:   name,
		dir:    path.Dir(vfs.CleanPath(name)),
		flags:  flags,
		models: models,
		r:      chunk.NewReader(src),
	}
	l.r.SetStringDecoder(config.StringDecoder())
	return l
}

// TraceScene parses scene without models and returns tree of visited
// chunks. The tree is returned on parse errors too, up to the failed chunk.
func TraceScene(src io.Reader, name string) (*chunk.TraceNode, error) {
	l := newSceneLoader(src, name, nil, config.LoadAnimations)
	l.r.EnableTrace()
	_, err := l.load()
	return l.r.Trace(), err
}

func (l *sceneLoader) load() (*sg.Scene, error) {
	l.scene = sg.NewScene(l.name)

	root, end, err := l.r.Begin()
	if err != nil {
		return nil, err
	}
	if root != SceneChunk {
		return nil, chunk.FormatErrorf("corrupted scene file: root chunk %q", root)
	}
	if err := l.readScene(end); err != nil {
		return nil, err
	}
	if err := l.r.End(end); err != nil {
		return nil, err
	}

	if err := l.resolve(); err != nil {
		return nil, err
	}
	l.scene.SetState(0)
	return l.scene, nil
}

func (l *sceneLoader) readScene(end int64) error {
	ver, err := l.r.ReadInt()
	if err != nil {
		return err
	}
	if ver&sceneVersionMask != SceneVersion&sceneVersionMask {
		return chunk.FormatErrorf("invalid scene file version (expected 0x%x, got 0x%x)", SceneVersion, ver)
	}
	l.ver = ver

	for l.r.More(end) {
		name, subend, err := l.r.Begin()
		if err != nil {
			return err
		}
		switch name {
		case "environment":
			err = l.readEnvironment(subend)
		case "node":
			err = l.readItem(sg.NewNode(""), subend, nil)
		case "dummy":
			dummy := &sg.Dummy{}
			err = l.readItem(sg.NewObjectNode("", dummy), subend, l.dummyProperty(dummy))
		case "mesh":
			mesh := &sg.Mesh{}
			err = l.readItem(sg.NewObjectNode("", mesh), subend, l.meshProperty(mesh))
		case "camera":
			camera := sg.NewCamera()
			err = l.readItem(sg.NewObjectNode("", camera), subend, l.cameraProperty(camera))
		case "pointlight", "spotlight", "directlight", "ambientlight":
			light := sg.NewLight(lightTypes[name])
			err = l.readItem(sg.NewObjectNode("", light), subend, l.lightProperty(light))
		case "lod":
			err = l.readItem(sg.NewObjectNode("", sg.NewLOD()), subend, nil)
		default:
			return chunk.FormatErrorf("unknown top level chunk %q", name)
		}
		if err != nil {
			return errors.Wrapf(err, "%s #%d", name, len(l.items)-1)
		}
		if err := l.r.End(subend); err != nil {
			return err
		}
	}
	return nil
}

var lightTypes = map[string]sg.LightType{
	"pointlight":   sg.LightPoint,
	"spotlight":    sg.LightSpot,
	"directlight":  sg.LightDirect,
	"ambientlight": sg.LightAmbient,
}

func (l *sceneLoader) readEnvironment(end int64) error {
	for l.r.More(end) {
		name, subend, err := l.r.Begin()
		if err != nil {
			return err
		}
		if name == "ambient" {
			if l.scene.Ambient, err = readVec3(l.r); err != nil {
				return err
			}
		}
		if err := l.r.End(subend); err != nil {
			return err
		}
	}
	return nil
}

// propertyReader reads kind specific property chunk and reports whether
// the chunk was recognized.
type propertyReader func(it *item, name string, end int64) (bool, error)

func (l *sceneLoader) readItem(node *sg.Node, end int64, property propertyReader) error {
	it := &item{node: node, parent: -1, target: -1, lodID: -1}
	l.items = append(l.items, it)

	for l.r.More(end) {
		name, subend, err := l.r.Begin()
		if err != nil {
			return err
		}
		handled, err := l.readNodeProperty(it, name)
		if !handled && err == nil && property != nil {
			_, err = property(it, name, subend)
		}
		if err != nil {
			return errors.Wrapf(err, "node %q property %q", node.Name(), name)
		}
		if err := l.r.End(subend); err != nil {
			return err
		}
	}
	return nil
}

func (l *sceneLoader) readNodeProperty(it *item, name string) (bool, error) {
	var err error
	var v int
	node := it.node

	switch name {
	case "name":
		var s string
		if s, err = l.r.ReadString(); err == nil {
			node.SetName(s)
		}
	case "enabled":
		if v, err = l.r.ReadInt(); err == nil {
			node.SetEnabled(v != 0)
		}
	case "renderable":
		if v, err = l.r.ReadInt(); err == nil {
			node.SetRenderable(v != 0)
		}
	case "parent":
		it.parent, err = l.r.ReadInt()
	case "target":
		it.target, err = l.r.ReadInt()
	case "pos":
		var ip *anim.Interpolator
		if ip, err = l.readAnim(anim.NewVectorInterpolator(3)); err == nil {
			if ip.Keys() > 1 {
				node.SetPositionController(ip)
			} else {
				node.SetPosition(vec3(ip.KeyValue(0)))
			}
		}
	case "rotq":
		var ip *anim.Interpolator
		if ip, err = l.readAnim(anim.NewQuaternionInterpolator()); err == nil {
			if ip.Keys() > 1 {
				node.SetRotationController(ip)
			} else {
				node.SetRotation(ip.Quat(0))
			}
		}
	case "scl":
		var ip *anim.Interpolator
		if ip, err = l.readAnim(anim.NewVectorInterpolator(3)); err == nil {
			if ip.Keys() > 1 {
				node.SetScaleController(ip)
			} else {
				node.SetScale(vec3(ip.KeyValue(0)))
			}
		}
	default:
		return false, nil
	}
	return true, err
}

func (l *sceneLoader) readAnim(ip *anim.Interpolator) (*anim.Interpolator, error) {
	if err := ip.Read(l.r, !l.flags.Has(config.LoadAnimations)); err != nil {
		return nil, err
	}
	if end := ip.KeyTime(ip.Keys() - 1); end > l.scene.AnimationEnd {
		l.scene.AnimationEnd = end
	}
	return ip, nil
}

func (l *sceneLoader) meshProperty(mesh *sg.Mesh) propertyReader {
	return func(it *item, name string, end int64) (bool, error) {
		var err error
		switch name {
		case "model":
			it.model, err = l.r.ReadString()
		case "bones":
			var count int
			if count, err = l.r.ReadInt(); err != nil {
				return true, err
			}
			// index and 4x4 matrix
			if count < 0 || int64(count)*68 > end-l.r.Pos() {
				return true, chunk.FormatErrorf("invalid bone count %d", count)
			}
			for i := 0; i < count && err == nil; i++ {
				var b bone
				if b.index, err = l.r.ReadInt(); err == nil {
					b.rest, err = readMatrix(l.r)
					it.bones = append(it.bones, b)
				}
			}
		case "lod":
			if it.lodID, err = l.r.ReadInt(); err == nil {
				if it.lodMin, err = l.r.ReadFloat32(); err == nil {
					it.lodMax, err = l.r.ReadFloat32()
				}
			}
		case mb.GeometryChunk:
			if l.flags.Has(config.LoadGeometry) {
				var g *mb.MeshBuilder
				if g, err = mb.Read(l.r, end); err == nil {
					mesh.AddPrimitive(nil, g)
				}
			}
		default:
			return false, nil
		}
		return true, err
	}
}

func (l *sceneLoader) cameraProperty(camera *sg.Camera) propertyReader {
	return func(it *item, name string, end int64) (bool, error) {
		if name != "fov" {
			return false, nil
		}
		var err error
		camera.HorizontalFOV, err = l.r.ReadFloat32()
		return true, err
	}
}

func (l *sceneLoader) dummyProperty(dummy *sg.Dummy) propertyReader {
	return func(it *item, name string, end int64) (bool, error) {
		if name != "box" {
			return false, nil
		}
		var err error
		if dummy.BoxMin, err = readVec3(l.r); err == nil {
			dummy.BoxMax, err = readVec3(l.r)
		}
		return true, err
	}
}

func (l *sceneLoader) lightProperty(light *sg.Light) propertyReader {
	return func(it *item, name string, end int64) (bool, error) {
		var err error
		switch name {
		case "color":
			light.Color, err = readVec3(l.r)
		case "intensity":
			light.Intensity, err = l.r.ReadFloat32()
		case "range":
			light.Range, err = l.r.ReadFloat32()
		case "atten":
			light.Attenuation, err = readVec3(l.r)
		case "innercone":
			light.InnerCone, err = l.r.ReadFloat32()
		case "outercone":
			light.OuterCone, err = l.r.ReadFloat32()
		default:
			return false, nil
		}
		return true, err
	}
}

func (l *sceneLoader) itemIndex(owner *item, what string, index int) error {
	if index < 0 || index >= len(l.items) {
		return chunk.FormatErrorf("node %q has invalid %s index %d", owner.node.Name(), what, index)
	}
	return nil
}

// resolve connects items once all of them are read, so references may
// point forward.
func (l *sceneLoader) resolve() error {
	for _, it := range l.items {
		parent := l.scene.Node
		if it.parent != -1 {
			if err := l.itemIndex(it, "parent", it.parent); err != nil {
				return err
			}
			parent = l.items[it.parent].node
		}
		if err := it.node.LinkTo(parent); err != nil {
			return chunk.FormatErrorf("node %q: %v", it.node.Name(), err)
		}

		if it.target != -1 {
			if err := l.itemIndex(it, "target", it.target); err != nil {
				return err
			}
			target := l.items[it.target].node
			if target == it.node {
				return chunk.FormatErrorf("node %q targets itself", it.node.Name())
			}
			it.node.Target = target
			it.node.SetRotationController(sg.NewLookAtControl(it.node, target))
		}
	}

	for _, it := range l.items {
		mesh, ok := it.node.Object.(*sg.Mesh)
		if !ok {
			continue
		}
		if err := l.resolveMesh(it, mesh); err != nil {
			return err
		}
	}

	for _, it := range l.items {
		if it.lodID == -1 {
			continue
		}
		var lod *sg.LOD
		if it.parent != -1 {
			lod, _ = l.items[it.parent].node.Object.(*sg.LOD)
		}
		if lod == nil {
			return chunk.FormatErrorf("LOD level %q is not a child of LOD node", it.node.Name())
		}
		lod.Add(it.node, it.lodMin, it.lodMax)
	}

	for _, it := range l.items {
		if lod, ok := it.node.Object.(*sg.LOD); ok {
			lod.Radius = lodRadius(lod)
		}
	}

	for _, it := range l.items {
		if _, ok := it.node.Object.(*sg.Camera); ok {
			l.scene.Camera = it.node
			break
		}
	}
	return nil
}

func (l *sceneLoader) resolveMesh(it *item, mesh *sg.Mesh) error {
	for _, b := range it.bones {
		if err := l.itemIndex(it, "bone", b.index); err != nil {
			return err
		}
	}
	sort.SliceStable(it.bones, func(i, j int) bool {
		return l.items[it.bones[i].index].node.Name() < l.items[it.bones[j].index].node.Name()
	})
	for _, b := range it.bones {
		bone := l.items[b.index].node
		mesh.AddBone(bone, b.rest)
		bone.SetRenderable(false)
	}

	mesh.Model = it.model
	if it.model == "" || !l.flags.Has(config.LoadGeometry) {
		return nil
	}
	mf, err := l.models.LoadModel(path.Join(l.dir, it.model))
	if err != nil {
		return errors.Wrapf(err, "mesh %q", it.node.Name())
	}
	// cached model files are shared between scenes
	for _, m := range mf.Models {
		mesh.AddPrimitive(m.Material, m.Geometry.Clone())
	}
	return nil
}

// lodRadius returns largest dimension of world space box containing
// geometry of all LOD levels.
func lodRadius(lod *sg.LOD) float32 {
	min := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := min.Mul(-1)
	found := false
	for _, lvl := range lod.Levels {
		mesh, ok := lvl.Node.Object.(*sg.Mesh)
		if !ok {
			continue
		}
		tm := lvl.Node.WorldTransform()
		for _, p := range mesh.Primitives {
			for i := 0; i < p.Geometry.Vertices(); i++ {
				v := mgl32.TransformCoordinate(p.Geometry.Vertex(i).Position(), tm)
				for k := 0; k < 3; k++ {
					min[k] = float32(math.Min(float64(min[k]), float64(v[k])))
					max[k] = float32(math.Max(float64(max[k]), float64(v[k])))
				}
				found = true
			}
		}
	}
	if !found {
		return 0
	}
	dim := max.Sub(min)
	return float32(math.Max(float64(dim[0]), math.Max(float64(dim[1]), float64(dim[2]))))
}
