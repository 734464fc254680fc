package sgu

import (
	"bytes"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/anim"
	"github.com/mogaika/scene_browser/chunk"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

type sceneWriter struct {
	w     *chunk.Writer
	scene *sg.Scene
	index map[*sg.Node]int
}

// WriteScene writes scene in format read by ReadScene. Nodes are stored in
// pre-order. Controllers other than key frame interpolators and look-at
// controls are stored as their current value.
func WriteScene(dst io.Writer, s *sg.Scene) error {
	sw := &sceneWriter{
		w:     chunk.NewWriter(dst),
		scene: s,
		index: make(map[*sg.Node]int),
	}
	nodes := s.Nodes()
	for i, n := range nodes {
		sw.index[n] = i
	}

	root := sw.w.Begin(SceneChunk)
	sw.w.WriteInt(SceneVersion)

	env := sw.w.Begin("environment")
	sw.w.WriteFloat32Chunk("ambient", s.Ambient[0], s.Ambient[1], s.Ambient[2])
	if err := env.End(); err != nil {
		return err
	}

	for _, n := range nodes {
		if err := sw.writeNode(n); err != nil {
			return errors.Wrapf(err, "Failed to write %v", n)
		}
	}

	if err := root.End(); err != nil {
		return err
	}
	return sw.w.Close()
}

// SaveScene replaces content of f with scene.
func SaveScene(f vfs.File, s *sg.Scene) error {
	var buf bytes.Buffer
	if err := WriteScene(&buf, s); err != nil {
		return err
	}
	return vfs.OpenFileAndCopy(f, &buf)
}

func (sw *sceneWriter) nodeIndex(n *sg.Node) (int, error) {
	if n == sw.scene.Node {
		return -1, nil
	}
	i, ok := sw.index[n]
	if !ok {
		return 0, errors.Errorf("Referenced node %v is not part of scene", n)
	}
	return i, nil
}

func (sw *sceneWriter) writeNode(n *sg.Node) error {
	w := sw.w
	s := w.Begin(n.Kind())

	w.WriteStringChunk("name", n.Name())
	w.WriteInt32Chunk("enabled", boolInt(n.Enabled()))
	w.WriteInt32Chunk("renderable", boolInt(n.Renderable()))

	parent, err := sw.nodeIndex(n.Parent())
	if err != nil {
		return err
	}
	w.WriteInt32Chunk("parent", int32(parent))

	if err := sw.writeTransform(n); err != nil {
		return err
	}

	switch obj := n.Object.(type) {
	case nil:
	case *sg.Dummy:
		w.WriteFloat32Chunk("box", obj.BoxMin[0], obj.BoxMin[1], obj.BoxMin[2],
			obj.BoxMax[0], obj.BoxMax[1], obj.BoxMax[2])
	case *sg.Camera:
		w.WriteFloat32Chunk("fov", obj.HorizontalFOV)
	case *sg.Light:
		sw.writeLight(obj)
	case *sg.LOD:
	case *sg.Mesh:
		if err := sw.writeMesh(n, obj); err != nil {
			return err
		}
	default:
		return errors.Errorf("Unsupported node object %T", obj)
	}
	return s.End()
}

func (sw *sceneWriter) writeTransform(n *sg.Node) error {
	w := sw.w
	if ip, ok := n.PositionController().(*anim.Interpolator); ok {
		ip.WriteChunk(w, "pos")
	} else {
		p := n.Position()
		constantAnim(p[:]).WriteChunk(w, "pos")
	}

	switch ctrl := n.RotationController().(type) {
	case *sg.LookAtControl:
		target, err := sw.nodeIndex(ctrl.Target())
		if err != nil {
			return err
		}
		w.WriteInt32Chunk("target", int32(target))
	case *anim.Interpolator:
		ctrl.WriteChunk(w, "rotq")
	default:
		q := n.Rotation()
		constantAnim([]float32{q.V[0], q.V[1], q.V[2], q.W}).WriteChunk(w, "rotq")
	}

	if ip, ok := n.ScaleController().(*anim.Interpolator); ok {
		ip.WriteChunk(w, "scl")
	} else if scl := n.Scale(); !scl.ApproxEqual(mgl32.Vec3{1, 1, 1}) {
		constantAnim(scl[:]).WriteChunk(w, "scl")
	}
	return w.Err()
}

func constantAnim(value []float32) *anim.Interpolator {
	var ip *anim.Interpolator
	if len(value) == 4 {
		ip = anim.NewQuaternionInterpolator()
	} else {
		ip = anim.NewVectorInterpolator(len(value))
	}
	ip.AddKey(0, value...)
	return ip
}

func (sw *sceneWriter) writeLight(l *sg.Light) {
	w := sw.w
	w.WriteFloat32Chunk("color", l.Color[0], l.Color[1], l.Color[2])
	w.WriteFloat32Chunk("intensity", l.Intensity)
	if l.Type == sg.LightPoint || l.Type == sg.LightSpot {
		w.WriteFloat32Chunk("range", l.Range)
		w.WriteFloat32Chunk("atten", l.Attenuation[0], l.Attenuation[1], l.Attenuation[2])
	}
	if l.Type == sg.LightSpot {
		w.WriteFloat32Chunk("innercone", l.InnerCone)
		w.WriteFloat32Chunk("outercone", l.OuterCone)
	}
}

func (sw *sceneWriter) writeMesh(n *sg.Node, mesh *sg.Mesh) error {
	w := sw.w
	if mesh.Model != "" {
		w.WriteStringChunk("model", mesh.Model)
	} else {
		for _, p := range mesh.Primitives {
			if err := p.Geometry.Write(w); err != nil {
				return err
			}
		}
	}

	if len(mesh.Bones) != 0 {
		s := w.Begin("bones")
		w.WriteInt(len(mesh.Bones))
		for _, b := range mesh.Bones {
			i, err := sw.nodeIndex(b.Node)
			if err != nil || i < 0 {
				return errors.Errorf("Bone %v of mesh is not part of scene", b.Node)
			}
			w.WriteInt(i)
			writeMatrix(w, b.Rest)
		}
		if err := s.End(); err != nil {
			return err
		}
	}

	if parent := n.Parent(); parent != nil {
		if lod, ok := parent.Object.(*sg.LOD); ok {
			for i, lvl := range lod.Levels {
				if lvl.Node == n {
					s := w.Begin("lod")
					w.WriteInt(i)
					w.WriteFloat32s(lvl.Min, lvl.Max)
					if err := s.End(); err != nil {
						return err
					}
				}
			}
		}
	}
	return w.Err()
}
