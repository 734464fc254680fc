package sgu

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mogaika/scene_browser/anim"
	"github.com/mogaika/scene_browser/sg"
)

// SceneSummary is human readable description of loaded scene.
type SceneSummary struct {
	Name         string        `yaml:"name" json:"name"`
	Ambient      [3]float32    `yaml:"ambient,flow" json:"ambient"`
	AnimationEnd float32       `yaml:"animation_end" json:"animation_end"`
	Camera       string        `yaml:"camera,omitempty" json:"camera,omitempty"`
	Nodes        []NodeSummary `yaml:"nodes" json:"nodes"`
}

type NodeSummary struct {
	Name       string        `yaml:"name" json:"name"`
	Kind       string        `yaml:"kind" json:"kind"`
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Renderable bool          `yaml:"renderable" json:"renderable"`
	Position   [3]float32    `yaml:"position,flow" json:"position"`
	Rotation   [4]float32    `yaml:"rotation,flow" json:"rotation"`
	Scale      [3]float32    `yaml:"scale,flow" json:"scale"`
	Animated   []string      `yaml:"animated,omitempty,flow" json:"animated,omitempty"`
	Target     string        `yaml:"target,omitempty" json:"target,omitempty"`
	Model      string        `yaml:"model,omitempty" json:"model,omitempty"`
	Primitives []string      `yaml:"primitives,omitempty" json:"primitives,omitempty"`
	Vertices   int           `yaml:"vertices,omitempty" json:"vertices,omitempty"`
	Polygons   int           `yaml:"polygons,omitempty" json:"polygons,omitempty"`
	Bones      []string      `yaml:"bones,omitempty,flow" json:"bones,omitempty"`
	LODRadius  float32       `yaml:"lod_radius,omitempty" json:"lod_radius,omitempty"`
	Children   []NodeSummary `yaml:"children,omitempty" json:"children,omitempty"`
}

func Summarize(s *sg.Scene) *SceneSummary {
	summary := &SceneSummary{
		Name:         s.Name(),
		Ambient:      s.Ambient,
		AnimationEnd: s.AnimationEnd,
	}
	if s.Camera != nil {
		summary.Camera = s.Camera.Name()
	}
	for _, child := range s.Children() {
		summary.Nodes = append(summary.Nodes, summarizeNode(child))
	}
	return summary
}

func summarizeNode(n *sg.Node) NodeSummary {
	q := n.Rotation()
	ns := NodeSummary{
		Name:       n.Name(),
		Kind:       n.Kind(),
		Enabled:    n.Enabled(),
		Renderable: n.Renderable(),
		Position:   n.Position(),
		Rotation:   [4]float32{q.V[0], q.V[1], q.V[2], q.W},
		Scale:      n.Scale(),
	}
	if _, ok := n.PositionController().(*anim.Interpolator); ok {
		ns.Animated = append(ns.Animated, "pos")
	}
	if _, ok := n.RotationController().(*anim.Interpolator); ok {
		ns.Animated = append(ns.Animated, "rot")
	}
	if _, ok := n.ScaleController().(*anim.Interpolator); ok {
		ns.Animated = append(ns.Animated, "scl")
	}
	if n.Target != nil {
		ns.Target = n.Target.Name()
	}

	switch obj := n.Object.(type) {
	case *sg.Mesh:
		ns.Model = obj.Model
		for _, p := range obj.Primitives {
			material := ""
			if p.Material != nil {
				material = p.Material.Name
			}
			ns.Primitives = append(ns.Primitives, material)
			if p.Geometry != nil {
				ns.Vertices += p.Geometry.Vertices()
				ns.Polygons += p.Geometry.Polygons()
			}
		}
		for _, b := range obj.Bones {
			ns.Bones = append(ns.Bones, b.Node.Name())
		}
	case *sg.LOD:
		ns.LODRadius = obj.Radius
	}

	for _, child := range n.Children() {
		ns.Children = append(ns.Children, summarizeNode(child))
	}
	return ns
}

func WriteYAML(w io.Writer, s *sg.Scene) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Summarize(s)); err != nil {
		return err
	}
	return enc.Close()
}
