package sg

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Scene is root node of a loaded scene with environment settings.
type Scene struct {
	*Node
	Ambient      mgl32.Vec3
	AnimationEnd float32
	Camera       *Node
}

func NewScene(name string) *Scene {
	return &Scene{
		Node:    NewNode(name),
		Ambient: mgl32.Vec3{32.0 / 255, 32.0 / 255, 32.0 / 255},
	}
}

// SetState evaluates every node of the hierarchy at time.
func (s *Scene) SetState(time float32) {
	for n := s.Node; n != nil; n = n.NextInHierarchy(0) {
		n.SetState(time)
	}
}

// Nodes returns all descendants of scene root in pre-order.
func (s *Scene) Nodes() []*Node {
	it := s.Node.Iterate(0)
	it.Next()
	return it.Collect()
}

// Cameras returns camera nodes in pre-order.
func (s *Scene) Cameras() []*Node {
	var result []*Node
	for _, n := range s.Nodes() {
		if _, ok := n.Object.(*Camera); ok {
			result = append(result, n)
		}
	}
	return result
}
