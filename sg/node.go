// Package sg implements a scene graph: hierarchical transform nodes with
// named lookup, pre-order traversal and animated state blending.
package sg

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/anim"
)

type Flags uint32

const (
	FlagEnabled Flags = 1 << iota
	FlagRenderable

	DefaultFlags = FlagEnabled | FlagRenderable
)

// Object is a kind specific payload of a node (mesh, camera, light...).
type Object interface {
	Kind() string
	CloneObject() Object
}

// Animatable objects can evaluate their state at given time and blend
// states of several sources.
type Animatable interface {
	SetState(time float32)
	BlendState(sources []Animatable, times []float32, weights []float32) error
}

type transformHint struct {
	pos, rot, scale int
}

// Node is a named transform in hierarchy. A node owns its children; the
// parent link is a non-owning back-reference.
type Node struct {
	name  string
	flags Flags

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	posCtrl   anim.Control
	rotCtrl   anim.Control
	scaleCtrl anim.Control
	hints     []transformHint

	parent   *Node
	index    int // position in parent children list
	children []*Node

	// Target is node this one is oriented to, set by look-at setups.
	Target *Node
	Object Object
}

func NewNode(name string) *Node {
	return &Node{
		name:     name,
		flags:    DefaultFlags,
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
	}
}

// NewObjectNode creates node carrying kind payload.
func NewObjectNode(name string, obj Object) *Node {
	n := NewNode(name)
	n.Object = obj
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) SetName(name string) { n.name = name }

// Kind returns payload kind or "node".
func (n *Node) Kind() string {
	if n.Object == nil {
		return "node"
	}
	return n.Object.Kind()
}

func (n *Node) Flags() Flags { return n.flags }

func (n *Node) Enabled() bool { return n.flags&FlagEnabled != 0 }

func (n *Node) Renderable() bool { return n.flags&FlagRenderable != 0 }

func (n *Node) setFlag(f Flags, v bool) {
	if v {
		n.flags |= f
	} else {
		n.flags &^= f
	}
}

func (n *Node) SetEnabled(v bool) { n.setFlag(FlagEnabled, v) }

func (n *Node) SetRenderable(v bool) { n.setFlag(FlagRenderable, v) }

func (n *Node) Position() mgl32.Vec3 { return n.position }

func (n *Node) SetPosition(p mgl32.Vec3) { n.position = p }

func (n *Node) Rotation() mgl32.Quat { return n.rotation }

func (n *Node) SetRotation(q mgl32.Quat) { n.rotation = q.Normalize() }

func (n *Node) Scale() mgl32.Vec3 { return n.scale }

func (n *Node) SetScale(s mgl32.Vec3) { n.scale = s }

// Transform returns local to parent transform.
func (n *Node) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(n.position[0], n.position[1], n.position[2]).
		Mul4(n.rotation.Mat4()).
		Mul4(mgl32.Scale3D(n.scale[0], n.scale[1], n.scale[2]))
}

// SetTransform decomposes translation, rotation and scale of m.
// Shear is dropped.
func (n *Node) SetTransform(m mgl32.Mat4) {
	n.position = m.Col(3).Vec3()
	n.scale = mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	rot := m
	for i := 0; i < 3; i++ {
		if n.scale[i] > 1e-9 {
			rot.SetCol(i, m.Col(i).Mul(1/n.scale[i]))
		}
	}
	rot.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	n.rotation = mgl32.Mat4ToQuat(rot).Normalize()
}

// WorldTransform returns local to world transform.
func (n *Node) WorldTransform() mgl32.Mat4 {
	m := n.Transform()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform().Mul4(m)
	}
	return m
}

func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldTransform().Col(3).Vec3()
}

func (n *Node) PositionController() anim.Control { return n.posCtrl }

func (n *Node) RotationController() anim.Control { return n.rotCtrl }

func (n *Node) ScaleController() anim.Control { return n.scaleCtrl }

func (n *Node) SetPositionController(c anim.Control) {
	if c != nil && c.Channels() != 3 {
		panic(fmt.Sprintf("position controller must have 3 channels, got %d", c.Channels()))
	}
	n.posCtrl = c
}

// SetRotationController sets quaternion (x, y, z, w) controller.
func (n *Node) SetRotationController(c anim.Control) {
	if c != nil && c.Channels() != 4 {
		panic(fmt.Sprintf("rotation controller must have 4 channels, got %d", c.Channels()))
	}
	n.rotCtrl = c
}

func (n *Node) SetScaleController(c anim.Control) {
	if c != nil && c.Channels() != 3 {
		panic(fmt.Sprintf("scale controller must have 3 channels, got %d", c.Channels()))
	}
	n.scaleCtrl = c
}

// EndTime returns largest end time of node controllers.
func (n *Node) EndTime() float32 {
	var end float32
	for _, c := range []anim.Control{n.posCtrl, n.rotCtrl, n.scaleCtrl} {
		if c != nil && c.EndTime() > end {
			end = c.EndTime()
		}
	}
	return end
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

func (n *Node) Child(i int) *Node { return n.children[i] }

func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// HasParent reports whether other is an ancestor of n.
func (n *Node) HasParent(other *Node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == other {
			return true
		}
	}
	return false
}

// LinkTo moves node to the end of parent children list. Children keep
// link order, so Children and NextInHierarchy visit them in the order
// they were linked, not the reverse order of a head-inserted list.
func (n *Node) LinkTo(parent *Node) error {
	if parent == nil {
		return errors.Errorf("Can't link %q to nil parent", n.name)
	}
	if parent == n || parent.HasParent(n) {
		return errors.Errorf("Linking %q to %q creates a cycle", n.name, parent.name)
	}
	n.Unlink()
	n.parent = parent
	n.index = len(parent.children)
	parent.children = append(parent.children, n)
	return nil
}

// AddChild links child to n.
func (n *Node) AddChild(child *Node) error {
	return child.LinkTo(n)
}

// Unlink detaches node (with its subtree) from its parent.
func (n *Node) Unlink() {
	p := n.parent
	if p == nil {
		return
	}
	p.children = append(p.children[:n.index], p.children[n.index+1:]...)
	for i := n.index; i < len(p.children); i++ {
		p.children[i].index = i
	}
	n.parent = nil
	n.index = 0
}

// Destroy unlinks node and recursively all its descendants.
func (n *Node) Destroy() {
	n.Unlink()
	for len(n.children) != 0 {
		n.children[len(n.children)-1].Destroy()
	}
}

func (n *Node) nextSibling() *Node {
	if n.parent != nil && n.index+1 < len(n.parent.children) {
		return n.parent.children[n.index+1]
	}
	return nil
}

// NextInHierarchy returns next node in pre-order over the whole tree.
// Children of nodes not having all childFlags set are skipped.
func (n *Node) NextInHierarchy(childFlags Flags) *Node {
	return n.next(childFlags, nil)
}

func (n *Node) next(childFlags Flags, stop *Node) *Node {
	if len(n.children) != 0 && n.flags&childFlags == childFlags {
		return n.children[0]
	}
	for c := n; c != nil && c != stop; c = c.parent {
		if s := c.nextSibling(); s != nil {
			return s
		}
	}
	return nil
}

// Walk calls fn for n and its descendants in pre-order. Returning false
// from fn skips children of the visited node.
func (n *Node) Walk(fn func(node *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// FindByName returns first node of subtree (n included) with name or nil.
func (n *Node) FindByName(name string) *Node {
	for it := n.Iterate(0); it.Next(); {
		if it.Node().name == name {
			return it.Node()
		}
	}
	return nil
}

// Count returns number of nodes in subtree including n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Depth returns number of ancestors.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Clone returns deep copy of subtree. Controllers and Target are shared
// with the source.
func (n *Node) Clone() *Node {
	c := &Node{
		name:      n.name,
		flags:     n.flags,
		position:  n.position,
		rotation:  n.rotation,
		scale:     n.scale,
		posCtrl:   n.posCtrl,
		rotCtrl:   n.rotCtrl,
		scaleCtrl: n.scaleCtrl,
		Target:    n.Target,
	}
	if n.Object != nil {
		c.Object = n.Object.CloneObject()
	}
	for _, child := range n.children {
		cc := child.Clone()
		cc.parent = c
		cc.index = len(c.children)
		c.children = append(c.children, cc)
	}
	return c
}

// SetState evaluates node controllers at time.
func (n *Node) SetState(time float32) {
	if err := n.BlendState([]Animatable{n}, []float32{time}, []float32{1}); err != nil {
		panic(err)
	}
}

// BlendState sets node transform to weighted blend of source node states.
// Position and scale are weighted sums, rotations are accumulated with
// weighted slerp. Weights are expected to sum to 1.
func (n *Node) BlendState(sources []Animatable, times []float32, weights []float32) error {
	if len(sources) != len(times) || len(sources) != len(weights) {
		return errors.Errorf("Blend of %q: %d sources, %d times, %d weights",
			n.name, len(sources), len(times), len(weights))
	}
	nodes := make([]*Node, len(sources))
	for i, s := range sources {
		node, ok := s.(*Node)
		if !ok || node == nil {
			return errors.Errorf("Blend of %q: source %d is %T, not a node", n.name, i, s)
		}
		nodes[i] = node
	}
	if len(n.hints) != len(nodes) {
		n.hints = make([]transformHint, len(nodes))
	}

	var v3 [3]float32
	var v4 [4]float32

	var pos, scale mgl32.Vec3
	for i, src := range nodes {
		w := weights[i]
		if src.posCtrl != nil {
			n.hints[i].pos = src.posCtrl.Value(times[i], v3[:], n.hints[i].pos)
			pos = pos.Add(mgl32.Vec3(v3).Mul(w))
		} else {
			pos = pos.Add(src.position.Mul(w))
		}
		if src.scaleCtrl != nil {
			n.hints[i].scale = src.scaleCtrl.Value(times[i], v3[:], n.hints[i].scale)
			scale = scale.Add(mgl32.Vec3(v3).Mul(w))
		} else {
			scale = scale.Add(src.scale.Mul(w))
		}
	}

	rot := mgl32.QuatIdent()
	var rotWeight float32
	for i, src := range nodes {
		var q mgl32.Quat
		if src.rotCtrl != nil {
			n.hints[i].rot = src.rotCtrl.Value(times[i], v4[:], n.hints[i].rot)
			q = mgl32.Quat{W: v4[3], V: mgl32.Vec3{v4[0], v4[1], v4[2]}}
		} else {
			q = src.rotation
		}
		w := weights[i]
		if rotWeight < minWeight {
			rot = q
			rotWeight = w
			continue
		}
		if rot.Dot(q) < 0 {
			q = q.Scale(-1)
		}
		rotWeight += w
		rot = mgl32.QuatSlerp(rot, q, w/rotWeight)
	}

	n.position = pos
	n.scale = scale
	n.rotation = rot.Normalize()
	return nil
}

const minWeight = 1e-9

// LookAt orients node so its Z axis points to world space target.
func (n *Node) LookAt(target mgl32.Vec3, up mgl32.Vec3) {
	parentToWorld := mgl32.Ident4()
	if n.parent != nil {
		parentToWorld = n.parent.WorldTransform()
	}
	sourceToWorld := parentToWorld.Mul4(n.Transform())

	z := target.Sub(sourceToWorld.Col(3).Vec3())
	if z.LenSqr() <= minWeight {
		return
	}
	z = z.Normalize()
	x := up.Cross(z)
	if x.LenSqr() > minWeight {
		x = x.Normalize()
	} else {
		x = mgl32.Vec3{1, 0, 0}
	}
	y := z.Cross(x)

	worldRot := mgl32.Mat3FromCols(x, y, z)
	parentRot := mgl32.Mat4ToQuat(orthonormalRotation(parentToWorld)).Mat4().Mat3()
	n.rotation = mgl32.Mat4ToQuat(parentRot.Inv().Mul3(worldRot).Mat4()).Normalize()
}

func orthonormalRotation(m mgl32.Mat4) mgl32.Mat4 {
	r := mgl32.Ident4()
	for i := 0; i < 3; i++ {
		c := m.Col(i).Vec3()
		if c.LenSqr() > minWeight {
			c = c.Normalize()
		}
		r.SetCol(i, c.Vec4(0))
	}
	return r
}

func (n *Node) String() string {
	return fmt.Sprintf("%s<%s>", n.Kind(), n.name)
}
