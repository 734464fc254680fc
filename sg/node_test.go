package sg

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_browser/anim"
)

func names(nodes []*Node) []string {
	result := make([]string, len(nodes))
	for i, n := range nodes {
		result[i] = n.Name()
	}
	return result
}

//	root
//	├─ a
//	│  ├─ a1
//	│  └─ a2
//	│     └─ a21
//	└─ b
//	   └─ b1
func buildTree(t *testing.T) map[string]*Node {
	nodes := make(map[string]*Node)
	for _, name := range []string{"root", "a", "a1", "a2", "a21", "b", "b1"} {
		nodes[name] = NewNode(name)
	}
	for _, link := range [][2]string{
		{"a", "root"}, {"a1", "a"}, {"a2", "a"}, {"a21", "a2"}, {"b", "root"}, {"b1", "b"},
	} {
		require.NoError(t, nodes[link[0]].LinkTo(nodes[link[1]]))
	}
	return nodes
}

func TestNextInHierarchy(t *testing.T) {
	nodes := buildTree(t)
	var visited []*Node
	for n := nodes["root"]; n != nil; n = n.NextInHierarchy(0) {
		visited = append(visited, n)
	}
	expected := []string{"root", "a", "a1", "a2", "a21", "b", "b1"}
	if diff := cmp.Diff(expected, names(visited)); diff != "" {
		t.Errorf("pre-order mismatch (-want +got):\n%s", diff)
	}

	nodes["a"].SetEnabled(false)
	visited = visited[:0]
	for n := nodes["root"]; n != nil; n = n.NextInHierarchy(FlagEnabled) {
		visited = append(visited, n)
	}
	assert.Equal(t, []string{"root", "a", "b", "b1"}, names(visited))
}

func TestIteratorSubtree(t *testing.T) {
	nodes := buildTree(t)
	it := nodes["a"].Iterate(0)
	assert.Equal(t, []string{"a", "a1", "a2", "a21"}, names(it.Collect()))
	assert.False(t, it.Next())

	it.Reset()
	assert.Equal(t, []string{"a", "a1", "a2", "a21"}, names(it.Collect()))

	assert.Equal(t, []string{"a21"}, names(nodes["a21"].Iterate(0).Collect()))
	assert.Equal(t, 7, nodes["root"].Count())
	assert.Equal(t, 3, nodes["a21"].Depth())
}

func TestLinkCycles(t *testing.T) {
	nodes := buildTree(t)
	assert.Error(t, nodes["a"].LinkTo(nodes["a"]))
	assert.Error(t, nodes["a"].LinkTo(nodes["a21"]))
	assert.Error(t, nodes["root"].LinkTo(nodes["b1"]))
	assert.Same(t, nodes["root"], nodes["a"].Parent())

	// relink keeps sibling order consistent
	require.NoError(t, nodes["a1"].LinkTo(nodes["b"]))
	assert.Equal(t, []string{"a2"}, names(nodes["a"].Children()))
	assert.Equal(t, []string{"b1", "a1"}, names(nodes["b"].Children()))
	assert.Same(t, nodes["root"], nodes["a1"].Root())

	var visited []*Node
	for n := nodes["root"]; n != nil; n = n.NextInHierarchy(0) {
		visited = append(visited, n)
	}
	assert.Equal(t, []string{"root", "a", "a2", "a21", "b", "b1", "a1"}, names(visited))
}

func TestFindByNameAndDestroy(t *testing.T) {
	nodes := buildTree(t)
	assert.Same(t, nodes["a21"], nodes["root"].FindByName("a21"))
	assert.Nil(t, nodes["b"].FindByName("a21"))

	nodes["a"].Destroy()
	assert.Nil(t, nodes["a"].Parent())
	assert.Nil(t, nodes["a2"].Parent())
	assert.Empty(t, nodes["a"].Children())
	assert.Equal(t, []string{"b"}, names(nodes["root"].Children()))
	assert.Nil(t, nodes["root"].FindByName("a21"))
}

func TestClone(t *testing.T) {
	nodes := buildTree(t)
	nodes["a"].SetPosition(mgl32.Vec3{1, 2, 3})
	nodes["a"].Object = &Dummy{BoxMax: mgl32.Vec3{1, 1, 1}}

	c := nodes["a"].Clone()
	assert.Nil(t, c.Parent())
	assert.Equal(t, []string{"a", "a1", "a2", "a21"}, names(c.Iterate(0).Collect()))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.Position())
	assert.NotSame(t, nodes["a"].Object, c.Object)
	assert.Same(t, c, c.FindByName("a21").Root())
}

// assertNear compares with absolute tolerance. mgl32 ApproxEqual is
// relative and fails on components expected to be zero.
func assertNear(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.InDelta(t, 0, got.Sub(want).Len(), 1e-4, "want %v got %v", want, got)
}

func assertQuatNear(t *testing.T, want, got mgl32.Quat) {
	t.Helper()
	assert.InDelta(t, 0, got.Sub(want).Len(), 1e-4, "want %v got %v", want, got)
}

func TestWorldTransform(t *testing.T) {
	parent := NewNode("parent")
	parent.SetPosition(mgl32.Vec3{10, 0, 0})
	parent.SetRotation(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}))
	child := NewNode("child")
	child.SetPosition(mgl32.Vec3{1, 0, 0})
	require.NoError(t, child.LinkTo(parent))

	p := child.WorldPosition()
	assertNear(t, mgl32.Vec3{10, 1, 0}, p)

	n := NewNode("decompose")
	n.SetTransform(child.WorldTransform())
	assertNear(t, mgl32.Vec3{10, 1, 0}, n.Position())
	assertNear(t, mgl32.Vec3{1, 1, 1}, n.Scale())
}

func TestSetStateAndBlend(t *testing.T) {
	a := NewNode("a")
	pos := anim.NewVectorInterpolator(3)
	pos.EndBehaviour = anim.BehaviourConstant
	pos.AddKey(0, 0, 0, 0)
	pos.AddKey(1, 10, 0, 0)
	a.SetPositionController(pos)

	rot := anim.NewQuaternionInterpolator()
	rot.EndBehaviour = anim.BehaviourConstant
	q0 := mgl32.QuatIdent()
	q1 := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0})
	rot.AddKey(0, q0.V[0], q0.V[1], q0.V[2], q0.W)
	rot.AddKey(1, q1.V[0], q1.V[1], q1.V[2], q1.W)
	a.SetRotationController(rot)

	a.SetState(0.5)
	assertNear(t, mgl32.Vec3{5, 0, 0}, a.Position())
	expected := mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 1, 0})
	assertQuatNear(t, expected, a.Rotation())

	b := NewNode("b")
	b.SetPosition(mgl32.Vec3{0, 4, 0})
	b.SetScale(mgl32.Vec3{3, 3, 3})

	target := NewNode("target")
	require.NoError(t, target.BlendState([]Animatable{a, b}, []float32{1, 0}, []float32{0.5, 0.5}))
	assertNear(t, mgl32.Vec3{5, 2, 0}, target.Position())
	assertNear(t, mgl32.Vec3{2, 2, 2}, target.Scale())
	assertQuatNear(t, expected, target.Rotation())

	assert.Error(t, target.BlendState([]Animatable{a}, []float32{0, 1}, []float32{1}))
	assert.Error(t, target.BlendState([]Animatable{NewScene("s")}, []float32{0}, []float32{1}))
	assert.Panics(t, func() { a.SetScaleController(rot) })
}

func TestLookAt(t *testing.T) {
	root := NewNode("root")
	cam := NewObjectNode("camera", NewCamera())
	target := NewNode("target")
	target.SetPosition(mgl32.Vec3{0, 0, 10})
	require.NoError(t, cam.LinkTo(root))
	require.NoError(t, target.LinkTo(root))
	cam.SetPosition(mgl32.Vec3{10, 0, 10})
	cam.SetRotationController(NewLookAtControl(cam, target))

	cam.SetState(0)
	z := cam.WorldTransform().Col(2).Vec3()
	assertNear(t, mgl32.Vec3{-1, 0, 0}, z)
}

func TestLOD(t *testing.T) {
	lod := NewLOD()
	hi := NewNode("hi")
	lo := NewNode("lo")
	lod.Add(lo, 0, 100)
	lod.Add(hi, 100, 1e9)
	assert.False(t, hi.Enabled())
	assert.Same(t, hi, lod.Levels[0].Node)

	assert.Equal(t, 1, lod.Select(50))
	assert.True(t, lo.Enabled())
	assert.False(t, hi.Enabled())
	assert.Equal(t, 0, lod.Select(500))
	assert.True(t, hi.Enabled())
	assert.False(t, lo.Enabled())
}

func TestScene(t *testing.T) {
	s := NewScene("scene")
	cam := NewObjectNode("cam", NewCamera())
	light := NewObjectNode("light", NewLight(LightSpot))
	require.NoError(t, cam.LinkTo(s.Node))
	require.NoError(t, light.LinkTo(s.Node))

	assert.Equal(t, []string{"cam", "light"}, names(s.Nodes()))
	assert.Equal(t, []string{"cam"}, names(s.Cameras()))
	assert.Equal(t, "spotlight", light.Kind())
	assert.Equal(t, "node", s.Kind())
	s.SetState(0)
}
