package sg

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_browser/mb"
)

// Dummy is a helper object with bounding box.
type Dummy struct {
	BoxMin mgl32.Vec3
	BoxMax mgl32.Vec3
}

func (d *Dummy) Kind() string { return "dummy" }

func (d *Dummy) CloneObject() Object {
	c := *d
	return &c
}

type Bone struct {
	Node *Node
	// Rest is inverse of bone world transform at skin bind time.
	Rest mgl32.Mat4
}

// Material is surface description shared by mesh primitives.
type Material struct {
	Name             string
	Diffuse          mgl32.Vec4 // rgb + opacity
	Specular         mgl32.Vec3
	SpecularExponent float32
	Lighting         bool
	Textures         []string
}

func NewMaterial(name string) *Material {
	return &Material{Name: name, Diffuse: mgl32.Vec4{1, 1, 1, 1}, Lighting: true}
}

// Primitive is one geometry batch of a mesh.
type Primitive struct {
	Material *Material
	Geometry *mb.MeshBuilder
}

// Mesh carries geometry primitives. Ownership of mesh builders is
// transferred to the mesh when added.
type Mesh struct {
	// Model is path of model file the geometry was loaded from, relative
	// to the scene file.
	Model      string
	Primitives []Primitive
	Bones      []Bone
}

func (m *Mesh) Kind() string { return "mesh" }

func (m *Mesh) CloneObject() Object {
	c := *m
	c.Bones = append([]Bone(nil), m.Bones...)
	c.Primitives = make([]Primitive, len(m.Primitives))
	for i, p := range m.Primitives {
		c.Primitives[i] = Primitive{Material: p.Material}
		if p.Geometry != nil {
			c.Primitives[i].Geometry = p.Geometry.Clone()
		}
	}
	return &c
}

func (m *Mesh) AddBone(node *Node, rest mgl32.Mat4) {
	m.Bones = append(m.Bones, Bone{Node: node, Rest: rest})
}

func (m *Mesh) AddPrimitive(mat *Material, geometry *mb.MeshBuilder) {
	m.Primitives = append(m.Primitives, Primitive{Material: mat, Geometry: geometry})
}

// Bounds returns local space bounding box of all primitives.
func (m *Mesh) Bounds() (min, max mgl32.Vec3, ok bool) {
	for _, p := range m.Primitives {
		if p.Geometry == nil || p.Geometry.Vertices() == 0 {
			continue
		}
		pmin, pmax := p.Geometry.Bounds()
		if !ok {
			min, max, ok = pmin, pmax, true
			continue
		}
		for i := 0; i < 3; i++ {
			min[i] = float32(math.Min(float64(min[i]), float64(pmin[i])))
			max[i] = float32(math.Max(float64(max[i]), float64(pmax[i])))
		}
	}
	return min, max, ok
}

type Camera struct {
	// HorizontalFOV in radians.
	HorizontalFOV float32
	Front         float32
	Back          float32
}

func NewCamera() *Camera {
	return &Camera{HorizontalFOV: math.Pi / 2, Front: 0.1, Back: 10000}
}

func (c *Camera) Kind() string { return "camera" }

func (c *Camera) CloneObject() Object {
	cc := *c
	return &cc
}

// ProjectedSize returns size in pixels of object of size at depth z for
// viewport of width pixels.
func (c *Camera) ProjectedSize(z, size float32, width int) float32 {
	if z <= c.Front {
		z = c.Front
	}
	viewWidth := 2 * z * float32(math.Tan(float64(c.HorizontalFOV)/2))
	return size / viewWidth * float32(width)
}

type LightType int

const (
	LightPoint LightType = iota
	LightSpot
	LightDirect
	LightAmbient
)

var lightTypeNames = []string{"pointlight", "spotlight", "directlight", "ambientlight"}

func (t LightType) String() string {
	if t >= 0 && int(t) < len(lightTypeNames) {
		return lightTypeNames[t]
	}
	return "light"
}

type Light struct {
	Type      LightType
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
	// Attenuation is constant, linear, quadratic factors.
	Attenuation mgl32.Vec3
	// InnerCone and OuterCone are spot light cone angles in radians.
	InnerCone float32
	OuterCone float32
}

func NewLight(t LightType) *Light {
	return &Light{
		Type:        t,
		Color:       mgl32.Vec3{1, 1, 1},
		Intensity:   1,
		Range:       math.MaxFloat32,
		Attenuation: mgl32.Vec3{1, 0, 0},
		InnerCone:   math.Pi / 4,
		OuterCone:   math.Pi / 2,
	}
}

func (l *Light) Kind() string { return l.Type.String() }

func (l *Light) CloneObject() Object {
	c := *l
	return &c
}

type LODLevel struct {
	Node *Node
	// Min and Max are projected size range in pixels.
	Min float32
	Max float32
}

// LOD selects one of its levels by projected size.
type LOD struct {
	Levels []LODLevel
	Radius float32
	Level  int
}

func NewLOD() *LOD {
	return &LOD{Level: -1}
}

func (l *LOD) Kind() string { return "lod" }

// CloneObject copies level ranges; level nodes still reference the source tree.
func (l *LOD) CloneObject() Object {
	c := *l
	c.Levels = append([]LODLevel(nil), l.Levels...)
	return &c
}

// Add adds level node, disabling it until selected. Levels are kept
// sorted by descending Max.
func (l *LOD) Add(node *Node, min, max float32) {
	node.SetEnabled(false)
	l.Levels = append(l.Levels, LODLevel{Node: node, Min: min, Max: max})
	sort.SliceStable(l.Levels, func(i, j int) bool { return l.Levels[i].Max > l.Levels[j].Max })
}

// Select enables levels whose range contains sizePix and returns index of
// the first enabled one or -1.
func (l *LOD) Select(sizePix float32) int {
	l.Level = -1
	for i, lvl := range l.Levels {
		enabled := sizePix >= lvl.Min && sizePix < lvl.Max
		if enabled && l.Level == -1 {
			l.Level = i
		}
		lvl.Node.SetEnabled(enabled)
	}
	return l.Level
}
