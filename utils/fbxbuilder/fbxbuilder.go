package fbxbuilder

import (
	"io"
	"os"
	"path"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zip"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const (
	fbxVersion = 7400

	creator     = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
	appVendor   = "mogaika"
	appName     = "scene_browser"
	appVersion  = "1.0"
	epochGMT    = "01/01/1970 00:00:00.000"
	epochLocal  = "1970-01-01 10:00:00:000"
	firstId     = 1000000
	producerCam = "Producer Perspective"
)

// KTimePerSecond is FBX time units in one second.
const KTimePerSecond = 46186158000

var fileId = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Settings are document wide values taken from exported scene.
type Settings struct {
	Name          string
	Ambient       mgl32.Vec3
	DefaultCamera string // empty selects producer perspective
	TimeSpan      float32
}

func KTime(seconds float32) int64 {
	return int64(float64(seconds) * KTimePerSecond)
}

// FBXBuilder collects objects and connections of FBX 7.4 document.
// Exported source objects are cached by their pointer to share
// materials and geometries between models.
type FBXBuilder struct {
	doc      *fbx.FBX
	settings Settings
	cache    map[interface{}]interface{}
	lastId   int64
	files    map[string][]byte

	objects     *fbx.Node
	connections *fbx.Node
}

func NewFBXBuilder(settings Settings) *FBXBuilder {
	f := &FBXBuilder{
		doc:         fbx.NewFBX(fbxVersion),
		settings:    settings,
		cache:       make(map[interface{}]interface{}),
		files:       make(map[string][]byte),
		lastId:      firstId,
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	f.Root().AddNodes(
		headerExtension(settings.Name),
		bfbx73.FileId(fileId),
		bfbx73.CreationTime(epochLocal),
		bfbx73.Creator(creator),
		globalSettings(settings),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		definitions(),
		f.objects,
		f.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
	return f
}

func (f *FBXBuilder) Settings() Settings { return f.settings }

func appInfo(prefix string) []*fbx.Node {
	return []*fbx.Node{
		bfbx73.P(prefix, "Compound", "", ""),
		bfbx73.P(prefix+"|ApplicationVendor", "KString", "", "", appVendor),
		bfbx73.P(prefix+"|ApplicationName", "KString", "", "", appName),
		bfbx73.P(prefix+"|ApplicationVersion", "KString", "", "", appVersion),
		bfbx73.P(prefix+"|DateTime_GMT", "DateTime", "", "", epochGMT),
	}
}

func headerExtension(name string) *fbx.Node {
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", name),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", name),
	)
	props.AddNodes(appInfo("Original")...)
	props.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", path.Base(name)))
	props.AddNodes(appInfo("LastSaved")...)

	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(fbxVersion),
		bfbx73.EncryptionType(0),
		// fixed time stamp keeps exports reproducible
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(1970), bfbx73.Month(1), bfbx73.Day(1),
			bfbx73.Hour(10), bfbx73.Minute(0), bfbx73.Second(0), bfbx73.Millisecond(0),
		),
		bfbx73.Creator(creator),
		bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			bfbx73.MetaData().AddNodes(
				bfbx73.Version(100),
				bfbx73.Title(path.Base(name)),
				bfbx73.Subject(""),
				bfbx73.Author(""),
				bfbx73.Keywords(""),
				bfbx73.Revision(""),
				bfbx73.Comment(""),
			),
			props,
		),
	)
}

// globalSettings uses Y up right handed axes of scene graph.
func globalSettings(s Settings) *fbx.Node {
	axis := func(name string, v int32) *fbx.Node {
		return bfbx73.P(name, "int", "Integer", "", v)
	}
	camera := s.DefaultCamera
	if camera == "" {
		camera = producerCam
	}
	return bfbx73.GlobalSettings().AddNodes(
		bfbx73.Version(1000),
		bfbx73.Properties70().AddNodes(
			axis("UpAxis", 1), axis("UpAxisSign", 1),
			axis("FrontAxis", 2), axis("FrontAxisSign", 1),
			axis("CoordAxis", 0), axis("CoordAxisSign", 1),
			axis("OriginalUpAxis", 1), axis("OriginalUpAxisSign", 1),
			bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(1)),
			bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", float64(1)),
			bfbx73.P("AmbientColor", "ColorRGB", "Color", "",
				float64(s.Ambient[0]), float64(s.Ambient[1]), float64(s.Ambient[2])),
			bfbx73.P("DefaultCamera", "KString", "", "", camera),
			bfbx73.P("TimeSpanStart", "KTime", "Time", "", int64(0)),
			bfbx73.P("TimeSpanStop", "KTime", "Time", "", KTime(s.TimeSpan)),
		),
	)
}

// GlobalProperty returns values of GlobalSettings property name, nil when
// there is no such property.
func (f *FBXBuilder) GlobalProperty(name string) []interface{} {
	gs := f.Root().GetNode("GlobalSettings")
	if gs == nil {
		return nil
	}
	for _, p := range gs.GetNode("Properties70").GetNodes("P") {
		if p.Properties[0].(string) == name {
			return p.Properties[4:]
		}
	}
	return nil
}

func template(objectType, class string, props ...*fbx.Node) *fbx.Node {
	return bfbx73.ObjectType(objectType).AddNodes(
		bfbx73.Count(0),
		bfbx73.PropertyTemplate(class).AddNodes(bfbx73.Properties70().AddNodes(props...)),
	)
}

func vec3P(name, typ string, x, y, z float64) *fbx.Node {
	return bfbx73.P(name, typ, "", "A", x, y, z)
}

func definitions() *fbx.Node {
	return bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
		template("Model", "FbxNode",
			bfbx73.P("QuaternionInterpolate", "enum", "", "", int32(0)),
			bfbx73.P("Show", "bool", "", "", int32(1)),
			vec3P("Lcl Translation", "Lcl Translation", 0, 0, 0),
			vec3P("Lcl Rotation", "Lcl Rotation", 0, 0, 0),
			vec3P("Lcl Scaling", "Lcl Scaling", 1, 1, 1),
			bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
			bfbx73.P("Visibility Inheritance", "Visibility Inheritance", "", "", int32(1)),
		),
		template("Material", "FbxSurfacePhong",
			bfbx73.P("ShadingModel", "KString", "", "", "Phong"),
			bfbx73.P("MultiLayer", "bool", "", "", int32(0)),
			vec3P("EmissiveColor", "Color", 0, 0, 0),
			bfbx73.P("EmissiveFactor", "Number", "", "A", float64(1)),
			vec3P("AmbientColor", "Color", 0.2, 0.2, 0.2),
			bfbx73.P("AmbientFactor", "Number", "", "A", float64(1)),
			vec3P("DiffuseColor", "Color", 1, 1, 1),
			bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
			vec3P("SpecularColor", "Color", 0.2, 0.2, 0.2),
			bfbx73.P("SpecularFactor", "Number", "", "A", float64(1)),
		),
		template("Texture", "FbxFileTexture",
			bfbx73.P("TextureTypeUse", "enum", "", "", int32(0)),
			bfbx73.P("Texture alpha", "Number", "", "A", float64(1)),
			bfbx73.P("CurrentMappingType", "enum", "", "", int32(0)),
			bfbx73.P("WrapModeU", "enum", "", "", int32(0)),
			bfbx73.P("WrapModeV", "enum", "", "", int32(0)),
			bfbx73.P("UVSwap", "bool", "", "", int32(0)),
			bfbx73.P("PremultiplyAlpha", "bool", "", "", int32(1)),
			bfbx73.P("UseMaterial", "bool", "", "", int32(0)),
			bfbx73.P("UseMipMap", "bool", "", "", int32(0)),
		),
		template("Video", "FbxVideo",
			bfbx73.P("ImageSequence", "bool", "", "", int32(0)),
			bfbx73.P("Width", "int", "Integer", "", int32(0)),
			bfbx73.P("Height", "int", "Integer", "", int32(0)),
			bfbx73.P("Path", "KString", "XRefUrl", "", ""),
		),
		template("Geometry", "FbxMesh",
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
			bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
			bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
			bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
		),
		template("NodeAttribute", "FbxNull",
			bfbx73.P("Size", "double", "Number", "", float64(100)),
			bfbx73.P("Look", "enum", "", "", int32(1)),
		),
	)
}

// updateDefinitions sets object counts of definitions section. Types
// without template are appended in name order.
func (f *FBXBuilder) updateDefinitions() {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := f.Root().GetNode("Definitions")
	types := make(map[string]*fbx.Node)
	for _, ot := range defs.GetNodes("ObjectType") {
		types[ot.Properties[0].(string)] = ot
	}

	total := int32(1) // GlobalSettings
	for _, name := range names {
		total += counts[name]
		ot, ok := types[name]
		if !ok {
			ot = bfbx73.ObjectType(name)
			defs.AddNode(ot)
		}
		ot.GetOrAddNode(bfbx73.Count(0)).Properties[0] = counts[name]
	}
	defs.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.doc.Root
}

// GetCachedOr returns value cached for key, creating it on first use.
func (f *FBXBuilder) GetCachedOr(key interface{}, create func() interface{}) interface{} {
	v, ok := f.cache[key]
	if !ok {
		v = create()
		f.cache[key] = v
	}
	return v
}

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }

// Write encodes document. Encoder needs seekable output, so document is
// staged in temporary file.
func (f *FBXBuilder) Write(w io.Writer) error {
	f.updateDefinitions()

	tmp, err := os.CreateTemp("", "sgexport.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Can't create temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := fbx.Write(tmp, f.doc); err != nil {
		return errors.Wrapf(err, "Can't encode fbx")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tmp)
	return err
}

// AddExportFile attaches file written next to document by WriteZip.
func (f *FBXBuilder) AddExportFile(name string, data []byte) {
	f.files[name] = data
}

func (f *FBXBuilder) WriteZip(w io.Writer, name string) error {
	zw := zip.NewWriter(w)

	fw, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Can't create zip fbx for %q", name)
	}
	if err := f.Write(fw); err != nil {
		return errors.Wrapf(err, "Fbx exporting failed")
	}

	files := make([]string, 0, len(f.files))
	for file := range f.files {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		fw, err := zw.Create(file)
		if err != nil {
			return errors.Wrapf(err, "Can't create zip for %q", file)
		}
		if _, err := fw.Write(f.files[file]); err != nil {
			return errors.Wrapf(err, "Can't write zip for %q", file)
		}
	}
	return zw.Close()
}
