package sgu

import (
	"bytes"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/chunk"
	"github.com/mogaika/scene_browser/config"
	"github.com/mogaika/scene_browser/mb"
	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

const (
	ModelChunk   = "gm"
	ModelVersion = 0x100
)

// Model is a geometry batch rendered with one material.
type Model struct {
	Material *sg.Material
	Geometry *mb.MeshBuilder
}

// ModelFile is content of a geometry file: materials and models using them.
type ModelFile struct {
	Name      string
	Materials []*sg.Material
	Models    []Model
}

func (mf *ModelFile) MaterialIndex(m *sg.Material) int {
	for i, mat := range mf.Materials {
		if mat == m {
			return i
		}
	}
	return -1
}

// ReadModel parses geometry file. name is used in error messages only.
func ReadModel(src io.Reader, name string) (*ModelFile, error) {
	r := chunk.NewReader(src)
	r.SetStringDecoder(config.StringDecoder())

	mf := &ModelFile{Name: name}
	if err := mf.read(r); err != nil {
		return nil, errors.Wrapf(err, "Failed to load model %q", name)
	}
	return mf, nil
}

// TraceModel parses geometry file and returns tree of visited chunks.
func TraceModel(src io.Reader, name string) (*chunk.TraceNode, error) {
	r := chunk.NewReader(src)
	r.SetStringDecoder(config.StringDecoder())
	r.EnableTrace()
	mf := &ModelFile{Name: name}
	return r.Trace(), mf.read(r)
}

func (mf *ModelFile) read(r *chunk.Reader) error {
	root, end, err := r.Begin()
	if err != nil {
		return err
	}
	if root != ModelChunk {
		return chunk.FormatErrorf("corrupted geometry file: root chunk %q", root)
	}
	ver, err := r.ReadInt()
	if err != nil {
		return err
	}
	if ver != ModelVersion {
		return chunk.FormatErrorf("invalid geometry file version (expected 0x%x, got 0x%x)", ModelVersion, ver)
	}

	for r.More(end) {
		name, subend, err := r.Begin()
		if err != nil {
			return err
		}
		switch name {
		case "material":
			err = mf.readMaterial(r, subend)
		case "model":
			err = mf.readModel(r, subend)
		}
		if err != nil {
			return errors.Wrapf(err, "chunk %q", name)
		}
		if err := r.End(subend); err != nil {
			return err
		}
	}
	return r.End(end)
}

func (mf *ModelFile) readMaterial(r *chunk.Reader, end int64) error {
	name, err := r.ReadString()
	if err != nil {
		return err
	}
	mat := sg.NewMaterial(name)

	for r.More(end) {
		sub, subend, err := r.Begin()
		if err != nil {
			return err
		}
		switch sub {
		case "diffuse":
			var c mgl32.Vec3
			if c, err = readVec3(r); err == nil {
				mat.Diffuse = c.Vec4(mat.Diffuse[3])
			}
		case "specular":
			if mat.Specular, err = readVec3(r); err == nil {
				mat.SpecularExponent, err = r.ReadFloat32()
				mat.SpecularExponent = mgl32.Clamp(mat.SpecularExponent, 0, 1000)
			}
		case "opacity":
			var a float32
			if a, err = r.ReadFloat32(); err == nil {
				if a < 0 || a > 1 {
					return chunk.FormatErrorf("invalid material %q opacity %v", name, a)
				}
				mat.Diffuse[3] = a
			}
		case "lighting":
			var on int
			if on, err = r.ReadInt(); err == nil {
				mat.Lighting = on != 0
			}
		case "texlayer":
			err = readTextureLayer(r, subend, mat)
		}
		if err != nil {
			return err
		}
		if err := r.End(subend); err != nil {
			return err
		}
	}
	mf.Materials = append(mf.Materials, mat)
	return nil
}

func readTextureLayer(r *chunk.Reader, end int64, mat *sg.Material) error {
	for r.More(end) {
		sub, subend, err := r.Begin()
		if err != nil {
			return err
		}
		if sub == "filename" {
			tex, err := r.ReadString()
			if err != nil {
				return err
			}
			mat.Textures = append(mat.Textures, tex)
		}
		if err := r.End(subend); err != nil {
			return err
		}
	}
	return nil
}

func (mf *ModelFile) readModel(r *chunk.Reader, end int64) error {
	var model Model
	for r.More(end) {
		sub, subend, err := r.Begin()
		if err != nil {
			return err
		}
		switch sub {
		case "material":
			var ix int
			if ix, err = r.ReadInt(); err == nil {
				if ix < 0 || ix >= len(mf.Materials) {
					return chunk.FormatErrorf("undefined material (index %d) used", ix)
				}
				model.Material = mf.Materials[ix]
			}
		case mb.GeometryChunk:
			model.Geometry, err = mb.Read(r, subend)
		}
		if err != nil {
			return err
		}
		if err := r.End(subend); err != nil {
			return err
		}
	}
	if model.Geometry == nil {
		return chunk.FormatErrorf("model without geometry")
	}
	mf.Models = append(mf.Models, model)
	return nil
}

// Write writes geometry file. Materials of models must be listed in
// Materials.
func (mf *ModelFile) Write(dst io.Writer) error {
	w := chunk.NewWriter(dst)
	gm := w.Begin(ModelChunk)
	w.WriteInt(ModelVersion)

	for _, mat := range mf.Materials {
		s := w.Begin("material")
		w.WriteString(mat.Name)
		w.WriteFloat32Chunk("diffuse", mat.Diffuse[0], mat.Diffuse[1], mat.Diffuse[2])
		w.WriteFloat32Chunk("opacity", mat.Diffuse[3])
		w.WriteFloat32Chunk("specular", mat.Specular[0], mat.Specular[1], mat.Specular[2], mat.SpecularExponent)
		w.WriteInt32Chunk("lighting", boolInt(mat.Lighting))
		for _, tex := range mat.Textures {
			layer := w.Begin("texlayer")
			w.WriteStringChunk("filename", tex)
			layer.End()
		}
		if err := s.End(); err != nil {
			return err
		}
	}

	for i, model := range mf.Models {
		s := w.Begin("model")
		if model.Material != nil {
			ix := mf.MaterialIndex(model.Material)
			if ix < 0 {
				return errors.Errorf("Model %d material %q is not listed in file materials", i, model.Material.Name)
			}
			w.WriteInt32Chunk("material", int32(ix))
		}
		if err := model.Geometry.Write(w); err != nil {
			return err
		}
		if err := s.End(); err != nil {
			return err
		}
	}

	if err := gm.End(); err != nil {
		return err
	}
	return w.Close()
}

// SaveModel replaces content of f with mf.
func SaveModel(f vfs.File, mf *ModelFile) error {
	var buf bytes.Buffer
	if err := mf.Write(&buf); err != nil {
		return err
	}
	return vfs.OpenFileAndCopy(f, &buf)
}

func boolInt(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
