package vfs

import (
	"encoding/binary"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mogaika/udf"
	"github.com/pkg/errors"
)

const isoSectorSize = 2048

// IsoDriver is a read-only view of udf image. Dual layer images expose
// root entries of both layers.
type IsoDriver struct {
	f                File
	layers           [2]*udf.Udf
	secondLayerStart int64
}

func NewIsoDriver(f File) (*IsoDriver, error) {
	iso := &IsoDriver{f: f}
	return iso, iso.OpenStreams()
}

func (iso *IsoDriver) Init(parent Directory) {}
func (iso *IsoDriver) Name() string          { return iso.f.Name() }
func (iso *IsoDriver) IsDirectory() bool     { return true }

func (iso *IsoDriver) OpenStreams() error {
	iso.layers[0] = udf.NewUdfFromReader(iso.f)

	var volSizeBuf [4]byte
	// primary volume description sector + offset of volume space size
	if _, err := iso.f.ReadAt(volSizeBuf[:], 0x10*isoSectorSize+80); err != nil {
		log.Printf("[vfs] [iso] Error when detecting second layer: Read vol size buf error: %v", err)
		return nil
	}
	// minus 16 boot sectors, because they do not replicated over layers (volumes)
	volumeSize := (int64(binary.LittleEndian.Uint32(volSizeBuf[:])) - 16) * isoSectorSize
	if volumeSize > 0 && volumeSize+32*isoSectorSize < iso.f.Size() {
		iso.layers[1] = udf.NewUdfFromReader(io.NewSectionReader(iso.f, volumeSize, iso.f.Size()-volumeSize))
		log.Printf("[vfs] [iso] Detected second layer of disk. Start: %x (%x)", volumeSize+16*isoSectorSize, volumeSize)
		iso.secondLayerStart = volumeSize
	}
	return nil
}

func (iso *IsoDriver) rootFiles() []udf.File {
	var result []udf.File
	for _, layer := range iso.layers {
		if layer != nil {
			result = append(result, layer.ReadDir(nil)...)
		}
	}
	return result
}

func (iso *IsoDriver) List() ([]string, error) {
	return listUdf(iso.rootFiles()), nil
}

func (iso *IsoDriver) GetElement(name string) (Element, error) {
	return findUdf(iso, iso.rootFiles(), name)
}

func (iso *IsoDriver) Add(e Element) error      { return ErrReadOnly }
func (iso *IsoDriver) Remove(name string) error { return ErrReadOnly }

func listUdf(files []udf.File) []string {
	result := make([]string, 0, len(files))
	for i := range files {
		result = append(result, files[i].Name())
	}
	return result
}

func findUdf(iso *IsoDriver, files []udf.File, name string) (Element, error) {
	for i := range files {
		if strings.EqualFold(files[i].Name(), name) {
			if files[i].IsDir() {
				return &IsoDirectory{iso: iso, f: files[i]}, nil
			}
			return &IsoDriverFile{iso: iso, f: files[i]}, nil
		}
	}
	return nil, errors.Wrapf(os.ErrNotExist, "'%s' not found in iso", name)
}

type IsoDirectory struct {
	iso *IsoDriver
	f   udf.File
}

func (d *IsoDirectory) Init(parent Directory) {}
func (d *IsoDirectory) Name() string          { return d.f.Name() }
func (d *IsoDirectory) IsDirectory() bool     { return true }

func (d *IsoDirectory) files() []udf.File {
	return d.f.Udf.ReadDir(d.f.FileEntry())
}

func (d *IsoDirectory) List() ([]string, error) {
	return listUdf(d.files()), nil
}

func (d *IsoDirectory) GetElement(name string) (Element, error) {
	return findUdf(d.iso, d.files(), name)
}

func (d *IsoDirectory) Add(e Element) error      { return ErrReadOnly }
func (d *IsoDirectory) Remove(name string) error { return ErrReadOnly }

type IsoDriverFile struct {
	iso *IsoDriver
	f   udf.File
}

func (f *IsoDriverFile) Init(parent Directory)    {}
func (f *IsoDriverFile) Name() string             { return f.f.Name() }
func (f *IsoDriverFile) IsDirectory() bool        { return false }
func (f *IsoDriverFile) Size() int64              { return f.f.Size() }
func (f *IsoDriverFile) Open(readonly bool) error { return nil }
func (f *IsoDriverFile) Close() error             { return nil }

func (f *IsoDriverFile) Reader() (*io.SectionReader, error) {
	return f.f.NewReader(), nil
}

func (f *IsoDriverFile) ReadAt(b []byte, off int64) (n int, err error) {
	return f.f.NewReader().ReadAt(b, off)
}

func (f *IsoDriverFile) Copy(src io.Reader) error { return ErrReadOnly }

func (f *IsoDriverFile) WriteAt(b []byte, off int64) (n int, err error) {
	return 0, ErrReadOnly
}
