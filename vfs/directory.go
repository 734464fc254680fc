package vfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type DirectoryDriver struct {
	path string
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

func (dd *DirectoryDriver) Init(parent Directory) {
	if pd, ok := parent.(*DirectoryDriver); ok {
		dd.path = filepath.Join(pd.path, filepath.Base(dd.path))
	}
}

func (dd *DirectoryDriver) Name() string      { return filepath.Base(dd.path) }
func (dd *DirectoryDriver) IsDirectory() bool { return true }
func (dd *DirectoryDriver) Path() string      { return dd.path }

func (dd *DirectoryDriver) List() ([]string, error) {
	entries, err := os.ReadDir(dd.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error getting directory '%s' info", dd.path)
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Name())
	}
	return result, nil
}

func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	newPath := filepath.Join(dd.path, name)
	s, err := os.Stat(newPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Stat error")
	}
	var e Element
	if s.IsDir() {
		e = NewDirectoryDriver(newPath)
	} else {
		e = NewDirectoryDriverFile(newPath)
	}
	e.Init(dd)
	return e, nil
}

func (dd *DirectoryDriver) Add(e Element) error {
	path := filepath.Join(dd.path, e.Name())
	if e.IsDirectory() {
		return os.Mkdir(path, os.ModePerm)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.Wrapf(err, "file '%s' creation failure", path)
	}
	e.Init(dd)
	return f.Close()
}

func (dd *DirectoryDriver) Remove(name string) error {
	return os.Remove(filepath.Join(dd.path, name))
}

// DirectoryDriverFile is a host file. It must be opened before reading.
type DirectoryDriverFile struct {
	path string
	f    *os.File
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{path: path}
}

func (ddf *DirectoryDriverFile) Init(parent Directory) {
	if dd, ok := parent.(*DirectoryDriver); ok {
		ddf.path = filepath.Join(dd.path, filepath.Base(ddf.path))
	}
}

func (ddf *DirectoryDriverFile) Name() string      { return filepath.Base(ddf.path) }
func (ddf *DirectoryDriverFile) IsDirectory() bool { return false }

func (ddf *DirectoryDriverFile) Size() int64 {
	stat, err := os.Stat(ddf.path)
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (ddf *DirectoryDriverFile) Open(readonly bool) error {
	if ddf.f != nil {
		return errors.Errorf("File '%s' already opened", ddf.path)
	}
	flags := os.O_RDWR
	if readonly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(ddf.path, flags, 0)
	if err != nil {
		return errors.Wrapf(err, "os.Open('%s')", ddf.path)
	}
	ddf.f = f
	return nil
}

func (ddf *DirectoryDriverFile) Close() error {
	if ddf.f == nil {
		return nil
	}
	err := ddf.f.Close()
	ddf.f = nil
	return errors.Wrapf(err, "os.File.Close()")
}

var errNotOpened = errors.New("First you need to open file")

func (ddf *DirectoryDriverFile) Reader() (*io.SectionReader, error) {
	if ddf.f == nil {
		return nil, errNotOpened
	}
	return io.NewSectionReader(ddf.f, 0, ddf.Size()), nil
}

func (ddf *DirectoryDriverFile) ReadAt(b []byte, off int64) (n int, err error) {
	if ddf.f == nil {
		return 0, errNotOpened
	}
	return ddf.f.ReadAt(b, off)
}

// Copy replaces file content with src. The file is left closed.
func (ddf *DirectoryDriverFile) Copy(src io.Reader) error {
	ddf.Close()

	f, err := os.Create(ddf.path)
	if err != nil {
		return errors.Wrapf(err, "os.Create('%s')", ddf.path)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return errors.Wrapf(err, "Copy to '%s'", ddf.path)
	}
	return f.Sync()
}

func (ddf *DirectoryDriverFile) WriteAt(b []byte, off int64) (n int, err error) {
	if ddf.f == nil {
		return 0, errNotOpened
	}
	return ddf.f.WriteAt(b, off)
}

func (ddf *DirectoryDriverFile) Sync() error {
	if ddf.f == nil {
		return errNotOpened
	}
	return ddf.f.Sync()
}
