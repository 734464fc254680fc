package vfs

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func OpenFileAndGetReader(f File, readonly bool) (*io.SectionReader, error) {
	if err := f.Open(readonly); err != nil {
		return nil, errors.Wrapf(err, "Cannot open file '%s'", f.Name())
	}
	r, err := f.Reader()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "Cannot get file '%s' reader", f.Name())
	}
	return r, nil
}

func OpenFileAndCopy(f File, src io.Reader) error {
	if err := f.Open(false); err != nil {
		return errors.Wrapf(err, "Cannot open file '%s'", f.Name())
	}
	defer f.Close()
	if err := f.Copy(src); err != nil {
		return errors.Wrapf(err, "Cannot copy data to file '%s'", f.Name())
	}
	return nil
}

func DirectoryGetFile(d Directory, name string) (File, error) {
	e, err := d.GetElement(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open file '%s'", name)
	}
	f, ok := e.(File)
	if !ok || e.IsDirectory() {
		return nil, errors.Errorf("File '%s' is directory, not a file!", name)
	}
	return f, nil
}

// CleanPath converts p to slash separated path relative to root.
// Parent references can't escape the root.
func CleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// OpenPath resolves slash separated path relative to root.
func OpenPath(root Directory, p string) (Element, error) {
	p = CleanPath(p)
	if p == "." {
		return root, nil
	}
	var e Element = root
	var err error
	parts := strings.Split(p, "/")
	for i, part := range parts {
		d, ok := e.(Directory)
		if !ok {
			return nil, errors.Errorf("'%s' is not a directory", strings.Join(parts[:i], "/"))
		}
		if e, err = d.GetElement(part); err != nil {
			return nil, errors.Wrapf(err, "Cannot open '%s'", strings.Join(parts[:i+1], "/"))
		}
	}
	return e, nil
}

// ReadFile returns whole content of file at path p.
func ReadFile(root Directory, p string) ([]byte, error) {
	e, err := OpenPath(root, p)
	if err != nil {
		return nil, err
	}
	f, ok := e.(File)
	if !ok || e.IsDirectory() {
		return nil, errors.Errorf("'%s' is directory, not a file", p)
	}
	r, err := OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, r.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "Cannot read '%s'", p)
	}
	return data, nil
}

// CreateFile returns file at path p, creating it and missing parent
// directories. Existing file is returned as is.
func CreateFile(root Directory, p string) (File, error) {
	p = CleanPath(p)
	if p == "." {
		return nil, errors.Errorf("Empty file path")
	}
	d := root
	parts := strings.Split(p, "/")
	for _, part := range parts[:len(parts)-1] {
		e, err := d.GetElement(part)
		if err != nil {
			if err := d.Add(NewDirectoryDriver(part)); err != nil {
				return nil, errors.Wrapf(err, "Cannot create directory '%s'", part)
			}
			if e, err = d.GetElement(part); err != nil {
				return nil, err
			}
		}
		sub, ok := e.(Directory)
		if !ok {
			return nil, errors.Errorf("'%s' is not a directory", part)
		}
		d = sub
	}

	name := parts[len(parts)-1]
	if e, err := d.GetElement(name); err == nil {
		f, ok := e.(File)
		if !ok || e.IsDirectory() {
			return nil, errors.Errorf("'%s' is directory, not a file", p)
		}
		return f, nil
	}
	if err := d.Add(NewDirectoryDriverFile(name)); err != nil {
		return nil, errors.Wrapf(err, "Cannot create file '%s'", p)
	}
	return DirectoryGetFile(d, name)
}

// WalkFiles calls fn for every file of d and its subdirectories in name
// order. Paths passed to fn are relative to d.
func WalkFiles(d Directory, fn func(p string, f File) error) error {
	return walkFiles(d, "", fn)
}

func walkFiles(d Directory, prefix string, fn func(p string, f File) error) error {
	names, err := d.List()
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		e, err := d.GetElement(name)
		if err != nil {
			return err
		}
		p := path.Join(prefix, name)
		switch v := e.(type) {
		case Directory:
			if err := walkFiles(v, p, fn); err != nil {
				return err
			}
		case File:
			if err := fn(p, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// OpenStorage opens host path as directory. Files with .iso and .zip
// extensions are mounted as archives.
func OpenStorage(hostPath string) (Directory, error) {
	s, err := os.Stat(hostPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open storage")
	}
	if s.IsDir() {
		return NewDirectoryDriver(hostPath), nil
	}

	f := NewDirectoryDriverFile(hostPath)
	if err := f.Open(true); err != nil {
		return nil, err
	}
	var d Directory
	switch strings.ToLower(filepath.Ext(hostPath)) {
	case ".iso":
		d, err = NewIsoDriver(f)
	case ".zip":
		d, err = NewZipDriver(f)
	default:
		err = errors.Errorf("Unknown storage type of '%s'", hostPath)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}
