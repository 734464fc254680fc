package vfs

import (
	"bytes"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// ZipDirectory is a read-only directory of a zip archive. Entry names are
// matched case-insensitively, like on the host file systems archives
// were packed from.
type ZipDirectory struct {
	archive *zip.Reader
	name    string
	prefix  string // "" for archive root, "dir/sub/" otherwise
}

func NewZipDriver(f File) (*ZipDirectory, error) {
	r, err := zip.NewReader(f, f.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open zip '%s'", f.Name())
	}
	return &ZipDirectory{archive: r, name: f.Name()}, nil
}

func (z *ZipDirectory) Init(parent Directory) {}
func (z *ZipDirectory) Name() string          { return z.name }
func (z *ZipDirectory) IsDirectory() bool     { return true }

// child returns first path element of entry name inside z and whether it is
// a directory.
func (z *ZipDirectory) child(entry string) (name string, dir bool, ok bool) {
	if len(entry) <= len(z.prefix) || !strings.EqualFold(entry[:len(z.prefix)], z.prefix) {
		return "", false, false
	}
	rest := entry[len(z.prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true, true
	}
	return rest, false, true
}

func (z *ZipDirectory) List() ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	for _, f := range z.archive.File {
		name, _, ok := z.child(f.Name)
		if !ok || name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		result = append(result, name)
	}
	return result, nil
}

func (z *ZipDirectory) GetElement(name string) (Element, error) {
	for _, f := range z.archive.File {
		child, dir, ok := z.child(f.Name)
		if !ok || !strings.EqualFold(child, name) {
			continue
		}
		if dir {
			return &ZipDirectory{
				archive: z.archive,
				name:    child,
				prefix:  z.prefix + child + "/",
			}, nil
		}
		return &ZipFile{f: f}, nil
	}
	return nil, errors.Wrapf(os.ErrNotExist, "'%s' not found in zip", path.Join(z.prefix, name))
}

func (z *ZipDirectory) Add(e Element) error      { return ErrReadOnly }
func (z *ZipDirectory) Remove(name string) error { return ErrReadOnly }

// ZipFile is decompressed to memory on Open.
type ZipFile struct {
	f    *zip.File
	data *bytes.Reader
}

func (zf *ZipFile) Init(parent Directory) {}
func (zf *ZipFile) Name() string          { return path.Base(zf.f.Name) }
func (zf *ZipFile) IsDirectory() bool     { return false }
func (zf *ZipFile) Size() int64           { return int64(zf.f.UncompressedSize64) }

func (zf *ZipFile) Open(readonly bool) error {
	if !readonly {
		return ErrReadOnly
	}
	if zf.data != nil {
		return nil
	}
	rc, err := zf.f.Open()
	if err != nil {
		return errors.Wrapf(err, "Cannot open zip entry '%s'", zf.f.Name)
	}
	defer rc.Close()

	data := make([]byte, zf.f.UncompressedSize64)
	if _, err := io.ReadFull(rc, data); err != nil {
		return errors.Wrapf(err, "Cannot decompress zip entry '%s'", zf.f.Name)
	}
	zf.data = bytes.NewReader(data)
	return nil
}

func (zf *ZipFile) Close() error {
	zf.data = nil
	return nil
}

func (zf *ZipFile) Reader() (*io.SectionReader, error) {
	if zf.data == nil {
		return nil, errNotOpened
	}
	return io.NewSectionReader(zf.data, 0, zf.data.Size()), nil
}

func (zf *ZipFile) ReadAt(b []byte, off int64) (n int, err error) {
	if zf.data == nil {
		return 0, errNotOpened
	}
	return zf.data.ReadAt(b, off)
}

func (zf *ZipFile) Copy(src io.Reader) error { return ErrReadOnly }

func (zf *ZipFile) WriteAt(b []byte, off int64) (n int, err error) {
	return 0, ErrReadOnly
}
