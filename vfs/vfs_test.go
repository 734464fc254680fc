package vfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var teststring = []byte(" <++ = This is test string = ++> \r\n TESTING ! ! ! \r\n ....END....")

func TestDirectoryDriver(t *testing.T) {
	d := NewDirectoryDriver(t.TempDir())

	df := NewDirectoryDriverFile("_test-dir-driver_.bin")
	require.NoError(t, d.Add(df))

	f, err := DirectoryGetFile(d, df.Name())
	require.NoError(t, err)
	require.NoError(t, f.Copy(bytes.NewReader(teststring)))

	r, err := OpenFileAndGetReader(f, true)
	require.NoError(t, err)
	data := make([]byte, r.Size())
	_, err = r.ReadAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, teststring, data)
	assert.Error(t, f.Open(true), "double open")
	require.NoError(t, f.Close())

	require.NoError(t, d.Remove(f.Name()))
	assert.Error(t, f.Open(true), "removed file opened")
}

func TestCleanPath(t *testing.T) {
	for _, test := range []struct{ in, out string }{
		{"", "."},
		{"/", "."},
		{"a/b", "a/b"},
		{"a\\b\\c.sg", "a/b/c.sg"},
		{"../../x", "x"},
		{"a/./b/../c", "a/c"},
	} {
		if got := CleanPath(test.in); got != test.out {
			t.Errorf("CleanPath(%q)=%q; expected %q", test.in, got, test.out)
		}
	}
}

func TestOpenPathAndWalk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models", "sub"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(root, "scene.sg"), []byte("sg"), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "sub", "box.gm"), []byte("box"), 0666))

	d := NewDirectoryDriver(root)
	data, err := ReadFile(d, "models\\sub\\box.gm")
	require.NoError(t, err)
	assert.Equal(t, []byte("box"), data)

	_, err = ReadFile(d, "models")
	assert.Error(t, err)
	_, err = OpenPath(d, "scene.sg/child")
	assert.Error(t, err)

	var paths []string
	require.NoError(t, WalkFiles(d, func(p string, f File) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{"models/sub/box.gm", "scene.sg"}, paths)
}

func TestZipDriver(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"Scene.sg":          "scene",
		"models/box.gm":     "box",
		"models/lod/hi.gm":  "hi",
		"textures/tile.tga": "tga",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	zipPath := filepath.Join(t.TempDir(), "data.zip")
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0666))

	d, err := OpenStorage(zipPath)
	require.NoError(t, err)
	assert.Equal(t, "data.zip", d.Name())

	names, err := d.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Scene.sg", "models", "textures"}, names)

	data, err := ReadFile(d, "scene.SG")
	require.NoError(t, err)
	assert.Equal(t, []byte("scene"), data)

	data, err = ReadFile(d, "models/LOD/hi.gm")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	_, err = ReadFile(d, "models/missing.gm")
	assert.True(t, errors.Is(err, os.ErrNotExist), "%v", err)

	assert.Equal(t, ErrReadOnly, d.Remove("Scene.sg"))
}

func TestCreateFile(t *testing.T) {
	dir := t.TempDir()
	d := NewDirectoryDriver(dir)

	f, err := CreateFile(d, "scenes/models/new.gm")
	require.NoError(t, err)
	require.NoError(t, OpenFileAndCopy(f, bytes.NewReader(teststring)))

	data, err := os.ReadFile(filepath.Join(dir, "scenes", "models", "new.gm"))
	require.NoError(t, err)
	assert.Equal(t, teststring, data)

	again, err := CreateFile(d, "scenes/models/new.gm")
	require.NoError(t, err)
	assert.Equal(t, int64(len(teststring)), again.Size())

	_, err = CreateFile(d, "scenes")
	assert.Error(t, err)
}
