package sgu

import (
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/scene_browser/sg"
	"github.com/mogaika/scene_browser/vfs"
)

var exportExtensions = map[string]string{
	"gltf":   ".glb",
	"fbx":    ".fbx",
	"fbxzip": ".zip",
	"yaml":   ".yaml",
	"obj":    ".obj",
}

// ExportFormats returns sorted names of formats accepted by Export.
func ExportFormats() []string {
	formats := make([]string, 0, len(exportExtensions))
	for f := range exportExtensions {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// ExportExt returns file extension of export format.
func ExportExt(format string) (string, bool) {
	ext, ok := exportExtensions[format]
	return ext, ok
}

// Export writes current state of scene in format. storage and dir are
// used by formats bundling textures and may be nil for others.
func Export(w io.Writer, format string, s *sg.Scene, storage vfs.Directory, dir string) error {
	switch format {
	case "gltf":
		return WriteGLTF(w, s)
	case "fbx":
		return WriteFBX(w, s)
	case "fbxzip":
		if storage == nil {
			return errors.Errorf("Format %q requires storage", format)
		}
		return WriteFBXZip(w, s, storage, dir)
	case "yaml":
		return WriteYAML(w, s)
	case "obj":
		return WriteObj(w, s)
	}
	return errors.Errorf("Unknown export format %q", format)
}
