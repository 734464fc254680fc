package sgu

import (
	"path"
	"strings"
)

const (
	SceneExt = ".sg"
	ModelExt = ".gm"
)

type FileKind int

const (
	KindOther FileKind = iota
	KindScene
	KindModel
)

func (k FileKind) String() string {
	switch k {
	case KindScene:
		return "scene"
	case KindModel:
		return "model"
	}
	return "other"
}

// GetFileKind detects file kind by extension, case insensitive.
func GetFileKind(p string) FileKind {
	switch strings.ToLower(path.Ext(p)) {
	case SceneExt:
		return KindScene
	case ModelExt:
		return KindModel
	}
	return KindOther
}
