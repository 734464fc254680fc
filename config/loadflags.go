package config

import "strings"

// LoadFlags select optional parts of scene loading.
type LoadFlags int

const (
	// LoadAnimations keeps all animation keys, otherwise only first key
	// of every controller is read.
	LoadAnimations LoadFlags = 1 << iota
	// LoadGeometry loads mesh models referenced by scenes.
	LoadGeometry

	LoadDefault = LoadAnimations | LoadGeometry
)

func (f LoadFlags) Has(flag LoadFlags) bool { return f&flag == flag }

func (f LoadFlags) String() string {
	var parts []string
	if f.Has(LoadAnimations) {
		parts = append(parts, "animations")
	}
	if f.Has(LoadGeometry) {
		parts = append(parts, "geometry")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

var loadFlags = LoadDefault

func GetLoadFlags() LoadFlags {
	return loadFlags
}

func SetLoadFlags(f LoadFlags) {
	loadFlags = f
}
