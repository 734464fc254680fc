package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is configuration shared by the browser and the command line tools.
type File struct {
	Address  string `yaml:"address"`
	Storage  string `yaml:"storage"` // directory, .iso or .zip
	Encoding string `yaml:"encoding"`
	Load     struct {
		Animations bool `yaml:"animations"`
		Geometry   bool `yaml:"geometry"`
	} `yaml:"load"`
	WatchModels bool   `yaml:"watch_models"`
	ExportDir   string `yaml:"export_dir"`
}

func DefaultFile() *File {
	f := &File{
		Address:     ":8000",
		Encoding:    EncodingUTF8,
		WatchModels: true,
		ExportDir:   "export",
	}
	f.Load.Animations = true
	f.Load.Geometry = true
	return f
}

// LoadFile reads yaml config over defaults.
func LoadFile(path string) (*File, error) {
	f := DefaultFile()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read config")
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.Wrapf(err, "Cannot parse config '%s'", path)
	}
	return f, nil
}

func (f *File) LoadFlags() LoadFlags {
	var flags LoadFlags
	if f.Load.Animations {
		flags |= LoadAnimations
	}
	if f.Load.Geometry {
		flags |= LoadGeometry
	}
	return flags
}

// Apply sets package globals from f.
func (f *File) Apply() error {
	if err := SetEncoding(f.Encoding); err != nil {
		return err
	}
	SetLoadFlags(f.LoadFlags())
	return nil
}
