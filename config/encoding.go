package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// EncodingUTF8 disables string decoding.
const EncodingUTF8 = "UTF-8"

var cuurentCharMap *charmap.Charmap

// SetEncoding selects legacy code page of strings in loaded files by
// its charmap name (for example "Windows 1252").
func SetEncoding(name string) error {
	if name == "" || strings.EqualFold(name, EncodingUTF8) {
		cuurentCharMap = nil
		return nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				cuurentCharMap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := []string{EncodingUTF8}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

// GetEncoding returns selected charmap or nil for UTF-8.
func GetEncoding() *charmap.Charmap {
	return cuurentCharMap
}

// StringDecoder returns decoder for chunk readers or nil for UTF-8.
func StringDecoder() transform.Transformer {
	if cuurentCharMap == nil {
		return nil
	}
	return cuurentCharMap.NewDecoder()
}
