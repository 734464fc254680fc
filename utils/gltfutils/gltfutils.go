package gltfutils

import (
	"io"

	"github.com/qmuntal/gltf"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// AddRootNode appends node to document and lists it in the default scene.
func AddRootNode(doc *gltf.Document, node *gltf.Node) uint32 {
	id := AddNode(doc, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, id)
	return id
}

func AddNode(doc *gltf.Document, node *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, node)
	return uint32(len(doc.Nodes) - 1)
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
