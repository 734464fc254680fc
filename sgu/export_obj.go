package sgu

import (
	"fmt"
	"io"
	"strings"

	"github.com/mogaika/scene_browser/sg"
)

// WriteObj writes renderable enabled meshes of scene in world space as
// single wavefront object. Primitives are separated into groups named
// after their node and material.
func WriteObj(w io.Writer, s *sg.Scene) error {
	if _, err := fmt.Fprintf(w, "# %s\n", s.Name()); err != nil {
		return err
	}
	names := newNodeNamer(s)
	offset := 0
	for _, n := range s.Nodes() {
		mesh, ok := n.Object.(*sg.Mesh)
		if !ok || !n.Renderable() || !n.Enabled() {
			continue
		}
		transform := n.WorldTransform()
		for i, p := range mesh.Primitives {
			if p.Geometry == nil {
				continue
			}
			name := names.Name(n)
			if len(mesh.Primitives) > 1 {
				name = fmt.Sprintf("%s_p%d", name, i)
			}
			if p.Material != nil {
				if _, err := fmt.Fprintf(w, "usemtl %s\n", strings.ReplaceAll(p.Material.Name, " ", "_")); err != nil {
					return err
				}
			}
			written, err := p.Geometry.ExportObj(w, name, transform, nil, offset)
			if err != nil {
				return err
			}
			offset += written
		}
	}
	return nil
}
