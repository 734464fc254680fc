package chunk

import (
	"fmt"
	"strings"
)

// TraceNode records one chunk visited by a Reader with tracing enabled.
type TraceNode struct {
	Name       string
	Offset     int64 // header offset
	DataOffset int64 // payload offset
	Size       int64 // payload size
	Skipped    int64 // payload bytes skipped by End
	Closed     bool
	Parent     *TraceNode
	Childs     []*TraceNode
}

// EnableTrace starts recording chunks into a tree returned by Trace.
func (r *Reader) EnableTrace() {
	r.trace = &TraceNode{Name: "<stream>", Offset: r.pos, DataOffset: r.pos, Size: -1}
	r.cur = r.trace
}

// Trace returns the root of recorded chunk tree or nil if tracing is disabled.
func (r *Reader) Trace() *TraceNode {
	return r.trace
}

func (r *Reader) traceBegin(name string, start, end int64) {
	if r.cur == nil {
		return
	}
	n := &TraceNode{
		Name:       name,
		Offset:     start,
		DataOffset: r.pos,
		Size:       end - r.pos,
		Parent:     r.cur,
	}
	r.cur.Childs = append(r.cur.Childs, n)
	r.cur = n
}

func (r *Reader) traceEnd(skipped int64) {
	if r.cur == nil || r.cur.Parent == nil {
		return
	}
	r.cur.Skipped = skipped
	r.cur.Closed = true
	r.cur = r.cur.Parent
}

func (n *TraceNode) End() int64 {
	return n.DataOffset + n.Size
}

func (n *TraceNode) String() string {
	s := fmt.Sprintf("chunk<%s>[o:0x%x,d:0x%x,s:0x%x,ae:0x%x]", n.Name, n.Offset, n.DataOffset, n.Size, n.End())
	if n.Skipped != 0 {
		s += fmt.Sprintf(" skipped 0x%x", n.Skipped)
	}
	if !n.Closed && n.Parent != nil {
		s += " [UNCLOSED]"
	}
	return s
}

// Path returns names from the stream root to n joined by '/'.
func (n *TraceNode) Path() string {
	var names []string
	for c := n; c != nil && c.Parent != nil; c = c.Parent {
		names = append(names, c.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

func (n *TraceNode) stringTree(sb *strings.Builder, pad int) {
	sPad := strings.Repeat(".  ", pad)
	sb.WriteString(sPad)
	sb.WriteString(n.String())
	sb.WriteByte('\n')

	pos := n.DataOffset
	for _, child := range n.Childs {
		if child.Offset > pos {
			fmt.Fprintf(sb, "%s.  data [ao:0x%x,s:0x%x]\n", sPad, pos, child.Offset-pos)
		}
		child.stringTree(sb, pad+1)
		pos = child.End()
	}
	if n.Size >= 0 && pos > n.End() {
		fmt.Fprintf(sb, "%s. [OVERGROW]\n", sPad)
	}
}

// StringTree renders the recorded tree, marking primitive data between
// child chunks.
func (n *TraceNode) StringTree() string {
	var sb strings.Builder
	n.stringTree(&sb, 0)
	return sb.String()
}
