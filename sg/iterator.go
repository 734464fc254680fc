package sg

// HierarchyIterator walks a subtree in pre-order. It is lazy and can be
// restarted with Reset.
//
//	for it := root.Iterate(0); it.Next(); {
//		use(it.Node())
//	}
type HierarchyIterator struct {
	root       *Node
	cur        *Node
	childFlags Flags
	started    bool
}

// Iterate returns iterator over n and its descendants. Children of nodes
// not having all childFlags set are skipped.
func (n *Node) Iterate(childFlags Flags) *HierarchyIterator {
	return &HierarchyIterator{root: n, childFlags: childFlags}
}

// Next advances iterator and reports whether there is a current node.
func (it *HierarchyIterator) Next() bool {
	if !it.started {
		it.started = true
		it.cur = it.root
	} else if it.cur != nil {
		it.cur = it.cur.next(it.childFlags, it.root)
	}
	return it.cur != nil
}

func (it *HierarchyIterator) Node() *Node { return it.cur }

func (it *HierarchyIterator) Reset() {
	it.started = false
	it.cur = nil
}

// Collect returns all remaining nodes.
func (it *HierarchyIterator) Collect() []*Node {
	var result []*Node
	for it.Next() {
		result = append(result, it.cur)
	}
	return result
}
