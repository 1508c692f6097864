package flamegraph

// Merge returns a new tree holding the sum of a and b. Children are matched
// by name. The result keeps the children of a in their order, followed by the
// children only found in b. Neither input is modified.
func Merge(a, b *Node) *Node {
	switch {
	case a == nil:
		return b.Clone()
	case b == nil:
		return a.Clone()
	}
	r := a.Clone()
	r.MergeFrom(b)
	return r
}

// MergeFrom adds src to n in place. The names of the two nodes are not
// compared. src is not modified, and n never shares nodes with it.
func (n *Node) MergeFrom(src *Node) {
	if src == nil {
		return
	}
	n.Value += src.Value
	for _, sc := range src.Children {
		if c := n.Child(sc.Name); c != nil {
			c.MergeFrom(sc)
			continue
		}
		n.Children = append(n.Children, sc.Clone())
	}
}
