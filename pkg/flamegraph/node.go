package flamegraph

// RootName is the name of the synthetic node every tree starts from.
const RootName = "root"

// Node is a node of a call tree. Value is the total weight of the samples
// that passed through the node. Children keep the order in which their names
// were first seen.
type Node struct {
	Name     string
	Value    int64
	Children []*Node
}

func NewNode(name string) *Node { return &Node{Name: name} }

// NewRoot returns an empty tree.
func NewRoot() *Node { return NewNode(RootName) }

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) insertChild(name string) *Node {
	if c := n.Child(name); c != nil {
		return c
	}
	c := NewNode(name)
	n.Children = append(n.Children, c)
	return c
}

// Self returns the weight of the samples that ended at the node.
func (n *Node) Self() int64 {
	self := n.Value
	for _, c := range n.Children {
		self -= c.Value
	}
	return self
}

// Depth returns the number of frames on the longest path below n.
// A root-only tree has depth 0.
func (n *Node) Depth() int {
	var depth int
	for _, c := range n.Children {
		if d := c.Depth() + 1; d > depth {
			depth = d
		}
	}
	return depth
}

// Walk calls fn for every node in depth-first pre-order. The stack passed to
// fn holds the names from the first frame below n down to the node itself,
// and is only valid for the duration of the call.
func (n *Node) Walk(fn func(stack []string, node *Node)) {
	stack := make([]string, 0, 16)
	for _, c := range n.Children {
		c.walk(stack, fn)
	}
}

func (n *Node) walk(stack []string, fn func([]string, *Node)) {
	stack = append(stack, n.Name)
	fn(stack, n)
	for _, c := range n.Children {
		c.walk(stack, fn)
	}
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Name: n.Name, Value: n.Value}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Equal reports whether both trees have the same names, values and child order.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Name != o.Name || n.Value != o.Value || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}
