package flamegraph

import (
	"strconv"
	"strings"
)

// Collapsed renders the tree in the folded format, one "a;b;c N" line per
// node with a non-zero self value, in depth-first order.
func (n *Node) Collapsed() string {
	var res strings.Builder
	n.Walk(func(stack []string, node *Node) {
		self := node.Self()
		if self <= 0 {
			return
		}
		res.WriteString(strings.Join(stack, ";"))
		res.WriteByte(' ')
		res.WriteString(strconv.FormatInt(self, 10))
		res.WriteByte('\n')
	})
	return res.String()
}
