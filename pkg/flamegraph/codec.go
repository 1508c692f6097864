package flamegraph

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The encoder and decoder are only used through EncodeAll and DecodeAll,
// which are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

type nodeJSON struct {
	Name     string     `json:"name"`
	Value    int64      `json:"value"`
	Children []nodeJSON `json:"children"`
}

func (n *Node) toJSONNode() nodeJSON {
	nodes := make([]nodeJSON, len(n.Children))
	for i, c := range n.Children {
		nodes[i] = c.toJSONNode()
	}
	return nodeJSON{
		Name:     n.Name,
		Value:    n.Value,
		Children: nodes,
	}
}

func (j *nodeJSON) toNode() *Node {
	n := &Node{Name: j.Name, Value: j.Value}
	if len(j.Children) > 0 {
		n.Children = make([]*Node, len(j.Children))
		for i := range j.Children {
			n.Children[i] = j.Children[i].toNode()
		}
	}
	return n
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.toJSONNode())
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var j nodeJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*n = *j.toNode()
	return nil
}

// Marshal renders the tree as nested {"name","value","children"} objects.
// Leaves carry an empty children array.
func Marshal(n *Node) ([]byte, error) {
	if n == nil {
		n = NewRoot()
	}
	return n.MarshalJSON()
}

func Unmarshal(b []byte) (*Node, error) {
	var n Node
	if err := n.UnmarshalJSON(b); err != nil {
		return nil, errors.Wrap(err, "unmarshal flame graph")
	}
	return &n, nil
}

// Encode returns the zstd compressed JSON form of the tree.
func Encode(n *Node) ([]byte, error) {
	b, err := Marshal(n)
	if err != nil {
		return nil, errors.Wrap(err, "marshal flame graph")
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b)/4)), nil
}

func Decode(b []byte) (*Node, error) {
	raw, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decompress flame graph")
	}
	return Unmarshal(raw)
}
