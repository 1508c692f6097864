package flamegraph_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

var _ = Describe("codec", func() {
	It("renders children as arrays", func() {
		root := flamegraph.Build([]flamegraph.Sample{stack("a")})
		b, err := flamegraph.Marshal(root)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(b)).To(Equal(`{"name":"root","value":1,"children":[{"name":"a","value":1,"children":[]}]}`))
	})

	It("round trips through JSON", func() {
		root := &flamegraph.Node{Name: "root", Value: 3, Children: []*flamegraph.Node{
			{Name: "z", Value: 2, Children: []*flamegraph.Node{{Name: "zero", Value: 0}}},
			{Name: "a", Value: 1},
		}}
		b, err := flamegraph.Marshal(root)
		Expect(err).ToNot(HaveOccurred())
		decoded, err := flamegraph.Unmarshal(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Equal(root)).To(BeTrue())
	})

	It("round trips through the compressed form", func() {
		r := rand.New(rand.NewSource(1))
		for i := 0; i < 10; i++ {
			root := flamegraph.Build(randomSamples(r, 500))
			b, err := flamegraph.Encode(root)
			Expect(err).ToNot(HaveOccurred())
			decoded, err := flamegraph.Decode(b)
			Expect(err).ToNot(HaveOccurred())
			Expect(decoded.Equal(root)).To(BeTrue())
		}
	})

	It("encodes a nil tree as an empty root", func() {
		b, err := flamegraph.Encode(nil)
		Expect(err).ToNot(HaveOccurred())
		decoded, err := flamegraph.Decode(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Equal(flamegraph.NewRoot())).To(BeTrue())
	})

	It("rejects corrupted input", func() {
		_, err := flamegraph.Decode([]byte("not zstd"))
		Expect(err).To(HaveOccurred())
		_, err = flamegraph.Unmarshal([]byte("{"))
		Expect(err).To(HaveOccurred())
	})
})
