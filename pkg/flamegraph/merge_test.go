package flamegraph_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

var _ = Describe("Merge", func() {
	var a, b *flamegraph.Node

	BeforeEach(func() {
		a = flamegraph.Build([]flamegraph.Sample{stack("a", "b"), stack("a", "c"), stack("a", "c")})
		b = flamegraph.Build([]flamegraph.Sample{stack("a", "d"), stack("a", "b"), stack("e")})
	})

	It("sums matching nodes and appends the others", func() {
		m := flamegraph.Merge(a, b)
		Expect(m.Value).To(Equal(int64(6)))
		Expect(m.Collapsed()).To(Equal("a;b 2\na;c 2\na;d 1\ne 1\n"))
	})

	It("does not modify its inputs", func() {
		before := a.Clone()
		m := flamegraph.Merge(a, b)
		m.Children[0].Value = 100
		Expect(a.Equal(before)).To(BeTrue())
		Expect(b.Child("e")).NotTo(BeNil())
		Expect(b.Value).To(Equal(int64(3)))
	})

	It("handles nil trees", func() {
		Expect(flamegraph.Merge(nil, b).Equal(b)).To(BeTrue())
		Expect(flamegraph.Merge(a, nil).Equal(a)).To(BeTrue())
	})

	It("merges in place without sharing nodes", func() {
		a.MergeFrom(b)
		Expect(a.Value).To(Equal(int64(6)))
		a.Child("e").Value = 10
		Expect(b.Child("e").Value).To(Equal(int64(1)))
	})

	It("matches the tree built from both sample sets", func() {
		all := flamegraph.Build([]flamegraph.Sample{
			stack("a", "b"), stack("a", "c"), stack("a", "c"),
			stack("a", "d"), stack("a", "b"), stack("e"),
		})
		Expect(flamegraph.Merge(a, b).Equal(all)).To(BeTrue())
	})
})

var _ = Describe("Collapsed", func() {
	It("renders self values", func() {
		root := flamegraph.Build([]flamegraph.Sample{stack("a", "b"), stack("a"), stack("a", "b", "c")})
		Expect(root.Collapsed()).To(Equal("a 1\na;b 1\na;b;c 1\n"))
	})

	It("is empty for an empty tree", func() {
		Expect(flamegraph.NewRoot().Collapsed()).To(BeEmpty())
	})
})
