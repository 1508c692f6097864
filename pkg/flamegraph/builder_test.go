package flamegraph_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

func stack(names ...string) flamegraph.Sample {
	frames := make([]flamegraph.Frame, len(names))
	for i, n := range names {
		frames[i] = flamegraph.Frame{Function: n}
	}
	return flamegraph.Sample{Frames: frames}
}

func randomSamples(r *rand.Rand, n int) []flamegraph.Sample {
	names := []string{"main", "run", "handle", "query", "render", "parse"}
	samples := make([]flamegraph.Sample, n)
	for i := range samples {
		depth := r.Intn(6)
		frames := make([]string, depth)
		for j := range frames {
			frames[j] = names[r.Intn(len(names))]
		}
		samples[i] = stack(frames...)
		samples[i].Weight = int64(r.Intn(3))
	}
	return samples
}

var _ = Describe("Build", func() {
	It("returns a root-only tree for empty input", func() {
		root := flamegraph.Build(nil)
		Expect(root.Name).To(Equal(flamegraph.RootName))
		Expect(root.Value).To(BeZero())
		Expect(root.Children).To(BeEmpty())
		Expect(root.Depth()).To(BeZero())
	})

	It("folds stacks from the outermost frame", func() {
		root := flamegraph.Build([]flamegraph.Sample{
			stack("a", "b", "c"),
			stack("a", "b"),
			stack("a", "t", "c"),
			stack("x"),
		})
		Expect(root.Value).To(Equal(int64(4)))
		Expect(root.Children).To(HaveLen(2))

		a := root.Children[0]
		Expect(a.Name).To(Equal("a"))
		Expect(a.Value).To(Equal(int64(3)))
		Expect(a.Children[0].Name).To(Equal("b"))
		Expect(a.Children[0].Value).To(Equal(int64(2)))
		Expect(a.Children[0].Self()).To(Equal(int64(1)))
		Expect(a.Children[1].Name).To(Equal("t"))
		Expect(root.Children[1].Name).To(Equal("x"))
		Expect(root.Depth()).To(Equal(3))
	})

	It("keeps children in first-seen order", func() {
		root := flamegraph.Build([]flamegraph.Sample{stack("z"), stack("a"), stack("m"), stack("a")})
		var names []string
		for _, c := range root.Children {
			names = append(names, c.Name)
		}
		Expect(names).To(Equal([]string{"z", "a", "m"}))
	})

	It("adds sample weights", func() {
		s := stack("a", "b")
		s.Weight = 5
		root := flamegraph.Build([]flamegraph.Sample{s, stack("a")})
		Expect(root.Value).To(Equal(int64(6)))
		Expect(root.Child("a").Child("b").Value).To(Equal(int64(5)))
	})

	It("counts samples without frames at the root", func() {
		root := flamegraph.Build([]flamegraph.Sample{{}, stack("a")})
		Expect(root.Value).To(Equal(int64(2)))
		Expect(root.Child("a").Value).To(Equal(int64(1)))
	})

	It("conserves the total weight", func() {
		r := rand.New(rand.NewSource(42))
		for i := 0; i < 20; i++ {
			samples := randomSamples(r, r.Intn(200))
			var total int64
			for _, s := range samples {
				if s.Weight < 1 {
					total++
				} else {
					total += s.Weight
				}
			}
			Expect(flamegraph.Build(samples).Value).To(Equal(total))
		}
	})

	It("does not depend on the order of samples beyond child order", func() {
		r := rand.New(rand.NewSource(7))
		samples := randomSamples(r, 300)
		shuffled := append([]flamegraph.Sample(nil), samples...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		a := flamegraph.Build(samples).Collapsed()
		b := flamegraph.Build(shuffled).Collapsed()
		Expect(lines(b)).To(ConsistOf(lines(a)))
	})

	It("folds closures of the same file unless lines are enabled", func() {
		samples := []flamegraph.Sample{
			{Frames: []flamegraph.Frame{{File: "app.php", Line: 10}}},
			{Frames: []flamegraph.Frame{{File: "app.php", Line: 20}}},
		}
		Expect(flamegraph.Build(samples).Children).To(HaveLen(1))

		root := flamegraph.Build(samples, flamegraph.WithFileLines(true))
		Expect(root.Children).To(HaveLen(2))
		Expect(root.Children[0].Name).To(Equal("app.php:10"))
		Expect(root.Children[1].Name).To(Equal("app.php:20"))
	})

	It("lets the builder take named stacks", func() {
		b := flamegraph.NewBuilder()
		b.AddStack([]string{"a", "b"}, 3)
		b.AddStack([]string{"a"}, 0)
		Expect(b.Root().Value).To(Equal(int64(4)))
		Expect(b.Root().Child("a").Self()).To(Equal(int64(1)))
	})
})

var _ = DescribeTable("FrameName",
	func(f flamegraph.Frame, withLines bool, expected string) {
		Expect(flamegraph.FrameName(f, withLines)).To(Equal(expected))
	},
	Entry("class and function", flamegraph.Frame{Class: "Foo", Function: "bar", File: "f.php"}, false, "Foo::bar"),
	Entry("function only", flamegraph.Frame{Function: "bar", File: "f.php", Line: 3}, true, "bar"),
	Entry("class without function", flamegraph.Frame{Class: "Foo", File: "f.php"}, false, "f.php"),
	Entry("file", flamegraph.Frame{File: "f.php", Line: 3}, false, "f.php"),
	Entry("file with line", flamegraph.Frame{File: "f.php", Line: 3}, true, "f.php:3"),
	Entry("file without line", flamegraph.Frame{File: "f.php"}, true, "f.php"),
	Entry("nothing", flamegraph.Frame{Line: 3}, true, flamegraph.UnknownFrame),
)
