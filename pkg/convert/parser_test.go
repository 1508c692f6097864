package convert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/pprof/profile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

func testProfile() *profile.Profile {
	mainFn := &profile.Function{ID: 1, Name: "main.main", Filename: "main.go"}
	workFn := &profile.Function{ID: 2, Name: "main.work", Filename: "work.go"}
	inlFn := &profile.Function{ID: 3, Name: "main.inlined", Filename: "work.go"}
	mainLoc := &profile.Location{ID: 1, Line: []profile.Line{{Function: mainFn, Line: 10}}}
	workLoc := &profile.Location{ID: 2, Line: []profile.Line{
		{Function: inlFn, Line: 30},
		{Function: workFn, Line: 20},
	}}
	return &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}, {Type: "cpu", Unit: "nanoseconds"}},
		Sample: []*profile.Sample{
			{Location: []*profile.Location{workLoc, mainLoc}, Value: []int64{3, 300}},
			{Location: []*profile.Location{mainLoc}, Value: []int64{1, 100}},
			{Location: []*profile.Location{mainLoc}, Value: []int64{0, 0}},
		},
		Location: []*profile.Location{mainLoc, workLoc},
		Function: []*profile.Function{mainFn, workFn, inlFn},
	}
}

var _ = Describe("convert", func() {
	Describe("ParseGroups", func() {
		It("parses data correctly", func() {
			r := bytes.NewReader([]byte("foo;bar 10\nfoo;baz 20\n"))
			result := []string{}
			Expect(ParseGroups(r, func(name []byte, val int) {
				result = append(result, fmt.Sprintf("%s %d", name, val))
			})).To(Succeed())
			Expect(result).To(Equal([]string{"foo;bar 10", "foo;baz 20"}))
		})

		It("skips malformed lines", func() {
			r := strings.NewReader("foo;bar\nfoo;bar x\n 3\nfoo;bar -1\nfoo;bar 0\nfoo;bar 2\r\n\n")
			result := []string{}
			Expect(ParseGroups(r, func(name []byte, val int) {
				result = append(result, fmt.Sprintf("%s %d", name, val))
			})).To(Succeed())
			Expect(result).To(Equal([]string{"foo;bar 2"}))
		})
	})

	Describe("ParseIndividualLines", func() {
		It("counts lines in order of first appearance", func() {
			r := bytes.NewReader([]byte("foo;baz\nfoo;bar\nfoo;baz\n\n"))
			result := []string{}
			Expect(ParseIndividualLines(r, func(name []byte, val int) {
				result = append(result, fmt.Sprintf("%s %d", name, val))
			})).To(Succeed())
			Expect(result).To(Equal([]string{"foo;baz 2", "foo;bar 1"}))
		})
	})

	Describe("FoldedToTree", func() {
		It("builds the tree in order of first appearance", func() {
			root, err := FoldedToTree(strings.NewReader("a;b;c 3\na;t;c 2"))
			Expect(err).ToNot(HaveOccurred())
			Expect(root.Value).To(Equal(int64(5)))
			Expect(root.Children).To(HaveLen(1))

			a := root.Children[0]
			Expect(a.Name).To(Equal("a"))
			Expect(a.Value).To(Equal(int64(5)))
			Expect(a.Children).To(HaveLen(2))
			Expect(a.Children[0].Name).To(Equal("b"))
			Expect(a.Children[0].Value).To(Equal(int64(3)))
			Expect(a.Children[0].Children[0].Name).To(Equal("c"))
			Expect(a.Children[0].Children[0].Value).To(Equal(int64(3)))
			Expect(a.Children[1].Name).To(Equal("t"))
			Expect(a.Children[1].Value).To(Equal(int64(2)))
			Expect(a.Children[1].Children[0].Name).To(Equal("c"))
			Expect(a.Children[1].Children[0].Value).To(Equal(int64(2)))
		})

		It("returns a root-only tree for empty input", func() {
			root, err := FoldedToTree(strings.NewReader(""))
			Expect(err).ToNot(HaveOccurred())
			Expect(root.Value).To(BeZero())
			Expect(root.Children).To(BeEmpty())
		})

		It("is the inverse of Collapsed", func() {
			input := "a;b;c 3\na;b 1\na;t;c 2\nx 4\n"
			root, err := FoldedToTree(strings.NewReader(input))
			Expect(err).ToNot(HaveOccurred())
			Expect(strings.Split(strings.TrimSpace(root.Collapsed()), "\n")).
				To(ConsistOf(strings.Split(strings.TrimSpace(input), "\n")))
		})
	})

	Describe("SamplesFromPprof", func() {
		It("orders frames from the outermost call", func() {
			samples := SamplesFromPprof(testProfile(), 0)
			Expect(samples).To(HaveLen(2))
			Expect(samples[0].Weight).To(Equal(int64(3)))
			Expect(samples[0].Frames).To(HaveLen(3))
			Expect(samples[0].Frames[0].Function).To(Equal("main.main"))
			Expect(samples[0].Frames[1].Function).To(Equal("main.work"))
			Expect(samples[0].Frames[2].Function).To(Equal("main.inlined"))
			Expect(samples[0].Frames[2].Line).To(Equal(30))
		})

		It("ignores out of range value indexes", func() {
			Expect(SamplesFromPprof(testProfile(), 2)).To(BeEmpty())
			Expect(SamplesFromPprof(nil, 0)).To(BeEmpty())
		})

		It("finds sample types by name", func() {
			p := testProfile()
			i, err := PprofValueIndex(p, "cpu")
			Expect(err).ToNot(HaveOccurred())
			Expect(i).To(Equal(1))
			i, err = PprofValueIndex(p, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(i).To(Equal(1))
			_, err = PprofValueIndex(p, "alloc_space")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Convert", func() {
		It("converts folded stacks to JSON", func() {
			var out bytes.Buffer
			Expect(Convert(strings.NewReader("a;b 2\n"), &out, Options{From: FormatFolded, To: FormatJSON})).To(Succeed())
			Expect(out.String()).To(Equal(
				`{"name":"root","value":2,"children":[{"name":"a","value":2,"children":[{"name":"b","value":2,"children":[]}]}]}`))
		})

		It("converts pprof to collapsed stacks", func() {
			var in bytes.Buffer
			Expect(testProfile().Write(&in)).To(Succeed())
			var out bytes.Buffer
			Expect(Convert(&in, &out, Options{From: FormatPprof, To: FormatCollapsed, SampleType: "cpu"})).To(Succeed())
			Expect(out.String()).To(Equal("main.main 100\nmain.main;main.work;main.inlined 300\n"))
		})

		It("reads folded stacks as weighted samples", func() {
			samples, err := ReadSamples(strings.NewReader("a;b 3\nbad\nc 1\n"), Options{})
			Expect(err).ToNot(HaveOccurred())
			Expect(samples).To(HaveLen(2))
			Expect(samples[0].Weight).To(Equal(int64(3)))
			Expect(samples[0].Frames).To(HaveLen(2))
			Expect(samples[0].Frames[1].Function).To(Equal("b"))
			Expect(flamegraph.Build(samples).Collapsed()).To(Equal("a;b 3\nc 1\n"))
		})

		It("converts speedscope profiles", func() {
			in := `{"shared": {"frames": [{"name": "a"}, {"name": "b"}]}, "profiles": [{"type": "sampled", "samples": [[0, 1]], "weights": [7]}]}`
			var out bytes.Buffer
			Expect(Convert(strings.NewReader(in), &out, Options{From: FormatSpeedscope, To: FormatCollapsed})).To(Succeed())
			Expect(out.String()).To(Equal("a;b 7\n"))
		})

		It("rejects unknown formats", func() {
			var out bytes.Buffer
			Expect(Convert(strings.NewReader(""), &out, Options{From: "trie"})).ToNot(Succeed())
			Expect(Convert(strings.NewReader(""), &out, Options{To: "svg"})).ToNot(Succeed())
			_, err := ReadSamples(strings.NewReader(""), Options{From: "trie"})
			Expect(err).To(HaveOccurred())
		})
	})
})
