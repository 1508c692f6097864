package speedscope

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

const frames = `"shared": {"frames": [{"name": "a"}, {"name": "b"}, {"name": "c"}, {"name": "d", "file": "d.go", "line": 7}]}`

func collapsed(input string) string {
	samples, err := Parse(strings.NewReader(input))
	Expect(err).ToNot(HaveOccurred())
	return flamegraph.Build(samples).Collapsed()
}

var _ = Describe("Speedscope", func() {
	It("Can parse an event-format profile", func() {
		Expect(collapsed(`{
			"$schema": "https://www.speedscope.app/file-format-schema.json",
			` + frames + `,
			"profiles": [{
				"type": "evented", "name": "simple", "unit": "none", "startValue": 0, "endValue": 14,
				"events": [
					{"type": "O", "frame": 0, "at": 0},
					{"type": "O", "frame": 1, "at": 0},
					{"type": "O", "frame": 2, "at": 5},
					{"type": "C", "frame": 2, "at": 10},
					{"type": "O", "frame": 3, "at": 10},
					{"type": "C", "frame": 3, "at": 14},
					{"type": "C", "frame": 1, "at": 14},
					{"type": "C", "frame": 0, "at": 14}
				]
			}]
		}`)).To(Equal("a;b 5\na;b;c 5\na;b;d 4\n"))
	})

	It("Can parse a sample-format profile", func() {
		Expect(collapsed(`{
			` + frames + `,
			"profiles": [{
				"type": "sampled", "unit": "none",
				"samples": [[0, 1, 2], [0, 1, 2], [0, 1, 3], [0, 1]],
				"weights": [2, 3, 4, 5]
			}]
		}`)).To(Equal("a;b 5\na;b;c 5\na;b;d 4\n"))
	})

	It("defaults sample weights to one", func() {
		Expect(collapsed(`{` + frames + `, "profiles": [{"type": "sampled", "samples": [[0], [0], [1]]}]}`)).
			To(Equal("a 2\nb 1\n"))
	})

	DescribeTable("rejects invalid profiles",
		func(profiles string) {
			_, err := Parse(strings.NewReader(`{` + frames + `, "profiles": [` + profiles + `]}`))
			Expect(err).To(HaveOccurred())
		},
		Entry("unknown type", `{"type": "chrome"}`),
		Entry("frame out of range", `{"type": "sampled", "samples": [[9]]}`),
		Entry("weights length", `{"type": "sampled", "samples": [[0]], "weights": [1, 2]}`),
		Entry("unbalanced close", `{"type": "evented", "events": [{"type": "O", "frame": 0, "at": 0}, {"type": "C", "frame": 1, "at": 1}]}`),
		Entry("events out of order", `{"type": "evented", "events": [{"type": "O", "frame": 0, "at": 5}, {"type": "C", "frame": 0, "at": 1}]}`),
	)

	It("rejects malformed JSON", func() {
		_, err := Parse(strings.NewReader(`{"profiles": [`))
		Expect(err).To(HaveOccurred())
	})
})
