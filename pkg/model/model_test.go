package model_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
)

var _ = Describe("Reason", func() {
	It("renders labels", func() {
		Expect(model.ReasonNone.String()).To(Equal("none"))
		Expect((model.ReasonSlow | model.ReasonManual).String()).To(Equal("manual,slow"))
		Expect(model.Reason(0x30).String()).To(Equal("0x30"))
	})

	It("parses labels", func() {
		r, err := model.ParseReason("slow, StackDepth")
		Expect(err).ToNot(HaveOccurred())
		Expect(r).To(Equal(model.ReasonSlow | model.ReasonStackDepth))

		r, err = model.ParseReason("")
		Expect(err).ToNot(HaveOccurred())
		Expect(r).To(Equal(model.ReasonNone))

		_, err = model.ParseReason("slow,fast")
		Expect(model.IsValidationError(err)).To(BeTrue())
	})

	It("splits into bits", func() {
		r := model.ReasonAll.Without(model.ReasonSlow)
		Expect(r.Has(model.ReasonSlow)).To(BeFalse())
		Expect(r.Bits()).To(Equal([]model.Reason{model.ReasonManual, model.ReasonFlameAll, model.ReasonStackDepth}))
	})

	It("describes variants", func() {
		Expect(model.ReasonSlow.QuotaBound()).To(BeTrue())
		Expect(model.ReasonSlow.Info().QuotaKey).To(Equal("slow"))
		for _, info := range model.Reasons() {
			Expect(info.CacheKey).ToNot(BeEmpty())
			if info.Reason != model.ReasonSlow {
				Expect(info.Reason.QuotaBound()).To(BeFalse())
			}
		}
		Expect((model.ReasonSlow | model.ReasonManual).QuotaBound()).To(BeFalse())
	})

	It("drops quota-bound reasons", func() {
		Expect((model.ReasonSlow | model.ReasonManual | model.ReasonStackDepth).WithoutQuotaBound()).
			To(Equal(model.ReasonManual | model.ReasonStackDepth))
		Expect(model.ReasonSlow.WithoutQuotaBound()).To(Equal(model.ReasonNone))
	})
})

var _ = Describe("Profile", func() {
	It("sets derived fields from the flame graph", func() {
		var p model.Profile
		root := flamegraph.Build([]flamegraph.Sample{
			{Frames: []flamegraph.Frame{{Function: "a"}, {Function: "b"}}},
			{Frames: []flamegraph.Frame{{Function: "a"}}},
		})
		Expect(p.AttachFlameGraph(root)).To(Succeed())
		Expect(p.SampleCount).To(Equal(int64(2)))
		Expect(p.MaxStackDepth).To(Equal(2))
		Expect(p.DataSize).To(Equal(len(p.FlameData)))

		decoded, err := p.FlameGraph()
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Equal(root)).To(BeTrue())
	})

	It("returns an empty tree when no data is attached", func() {
		var p model.Profile
		root, err := p.FlameGraph()
		Expect(err).ToNot(HaveOccurred())
		Expect(root.Value).To(BeZero())
	})

	It("validates", func() {
		p := model.Profile{Scope: "/", Reason: model.ReasonSlow}
		Expect(p.Validate()).To(Succeed())

		err := (&model.Profile{ScriptType: "daemon"}).Validate()
		Expect(err).To(MatchError(ContainSubstring("scope can't be empty")))
		Expect(err).To(MatchError(ContainSubstring("at least one retention reason")))
		Expect(err).To(MatchError(ContainSubstring(`unknown script type "daemon"`)))
	})

	It("generates request ids", func() {
		p := model.Profile{RequestID: "abc"}
		p.EnsureRequestID()
		Expect(p.RequestID).To(Equal("abc"))
		p.RequestID = ""
		p.EnsureRequestID()
		Expect(p.RequestID).To(HaveLen(36))
	})

	It("applies updates", func() {
		p := model.Profile{Reason: model.ReasonSlow, Duration: time.Second}
		now := time.Now()
		u := model.ProfileUpdate{}.
			SetReason(model.ReasonSlow | model.ReasonManual).
			SetLockReason("incident").
			SetFinishedAt(now)
		Expect(u.Validate()).To(Succeed())
		Expect(u.Apply(&p)).To(Succeed())
		Expect(p.Reason).To(Equal(model.ReasonSlow | model.ReasonManual))
		Expect(p.Locked()).To(BeTrue())
		Expect(p.Finished()).To(BeTrue())
		Expect(p.Duration).To(Equal(time.Second))

		expectErrOrNil(model.ProfileUpdate{}.SetReason(model.ReasonNone).Validate(), model.ErrProfileNoReason)
	})
})

var _ = DescribeTable("NormalizeScope",
	func(path, expected string) {
		Expect(model.NormalizeScope(path)).To(Equal(expected))
	},
	Entry("empty", "", "/"),
	Entry("root", "/", "/"),
	Entry("query string", "/search?q=1#top", "/search"),
	Entry("only a query", "?q=1", "/"),
	Entry("duplicate slashes", "//api///users/", "/api/users/"),
	Entry("numeric segment", "/users/42/posts/7", "/users/*/posts/*"),
	Entry("hex segment", "/blob/0123456789abcdef0123", "/blob/*"),
	Entry("short hex segment", "/blob/cafe", "/blob/cafe"),
	Entry("uuid segment", "/orders/123e4567-e89b-12d3-a456-426614174000", "/orders/*"),
	Entry("script", "bin/console", "bin/console"),
)

var _ = DescribeTable("RedactParameters",
	func(raw string, expected string) {
		Expect(model.RedactParameters(raw, []string{"password", "token"})).To(Equal(expected))
	},
	Entry("empty", "", ""),
	Entry("sorted", "?b=2&a=1", "a=1&b=2"),
	Entry("sensitive", "user=joe&Password=secret&token=a&token=b", "Password=redacted&token=redacted&token=redacted&user=joe"),
	Entry("unparsable", "a=%zz", ""),
)
