package sqlstore_test

import (
	"context"
	"time"

	"github.com/go-kit/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/sqlstore"
	"github.com/grafana/flamekeeper/pkg/store"
	"github.com/grafana/flamekeeper/pkg/store/storetest"
)

var _ = Describe("SQLStore", func() {
	s := new(testSuite)
	BeforeEach(s.BeforeEach)
	AfterEach(s.AfterEach)

	It("creates the schema", func() {
		m := s.db.DB().Migrator()
		Expect(m.HasTable(&model.Profile{})).To(BeTrue())
		for _, c := range []string{"groupby", "reason", "lock_reason", "flame_data", "db_reads", "memory_peak"} {
			Expect(m.HasColumn(&model.Profile{}, c)).To(BeTrue(), c)
		}
		Expect(s.db.Ping(context.Background())).To(Succeed())
	})

	It("keeps data across restarts", func() {
		ctx := context.Background()
		p := storetest.Profile("/checkout", 2*time.Second, model.ReasonSlow)
		Expect(p.AttachFlameGraph(flamegraph.Build([]flamegraph.Sample{
			{Frames: []flamegraph.Frame{{Class: "Cart", Function: "total"}}},
		}))).To(Succeed())
		id, err := s.db.Insert(ctx, p)
		Expect(err).ToNot(HaveOccurred())

		s.reopen()

		got, err := s.db.Get(ctx, id)
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Scope).To(Equal("/checkout"))
		Expect(got.MaxStackDepth).To(Equal(1))
		root, err := got.FlameGraph()
		Expect(err).ToNot(HaveOccurred())
		Expect(root.Child("Cart::total")).ToNot(BeNil())
	})

	It("clears reasons in batches", func() {
		ctx := context.Background()
		profiles := make([]*model.Profile, 600)
		for i := range profiles {
			profiles[i] = storetest.Profile("/a", time.Duration(i), model.ReasonSlow|model.ReasonManual)
		}
		ids := storetest.Insert(GinkgoT(), s.db, profiles...)

		n, err := s.db.ClearReason(ctx, store.Filter{IDs: ids}, model.ReasonSlow)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(600)))

		n, err = s.db.CountDistinct(ctx, store.FieldScope, store.Filter{Reason: model.ReasonSlow})
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(BeZero())

		n, err = s.db.DeleteWhere(ctx, store.Filter{IDs: ids})
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(600)))
	})

	It("rejects unknown database types", func() {
		_, err := sqlstore.Open(sqlstore.Config{Type: "oracle", URL: "x"}, log.NewNopLogger())
		Expect(err).To(MatchError(ContainSubstring("unknown db type")))
	})
})
