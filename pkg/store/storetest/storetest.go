// Package storetest holds the behaviour every store.Store implementation
// must have.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/store"
)

// Profile returns a valid profile for tests.
func Profile(scope string, d time.Duration, r model.Reason) *model.Profile {
	return &model.Profile{
		Scope:      scope,
		ScriptType: model.ScriptTypeWeb,
		Path:       scope,
		Duration:   d,
		Reason:     r,
	}
}

type T interface {
	require.TestingT
	Helper()
}

// Insert adds the profiles and returns their ids.
func Insert(t T, s store.Store, profiles ...*model.Profile) []int64 {
	t.Helper()
	ids := make([]int64, len(profiles))
	for i, p := range profiles {
		id, err := s.Insert(context.Background(), p)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func ids(profiles []model.Profile) []int64 {
	r := make([]int64, len(profiles))
	for i, p := range profiles {
		r[i] = p.ID
	}
	return r
}

// Run runs the conformance tests against stores created by newStore.
// Every call to newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		s := newStore(t)
		p := Profile("/a", time.Second, model.ReasonSlow)
		p.Parameters = "q=1"
		require.NoError(t, p.AttachFlameGraph(flamegraph.Build([]flamegraph.Sample{
			{Frames: []flamegraph.Frame{{Function: "main"}}},
		})))
		id, err := s.Insert(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
		assert.NotEmpty(t, p.RequestID)
		assert.False(t, p.CreatedAt.IsZero())

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "/a", got.Scope)
		assert.Equal(t, time.Second, got.Duration)
		assert.Equal(t, model.ReasonSlow, got.Reason)
		assert.Equal(t, "q=1", got.Parameters)
		assert.Nil(t, got.FinishedAt)
		root, err := got.FlameGraph()
		require.NoError(t, err)
		assert.Equal(t, int64(1), root.Value)

		_, err = s.Get(ctx, id+100)
		assert.True(t, model.IsNotFoundError(err))
	})

	t.Run("InsertAssignsIncreasingIDs", func(t *testing.T) {
		s := newStore(t)
		got := Insert(t, s,
			Profile("/a", time.Second, model.ReasonSlow),
			Profile("/a", time.Second, model.ReasonSlow),
		)
		assert.Greater(t, got[1], got[0])
	})

	t.Run("InsertRejectsInvalidProfiles", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Insert(ctx, Profile("/a", time.Second, model.ReasonNone))
		assert.True(t, model.IsValidationError(err))
		_, err = s.Insert(ctx, Profile("", time.Second, model.ReasonSlow))
		assert.True(t, model.IsValidationError(err))
	})

	t.Run("Update", func(t *testing.T) {
		s := newStore(t)
		id := Insert(t, s, Profile("/a", time.Second, model.ReasonSlow))[0]
		d := 3 * time.Second
		finished := time.Now().Truncate(time.Millisecond)
		u := model.ProfileUpdate{Duration: &d}.
			SetReason(model.ReasonSlow | model.ReasonManual).
			SetFinishedAt(finished)
		u.FlameGraph = flamegraph.Build([]flamegraph.Sample{{}, {}})
		require.NoError(t, s.Update(ctx, id, u))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, d, got.Duration)
		assert.Equal(t, model.ReasonSlow|model.ReasonManual, got.Reason)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, finished.Equal(*got.FinishedAt))
		assert.Equal(t, int64(2), got.SampleCount)

		assert.True(t, model.IsNotFoundError(s.Update(ctx, id+100, u)))
		assert.True(t, model.IsValidationError(s.Update(ctx, id, model.ProfileUpdate{}.SetReason(model.ReasonNone))))
	})

	t.Run("TopByDurationRanking", func(t *testing.T) {
		s := newStore(t)
		got := Insert(t, s,
			Profile("/a", 1*time.Second, model.ReasonSlow),
			Profile("/a", 3*time.Second, model.ReasonSlow),
			Profile("/b", 2*time.Second, model.ReasonSlow),
			Profile("/a", 3*time.Second, model.ReasonSlow|model.ReasonManual),
			Profile("/a", 5*time.Second, model.ReasonManual),
		)

		top, err := s.TopByDuration(ctx, store.Filter{Reason: model.ReasonSlow}, -1, 0)
		require.NoError(t, err)
		// Ties are broken by id, newest first.
		assert.Equal(t, []int64{got[3], got[1], got[2], got[0]}, ids(top))

		top, err = s.TopByDuration(ctx, store.Filter{Reason: model.ReasonSlow, Scope: model.String("/a")}, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{got[1]}, ids(top))

		top, err = s.TopByDuration(ctx, store.Filter{Reason: model.ReasonSlow}, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, top)

		top, err = s.TopByDuration(ctx, store.Filter{}, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, top)
	})

	t.Run("TopByDurationOmitsFlameData", func(t *testing.T) {
		s := newStore(t)
		p := Profile("/a", time.Second, model.ReasonSlow)
		require.NoError(t, p.AttachFlameGraph(flamegraph.NewRoot()))
		Insert(t, s, p)
		top, err := s.TopByDuration(ctx, store.Filter{}, -1, 0)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Nil(t, top[0].FlameData)
		assert.Equal(t, p.DataSize, top[0].DataSize)
	})

	t.Run("ClearReasonSkipsLocked", func(t *testing.T) {
		s := newStore(t)
		locked := Profile("/a", time.Second, model.ReasonSlow)
		locked.LockReason = "incident"
		got := Insert(t, s,
			Profile("/a", time.Second, model.ReasonSlow|model.ReasonManual),
			locked,
			Profile("/a", time.Second, model.ReasonManual),
		)

		n, err := s.ClearReason(ctx, store.Filter{IDs: got, Unlocked: true}, model.ReasonSlow)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		p, err := s.Get(ctx, got[0])
		require.NoError(t, err)
		assert.Equal(t, model.ReasonManual, p.Reason)
		p, err = s.Get(ctx, got[1])
		require.NoError(t, err)
		assert.Equal(t, model.ReasonSlow, p.Reason)
	})

	t.Run("DeleteWhere", func(t *testing.T) {
		s := newStore(t)
		locked := Profile("/a", time.Second, model.ReasonSlow)
		locked.LockReason = "incident"
		old := Profile("/a", time.Second, model.ReasonSlow)
		old.CreatedAt = time.Now().Add(-48 * time.Hour)
		got := Insert(t, s,
			Profile("/a", time.Second, model.ReasonSlow),
			locked,
			old,
		)

		n, err := s.DeleteWhere(ctx, store.Filter{IDs: []int64{}})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.DeleteWhere(ctx, store.Filter{CreatedBefore: time.Now().Add(-time.Hour), Unlocked: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = s.Get(ctx, got[2])
		assert.True(t, model.IsNotFoundError(err))

		n, err = s.DeleteWhere(ctx, store.Filter{Unlocked: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = s.Get(ctx, got[1])
		assert.NoError(t, err)
	})

	t.Run("NoReasonFilter", func(t *testing.T) {
		s := newStore(t)
		got := Insert(t, s,
			Profile("/a", time.Second, model.ReasonSlow),
			Profile("/a", time.Second, model.ReasonSlow|model.ReasonManual),
		)
		_, err := s.ClearReason(ctx, store.Filter{IDs: got}, model.ReasonSlow)
		require.NoError(t, err)
		n, err := s.DeleteWhere(ctx, store.Filter{IDs: got, NoReason: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = s.Get(ctx, got[1])
		assert.NoError(t, err)
	})

	t.Run("Aggregates", func(t *testing.T) {
		s := newStore(t)
		cli := Profile("console", 4*time.Second, model.ReasonSlow)
		cli.ScriptType = model.ScriptTypeCLI
		Insert(t, s,
			Profile("/a", 1*time.Second, model.ReasonSlow),
			Profile("/a", 2*time.Second, model.ReasonSlow),
			Profile("/b", 3*time.Second, model.ReasonManual),
			cli,
		)

		n, err := s.CountDistinct(ctx, store.FieldScope, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		n, err = s.CountDistinct(ctx, store.FieldScope, store.Filter{Reason: model.ReasonSlow})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		groups, err := s.SumGroupBy(ctx, store.FieldScope, store.FieldDuration, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []store.Group{
			{Key: "/a", Count: 2, Sum: float64(3 * time.Second)},
			{Key: "/b", Count: 1, Sum: float64(3 * time.Second)},
			{Key: "console", Count: 1, Sum: float64(4 * time.Second)},
		}, groups)

		groups, err = s.SumGroupBy(ctx, store.FieldScriptType, store.FieldDuration, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"cli", "web"}, []string{groups[0].Key, groups[1].Key})

		_, err = s.SumGroupBy(ctx, store.FieldScope, store.FieldScope, store.Filter{})
		assert.True(t, model.IsValidationError(err))
		_, err = s.CountDistinct(ctx, store.Field("reason; drop table"), store.Filter{})
		assert.True(t, model.IsValidationError(err))
	})
}
