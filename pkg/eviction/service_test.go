package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/retention"
	"github.com/grafana/flamekeeper/pkg/store/memstore"
	"github.com/grafana/flamekeeper/pkg/store/storetest"
)

type quotas retention.Quota

func (q quotas) Quota(model.Reason) retention.Quota { return retention.Quota(q) }

func TestService_Trigger(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	s := memstore.New()
	old := storetest.Profile("/a", 10*time.Second, model.ReasonSlow)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	storetest.Insert(t, s,
		old,
		storetest.Profile("/a", 1*time.Second, model.ReasonSlow),
		storetest.Profile("/a", 2*time.Second, model.ReasonSlow),
		storetest.Profile("/a", 3*time.Second, model.ReasonSlow),
		storetest.Profile("/b", 1*time.Second, model.ReasonSlow),
	)

	engine := NewEngine(s, new(recordingInvalidator), log.NewNopLogger(), prometheus.NewRegistry())
	svc := NewService(Config{Interval: time.Hour, ExpiryAge: 24 * time.Hour}, engine, quotas{PerScope: 2, Global: 2}, log.NewNopLogger())
	require.NoError(t, services.StartAndAwaitRunning(ctx, svc))

	svc.Trigger()
	svc.Trigger()
	// Expiry removes the old profile, the per-scope pass the fastest one
	// of /a, and the global pass everything but the two slowest.
	assert.Eventually(t, func() bool { return s.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, services.StopAndAwaitTerminated(ctx, svc))
}

func TestService_StopIdle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	engine := NewEngine(memstore.New(), new(recordingInvalidator), log.NewNopLogger(), prometheus.NewRegistry())
	svc := NewService(Config{Interval: time.Hour}, engine, quotas{PerScope: 1, Global: 1}, log.NewNopLogger())
	require.NoError(t, services.StartAndAwaitRunning(ctx, svc))
	require.NoError(t, services.StopAndAwaitTerminated(ctx, svc))
	assert.Equal(t, services.Terminated, svc.State())

	// Requests made once stopped are dropped without blocking.
	svc.Trigger()
	svc.Trigger()
}

func TestService_RunOnce(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	ids := storetest.Insert(t, s,
		storetest.Profile("/a", 1*time.Second, model.ReasonSlow|model.ReasonManual),
		storetest.Profile("/a", 2*time.Second, model.ReasonSlow),
	)
	engine := NewEngine(s, new(recordingInvalidator), log.NewNopLogger(), nil)
	svc := NewService(Config{Interval: time.Hour}, engine, quotas{PerScope: 1, Global: 10}, log.NewNopLogger())

	require.NoError(t, svc.RunOnce(ctx))
	assert.Equal(t, model.ReasonManual, reasonOf(t, s, ids[0]))
	assert.Equal(t, model.ReasonSlow, reasonOf(t, s, ids[1]))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{Interval: time.Minute}).Validate())
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Interval: time.Minute, ExpiryAge: -1}).Validate())
}
