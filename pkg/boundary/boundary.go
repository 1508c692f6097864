// Package boundary computes the duration a run has to exceed to be kept
// under a quota, and caches it.
package boundary

import (
	"context"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/retention"
	"github.com/grafana/flamekeeper/pkg/store"
)

// Unbounded is the boundary of a reason that keeps no profiles: no duration
// exceeds it.
const Unbounded = time.Duration(math.MaxInt64)

type Store interface {
	TopByDuration(ctx context.Context, f store.Filter, limit, offset int) ([]model.Profile, error)
}

type QuotaSource interface {
	Quota(model.Reason) retention.Quota
}

type Boundaries struct {
	logger  log.Logger
	cache   Cache
	store   Store
	quotas  QuotaSource
	metrics *metrics
}

func New(cache Cache, s Store, quotas QuotaSource, logger log.Logger, reg prometheus.Registerer) *Boundaries {
	if cache == nil {
		cache = NopCache{}
	}
	return &Boundaries{
		logger:  log.With(logger, "component", "boundaries"),
		cache:   cache,
		store:   s,
		quotas:  quotas,
		metrics: newMetrics(reg),
	}
}

// MinDurationFor returns the duration of the slowest profile of the scope
// that would be evicted if one more was kept, or 0 if the quota is not full.
// With useCache unset, the cached value is refreshed from the store.
func (b *Boundaries) MinDurationFor(ctx context.Context, scope string, r model.Reason, useCache bool) (time.Duration, error) {
	f := store.Filter{Scope: &scope, Reason: r, Unlocked: true}
	return b.boundary(ctx, ScopeKey(scope, r), b.quotas.Quota(r).PerScope, f, useCache)
}

// MinDurationForReasonGlobal is MinDurationFor across all scopes.
func (b *Boundaries) MinDurationForReasonGlobal(ctx context.Context, r model.Reason, useCache bool) (time.Duration, error) {
	f := store.Filter{Reason: r, Unlocked: true}
	return b.boundary(ctx, GlobalKey(r), b.quotas.Quota(r).Global, f, useCache)
}

func (b *Boundaries) boundary(ctx context.Context, k Key, quota int, f store.Filter, useCache bool) (time.Duration, error) {
	if quota < 1 {
		return Unbounded, nil
	}
	cached, found := b.get(ctx, k)
	if useCache {
		if found {
			b.metrics.cacheHits.Inc()
			return cached, nil
		}
		b.metrics.cacheMisses.Inc()
	}

	b.metrics.storeQueries.Inc()
	top, err := b.store.TopByDuration(ctx, f, 1, quota-1)
	if err != nil {
		return 0, errors.Wrapf(err, "query boundary %s", k)
	}
	var v time.Duration
	if len(top) > 0 {
		v = top[0].Duration
	}
	if !found || cached != v {
		b.set(ctx, k, v)
	}
	return v, nil
}

func (b *Boundaries) get(ctx context.Context, k Key) (time.Duration, bool) {
	v, ok, err := b.cache.Get(ctx, k)
	if err != nil {
		b.metrics.cacheErrors.Inc()
		level.Warn(b.logger).Log("msg", "failed to read boundary from cache", "key", k, "err", err)
		return 0, false
	}
	return v, ok
}

func (b *Boundaries) set(ctx context.Context, k Key, v time.Duration) {
	if err := b.cache.Set(ctx, k, v); err != nil {
		b.metrics.cacheErrors.Inc()
		level.Warn(b.logger).Log("msg", "failed to write boundary to cache", "key", k, "err", err)
	}
}

// Invalidate drops the cached boundaries of the quota-bound reasons in
// reasons, for the given scopes and globally.
func (b *Boundaries) Invalidate(ctx context.Context, scopes []string, reasons model.Reason) {
	var keys []Key
	for _, r := range reasons.Bits() {
		if !r.QuotaBound() {
			continue
		}
		for _, scope := range lo.Uniq(scopes) {
			keys = append(keys, ScopeKey(scope, r))
		}
		keys = append(keys, GlobalKey(r))
	}
	if len(keys) == 0 {
		return
	}
	if err := b.cache.DeleteMany(ctx, keys); err != nil {
		b.metrics.cacheErrors.Inc()
		level.Warn(b.logger).Log("msg", "failed to invalidate boundaries", "keys", len(keys), "err", err)
		return
	}
	level.Debug(b.logger).Log("msg", "boundaries invalidated", "keys", len(keys))
}
