// Package eviction keeps the stored profiles within their quotas.
package eviction

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/store"
)

// ExpiryBatchSize is the number of profiles deleted per statement by
// PurgeOlderThan.
const ExpiryBatchSize = 1024

// Invalidator drops cached boundaries affected by a change.
type Invalidator interface {
	Invalidate(ctx context.Context, scopes []string, reasons model.Reason)
}

// Stripped reports the outcome of a reason removal.
type Stripped struct {
	// Cleared is the number of profiles the reason was removed from.
	Cleared int64
	// Deleted is the number of profiles deleted because they had no
	// reason left.
	Deleted int64
}

func (s *Stripped) add(o Stripped) {
	s.Cleared += o.Cleared
	s.Deleted += o.Deleted
}

// Engine removes profiles and retention reasons. Locked profiles are never
// modified: every statement it issues is restricted to unlocked rows.
type Engine struct {
	logger      log.Logger
	store       store.Store
	invalidator Invalidator
	metrics     *metrics
}

func NewEngine(s store.Store, invalidator Invalidator, logger log.Logger, reg prometheus.Registerer) *Engine {
	return &Engine{
		logger:      log.With(logger, "component", "eviction"),
		store:       s,
		invalidator: invalidator,
		metrics:     newMetrics(reg),
	}
}

// PurgeFastestByScope removes the slow reason from the fastest profiles of
// every scope holding more than keep of them. It returns the number of
// profiles stripped.
func (e *Engine) PurgeFastestByScope(ctx context.Context, keep int) (int, error) {
	groups, err := e.store.SumGroupBy(ctx, store.FieldScope, store.FieldDuration,
		store.Filter{Reason: model.ReasonSlow, Unlocked: true})
	if err != nil {
		e.metrics.failures.WithLabelValues(passScope).Inc()
		return 0, errors.Wrap(err, "list scopes")
	}
	var (
		total Stripped
		errs  = multierror.New()
	)
	for _, g := range groups {
		if g.Count <= int64(max(keep, 0)) {
			continue
		}
		if err = ctx.Err(); err != nil {
			errs.Add(err)
			break
		}
		scope := g.Key
		s, err := e.purgeFastest(ctx, store.Filter{Scope: &scope}, keep, passScope)
		total.add(s)
		if err != nil {
			errs.Add(errors.Wrapf(err, "scope %q", scope))
		}
	}
	if err = errs.Err(); err != nil {
		e.metrics.failures.WithLabelValues(passScope).Inc()
	}
	return int(total.Cleared), err
}

// PurgeFastestGlobal removes the slow reason from every profile but the keep
// slowest ones. It returns the number of profiles stripped.
func (e *Engine) PurgeFastestGlobal(ctx context.Context, keep int) (int, error) {
	s, err := e.purgeFastest(ctx, store.Filter{}, keep, passGlobal)
	if err != nil {
		e.metrics.failures.WithLabelValues(passGlobal).Inc()
	}
	return int(s.Cleared), err
}

func (e *Engine) purgeFastest(ctx context.Context, f store.Filter, keep int, pass string) (Stripped, error) {
	f.Reason = model.ReasonSlow
	f.Unlocked = true
	victims, err := e.store.TopByDuration(ctx, f, -1, max(keep, 0))
	if err != nil {
		return Stripped{}, errors.Wrap(err, "select profiles")
	}
	s, err := e.removeReason(ctx, victims, model.ReasonSlow, pass)
	if s.Cleared > 0 {
		level.Debug(e.logger).Log("msg", "purged fastest profiles", "pass", pass, "keep", keep, "stripped", s.Cleared, "deleted", s.Deleted)
	}
	return s, err
}

// RemoveReason removes the reason from the given profiles, and deletes the
// ones left with no reason. Locked profiles are skipped.
func (e *Engine) RemoveReason(ctx context.Context, ids []int64, r model.Reason) (Stripped, error) {
	if len(ids) == 0 || r == model.ReasonNone {
		return Stripped{}, nil
	}
	profiles, err := e.store.TopByDuration(ctx, store.Filter{IDs: ids, Reason: r, Unlocked: true}, -1, 0)
	if err != nil {
		return Stripped{}, errors.Wrap(err, "select profiles")
	}
	return e.removeReason(ctx, profiles, r, passManual)
}

func (e *Engine) removeReason(ctx context.Context, profiles []model.Profile, r model.Reason, pass string) (Stripped, error) {
	if len(profiles) == 0 {
		return Stripped{}, nil
	}
	ids := make([]int64, len(profiles))
	scopes := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		scopes[i] = p.Scope
	}
	// Boundaries are invalidated even if a statement fails.
	defer e.invalidator.Invalidate(ctx, lo.Uniq(scopes), r)

	var (
		s   Stripped
		err error
	)
	f := store.Filter{IDs: ids, Unlocked: true}
	if s.Cleared, err = e.store.ClearReason(ctx, f, r); err != nil {
		return s, errors.Wrap(err, "clear reason")
	}
	e.metrics.stripped.WithLabelValues(pass).Add(float64(s.Cleared))
	f.NoReason = true
	if s.Deleted, err = e.store.DeleteWhere(ctx, f); err != nil {
		return s, errors.Wrap(err, "delete profiles")
	}
	e.metrics.deleted.WithLabelValues(pass).Add(float64(s.Deleted))
	return s, nil
}

// PurgeOlderThan deletes the unlocked profiles created before cutoff,
// whatever their reasons. It returns the number of profiles deleted.
func (e *Engine) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var (
		deleted int64
		scopes  []string
		reasons model.Reason
	)
	defer func() {
		if len(scopes) > 0 {
			e.invalidator.Invalidate(ctx, lo.Uniq(scopes), reasons)
		}
		e.metrics.deleted.WithLabelValues(passExpiry).Add(float64(deleted))
	}()

	f := store.Filter{CreatedBefore: cutoff, Unlocked: true}
	for {
		if err := ctx.Err(); err != nil {
			return int(deleted), err
		}
		batch, err := e.store.TopByDuration(ctx, f, ExpiryBatchSize, 0)
		if err != nil {
			e.metrics.failures.WithLabelValues(passExpiry).Inc()
			return int(deleted), errors.Wrap(err, "select expired profiles")
		}
		if len(batch) == 0 {
			break
		}
		ids := make([]int64, len(batch))
		for i, p := range batch {
			ids[i] = p.ID
			scopes = append(scopes, p.Scope)
			reasons |= p.Reason
		}
		n, err := e.store.DeleteWhere(ctx, store.Filter{IDs: ids, CreatedBefore: cutoff, Unlocked: true})
		deleted += n
		if err != nil {
			e.metrics.failures.WithLabelValues(passExpiry).Inc()
			return int(deleted), errors.Wrap(err, "delete expired profiles")
		}
		if n == 0 || len(batch) < ExpiryBatchSize {
			break
		}
	}
	if deleted > 0 {
		level.Info(e.logger).Log("msg", "expired profiles deleted", "cutoff", cutoff, "deleted", deleted)
	}
	return int(deleted), nil
}

// Lock exempts a profile from eviction and expiry.
func (e *Engine) Lock(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		return model.ErrLockReasonEmpty
	}
	return e.setLock(ctx, id, reason)
}

func (e *Engine) Unlock(ctx context.Context, id int64) error {
	return e.setLock(ctx, id, "")
}

func (e *Engine) setLock(ctx context.Context, id int64, reason string) error {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err = e.store.Update(ctx, id, model.ProfileUpdate{}.SetLockReason(reason)); err != nil {
		return err
	}
	e.invalidator.Invalidate(ctx, []string{p.Scope}, p.Reason)
	level.Info(e.logger).Log("msg", "profile lock changed", "id", id, "scope", p.Scope, "locked", reason != "")
	return nil
}
