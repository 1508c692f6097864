// Package profiler ties the sample buffer of a request to the retention
// policy and the profile store.
package profiler

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/retention"
	"github.com/grafana/flamekeeper/pkg/sampleset"
	"github.com/grafana/flamekeeper/pkg/store"
)

type Policy interface {
	Reasons(ctx context.Context, in retention.Input) (model.Reason, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, scopes []string, reasons model.Reason)
}

// Trigger schedules an eviction pass. It must not block.
type Trigger interface {
	Trigger()
}

type Manager struct {
	cfg         Config
	logger      log.Logger
	store       store.Store
	policy      Policy
	invalidator Invalidator
	trigger     Trigger
	metrics     *metrics
	buildOpts   []flamegraph.Option

	now func() time.Time
}

// NewManager creates a manager. The invalidator and the trigger are optional.
func NewManager(
	cfg Config,
	s store.Store,
	policy Policy,
	invalidator Invalidator,
	trigger Trigger,
	logger log.Logger,
	reg prometheus.Registerer,
) *Manager {
	return &Manager{
		cfg:         cfg,
		logger:      log.With(logger, "component", "profiler"),
		store:       s,
		policy:      policy,
		invalidator: invalidator,
		trigger:     trigger,
		metrics:     newMetrics(reg),
		buildOpts:   []flamegraph.Option{flamegraph.WithFileLines(cfg.FileLines)},
		now:         time.Now,
	}
}

// Start begins a run and returns a context carrying it.
func (m *Manager) Start(ctx context.Context, opts Options) (context.Context, *Run) {
	if opts.Start.IsZero() {
		opts.Start = m.now()
	}
	if opts.ScriptType == "" {
		opts.ScriptType = model.ScriptTypeWeb
	}
	scope := opts.Scope
	if scope == "" {
		scope = model.NormalizeScope(opts.Path)
	}
	r := &Run{
		opts:     opts,
		scope:    scope,
		params:   model.RedactParameters(opts.Parameters, m.cfg.RedactParams),
		samples:  sampleset.New(scope, opts.Start, m.cfg.SampleLimit),
		lastSave: opts.Start,
	}
	m.metrics.runs.Inc()
	return WithRun(ctx, r), r
}

// Flush saves the run if the partial save interval elapsed since its last
// save. The stored record is rewritten by every later save of the run.
func (m *Manager) Flush(ctx context.Context, r *Run, now time.Time) SaveResult {
	if r.finished {
		return Skipped(SkipFinished)
	}
	if m.cfg.PartialSaveInterval <= 0 || now.Sub(r.lastSave) < m.cfg.PartialSaveInterval {
		return Skipped(SkipNotDue)
	}
	return m.saveRun(ctx, r, now, nil)
}

// Finish makes the final save of the run. Subsequent calls are no-ops.
func (m *Manager) Finish(ctx context.Context, r *Run, out Outcome) SaveResult {
	if r.finished {
		return Skipped(SkipFinished)
	}
	if out.End.IsZero() {
		out.End = m.now()
	}
	res := m.saveRun(ctx, r, out.End, &out)
	r.finished = true
	m.metrics.thinning.Observe(float64(r.samples.Rate()))
	return res
}

func (m *Manager) saveRun(ctx context.Context, r *Run, now time.Time, out *Outcome) SaveResult {
	res := m.save(ctx, r, snapshot{
		tree:     r.samples.Tree(m.buildOpts...),
		duration: now.Sub(r.opts.Start),
		depth:    r.samples.StackDepth(),
		rate:     r.samples.Rate(),
		at:       now,
	}, out)
	if res.IsSaved() {
		r.lastSave = now
	}
	return res
}

type snapshot struct {
	tree     *flamegraph.Node
	duration time.Duration
	depth    int
	rate     int
	at       time.Time
}

func (m *Manager) save(ctx context.Context, r *Run, s snapshot, out *Outcome) (res SaveResult) {
	kind := "partial"
	if out != nil {
		kind = "final"
	}
	start := time.Now()
	defer func() {
		m.metrics.saveDuration.Observe(time.Since(start).Seconds())
		if res.IsSaved() {
			m.metrics.saves.WithLabelValues(kind, "saved").Inc()
		} else {
			m.metrics.saves.WithLabelValues(kind, res.Skip.String()).Inc()
		}
	}()

	if s.tree.Value == 0 && r.id == 0 {
		return Skipped(SkipEmpty)
	}
	reasons, err := m.policy.Reasons(ctx, retention.Input{
		Scope:      r.scope,
		Duration:   s.duration,
		StackDepth: s.depth,
		Manual:     r.opts.Manual,
		FlameAll:   r.opts.FlameAll,
	})
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to evaluate retention reasons", "scope", r.scope, "err", err)
	}
	// Quota-bound reasons are granted against the current boundaries only.
	reasons |= r.reasons.WithoutQuotaBound()
	if reasons == model.ReasonNone {
		return Skipped(SkipNoReason)
	}

	id, err := m.write(ctx, r, s, reasons, out)
	if err != nil {
		level.Warn(m.logger).Log("msg", "failed to save profile", "scope", r.scope, "request_id", r.opts.RequestID, "err", err)
		return Skipped(SkipStoreUnavailable)
	}
	invalidate := reasons | r.reasons
	r.id = id
	r.reasons = reasons

	if m.invalidator != nil {
		m.invalidator.Invalidate(ctx, []string{r.scope}, invalidate)
	}
	if reasons.Has(model.ReasonSlow) && m.trigger != nil {
		m.trigger.Trigger()
	}
	level.Debug(m.logger).Log("msg", "profile saved", "id", id, "scope", r.scope, "reasons", reasons, "kind", kind, "samples", s.tree.Value)
	return Saved(id)
}

// write updates the record of the run, or inserts it if there is none. A
// record evicted between two saves is inserted again.
func (m *Manager) write(ctx context.Context, r *Run, s snapshot, reasons model.Reason, out *Outcome) (int64, error) {
	if r.id != 0 {
		u := model.ProfileUpdate{
			Duration:   &s.duration,
			FlameGraph: s.tree,
			SampleRate: &s.rate,
		}.SetReason(reasons)
		if out != nil {
			u = u.SetFinishedAt(s.at)
			u.ResponseCode = &out.ResponseCode
			u.DBReads = &out.DBReads
			u.DBWrites = &out.DBWrites
			u.MemoryPeak = &out.MemoryPeak
		}
		err := m.store.Update(ctx, r.id, u)
		if err == nil {
			return r.id, nil
		}
		if !model.IsNotFoundError(err) {
			return 0, err
		}
		level.Debug(m.logger).Log("msg", "profile record gone, inserting it again", "id", r.id, "scope", r.scope)
	}

	p := r.profile()
	p.Duration = s.duration
	p.Reason = reasons
	p.SampleRate = s.rate
	if out != nil {
		at := s.at
		p.FinishedAt = &at
		p.ResponseCode = out.ResponseCode
		p.DBReads = out.DBReads
		p.DBWrites = out.DBWrites
		p.MemoryPeak = out.MemoryPeak
	}
	if err := p.AttachFlameGraph(s.tree); err != nil {
		return 0, err
	}
	p.EnsureRequestID()
	r.opts.RequestID = p.RequestID
	return m.store.Insert(ctx, p)
}
