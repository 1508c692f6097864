// Package retention decides which runs are worth keeping.
package retention

import (
	"context"
	"time"

	"github.com/grafana/flamekeeper/pkg/model"
)

// BoundaryReader returns the duration a run must exceed to get into the
// kept set of a reason.
type BoundaryReader interface {
	MinDurationFor(ctx context.Context, scope string, r model.Reason, useCache bool) (time.Duration, error)
	MinDurationForReasonGlobal(ctx context.Context, r model.Reason, useCache bool) (time.Duration, error)
}

// Input describes a finished or in-flight run.
type Input struct {
	Scope      string
	Duration   time.Duration
	StackDepth int
	// Manual is set when profiling was explicitly requested.
	Manual bool
	// FlameAll is set when every run is profiled.
	FlameAll bool
}

type Policy struct {
	config     Config
	boundaries BoundaryReader
}

func NewPolicy(cfg Config, boundaries BoundaryReader) *Policy {
	return &Policy{config: cfg, boundaries: boundaries}
}

func (p *Policy) Config() Config { return p.config }

// Reasons returns the reasons the run qualifies for. The checks run from the
// cheapest to the costliest, and the slow check stops at the first boundary
// the run does not exceed. If a boundary can't be read, the run is not
// considered slow and the error is returned along with the other reasons.
func (p *Policy) Reasons(ctx context.Context, in Input) (model.Reason, error) {
	var r model.Reason
	if in.Manual {
		r |= model.ReasonManual
	}
	if in.FlameAll {
		r |= model.ReasonFlameAll
	}
	if p.config.StackDepthLimit > 0 && in.StackDepth > p.config.StackDepthLimit {
		r |= model.ReasonStackDepth
	}
	slow, err := p.isSlow(ctx, in)
	if slow {
		r |= model.ReasonSlow
	}
	return r, err
}

func (p *Policy) isSlow(ctx context.Context, in Input) (bool, error) {
	if in.Duration <= p.config.TriggerDuration {
		return false, nil
	}
	global, err := p.boundaries.MinDurationForReasonGlobal(ctx, model.ReasonSlow, true)
	if err != nil || in.Duration <= global {
		return false, err
	}
	scope, err := p.boundaries.MinDurationFor(ctx, in.Scope, model.ReasonSlow, true)
	if err != nil || in.Duration <= scope {
		return false, err
	}
	return true, nil
}
