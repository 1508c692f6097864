package eviction

import (
	"context"
	"flag"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/multierror"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/retention"
)

type Config struct {
	Interval  time.Duration `yaml:"interval"`
	ExpiryAge time.Duration `yaml:"expiry_age"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	const prefix = "eviction."
	f.DurationVar(&cfg.Interval, prefix+"interval", 5*time.Minute, "Interval between eviction runs.")
	f.DurationVar(&cfg.ExpiryAge, prefix+"expiry-age", 7*24*time.Hour, "Profiles older than this are deleted, whatever their reasons. 0 to disable.")
}

func (cfg *Config) Validate() error {
	if cfg.Interval <= 0 {
		return errors.New("eviction interval must be positive")
	}
	if cfg.ExpiryAge < 0 {
		return errors.New("expiry age can't be negative")
	}
	return nil
}

type QuotaSource interface {
	Quota(model.Reason) retention.Quota
}

// Service runs the engine periodically, or when triggered. Each run expires
// old profiles, then enforces the per-scope and the global quotas of the
// slow reason.
type Service struct {
	services.Service

	logger log.Logger
	config Config
	engine *Engine
	quotas QuotaSource
	now    func() time.Time

	trigger chan struct{}
}

func NewService(cfg Config, engine *Engine, quotas QuotaSource, logger log.Logger) *Service {
	s := &Service{
		logger:  log.With(logger, "component", "eviction-service"),
		config:  cfg,
		engine:  engine,
		quotas:  quotas,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	s.Service = services.NewBasicService(nil, s.running, nil)
	return s
}

// Trigger requests a run. It never blocks: requests made while a run is
// pending are merged.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Service) running(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.trigger:
		case <-ctx.Done():
			return nil
		}
		if err := s.RunOnce(ctx); err != nil {
			level.Error(s.logger).Log("msg", "eviction run failed", "err", err)
		}
	}
}

// RunOnce expires old profiles and enforces the quotas. A failing pass does
// not prevent the next ones from running.
func (s *Service) RunOnce(ctx context.Context) error {
	start := s.now()
	defer func() {
		s.engine.metrics.runDuration.Observe(time.Since(start).Seconds())
	}()

	errs := multierror.New()
	var expired int
	if s.config.ExpiryAge > 0 {
		n, err := s.engine.PurgeOlderThan(ctx, start.Add(-s.config.ExpiryAge))
		expired = n
		errs.Add(errors.Wrap(err, "expiry"))
	}
	quota := s.quotas.Quota(model.ReasonSlow)
	byScope, err := s.engine.PurgeFastestByScope(ctx, quota.PerScope)
	errs.Add(errors.Wrap(err, "per-scope quota"))
	global, err := s.engine.PurgeFastestGlobal(ctx, quota.Global)
	errs.Add(errors.Wrap(err, "global quota"))

	level.Debug(s.logger).Log(
		"msg", "eviction run completed",
		"expired", expired,
		"stripped_scope", byScope,
		"stripped_global", global,
		"duration", time.Since(start),
	)
	return errs.Err()
}
