// Package flamekeeper builds every component out of a single configuration.
package flamekeeper

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/multierror"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/flamekeeper/pkg/boundary"
	"github.com/grafana/flamekeeper/pkg/eviction"
	fkcontext "github.com/grafana/flamekeeper/pkg/flamekeeper/context"
	"github.com/grafana/flamekeeper/pkg/profiler"
	"github.com/grafana/flamekeeper/pkg/retention"
	"github.com/grafana/flamekeeper/pkg/sqlstore"
	"github.com/grafana/flamekeeper/pkg/store"
	"github.com/grafana/flamekeeper/pkg/store/memstore"
)

type Flamekeeper struct {
	Cfg Config

	Store      store.Store
	Boundaries *boundary.Boundaries
	Policy     *retention.Policy
	Engine     *eviction.Engine
	Eviction   *eviction.Service
	Profiler   *profiler.Manager

	logger log.Logger
	reg    prometheus.Registerer
}

// New validates the configuration and wires the components. The logger and
// the registry are taken from the context.
func New(ctx context.Context, cfg Config) (*Flamekeeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Flamekeeper{
		Cfg:    cfg,
		logger: fkcontext.Logger(ctx),
		reg:    fkcontext.Registry(ctx),
	}
	s, err := f.initStore()
	if err != nil {
		return nil, err
	}
	f.Store = s

	// Quotas are read through the retention config owned by the policy.
	quotas := &f.Cfg.Retention
	for _, k := range quotas.KeepNone() {
		level.Warn(f.logger).Log("msg", "quota below 1, no profile is kept for this reason", "quota", k)
	}
	f.Boundaries = boundary.New(f.initCache(), s, quotas, f.logger, f.reg)
	f.Policy = retention.NewPolicy(cfg.Retention, f.Boundaries)
	f.Engine = eviction.NewEngine(s, f.Boundaries, f.logger, f.reg)
	f.Eviction = eviction.NewService(cfg.Eviction, f.Engine, quotas, f.logger)
	f.Profiler = profiler.NewManager(cfg.Profiler, s, f.Policy, f.Boundaries, f.Eviction, f.logger, f.reg)
	return f, nil
}

func (f *Flamekeeper) initStore() (store.Store, error) {
	switch f.Cfg.Storage.Type {
	case StorageMemory:
		level.Warn(f.logger).Log("msg", "profiles are kept in memory and lost on exit")
		return memstore.New(), nil
	default:
		s, err := sqlstore.Open(f.Cfg.Storage.SQL, f.logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open profile store")
		}
		return s, nil
	}
}

func (f *Flamekeeper) initCache() boundary.Cache {
	if !f.Cfg.Cache.Enabled {
		return boundary.NopCache{}
	}
	return boundary.NewLRU(f.Cfg.Cache.Size, f.Cfg.Cache.TTL)
}

// Start starts the background eviction.
func (f *Flamekeeper) Start(ctx context.Context) error {
	return services.StartAndAwaitRunning(ctx, f.Eviction)
}

// Close stops the background eviction if it is running, and closes the
// store.
func (f *Flamekeeper) Close() error {
	errs := multierror.New()
	if f.Eviction.State() != services.New {
		errs.Add(services.StopAndAwaitTerminated(context.Background(), f.Eviction))
	}
	errs.Add(f.Store.Close())
	return errs.Err()
}
