package retention

import (
	"flag"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/model"
)

const (
	DefaultTriggerDuration = time.Second
	DefaultKeepPerScope    = 20
	DefaultKeepGlobal      = 500
)

type Config struct {
	TriggerDuration time.Duration `yaml:"trigger_duration"`
	StackDepthLimit int           `yaml:"stack_depth_limit"`
	Quotas          Quotas        `yaml:"quotas"`
}

// Quotas has a section per quota-bound reason, named after its QuotaKey.
type Quotas struct {
	Slow Quota `yaml:"slow"`
}

// Quota is the number of profiles kept for a reason. A quota below 1 keeps
// none. A per-scope quota above the global one is bounded by the global one.
type Quota struct {
	PerScope int `yaml:"keep_per_scope"`
	Global   int `yaml:"keep_global"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	const prefix = "retention."
	f.DurationVar(&cfg.TriggerDuration, prefix+"trigger-duration", DefaultTriggerDuration, "Minimum duration of a run to be retained as slow.")
	f.IntVar(&cfg.StackDepthLimit, prefix+"stack-depth-limit", 0, "Runs with a stack deeper than this are retained. 0 to disable.")
	cfg.Quotas.Slow.RegisterFlags(f, prefix+"quotas.slow.")
}

func (q *Quota) RegisterFlags(f *flag.FlagSet, prefix string) {
	f.IntVar(&q.PerScope, prefix+"keep-per-scope", DefaultKeepPerScope, "Number of profiles kept per scope.")
	f.IntVar(&q.Global, prefix+"keep-global", DefaultKeepGlobal, "Number of profiles kept across all scopes.")
}

func (cfg *Config) Validate() error {
	var err error
	if cfg.TriggerDuration < 0 {
		err = multierror.Append(err, errors.New("trigger duration can't be negative"))
	}
	if cfg.StackDepthLimit < 0 {
		err = multierror.Append(err, errors.New("stack depth limit can't be negative"))
	}
	return err
}

// KeepNone returns the labels of the quota-bound reasons for which no
// profile is kept in a scope or globally.
func (cfg *Config) KeepNone() []string {
	var labels []string
	for _, info := range model.Reasons() {
		if info.QuotaKey == "" {
			continue
		}
		if q := cfg.Quota(info.Reason); q.PerScope < 1 || q.Global < 1 {
			labels = append(labels, info.QuotaKey)
		}
	}
	return labels
}

// Quota returns the quota of a single reason. Reasons that are not quota
// bound get a zero quota.
func (cfg *Config) Quota(r model.Reason) Quota {
	switch r.Info().QuotaKey {
	case "slow":
		return cfg.Quotas.Slow
	default:
		return Quota{}
	}
}
