package flamekeeper

import (
	"flag"
	"os"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/grafana/flamekeeper/pkg/eviction"
	"github.com/grafana/flamekeeper/pkg/profiler"
	"github.com/grafana/flamekeeper/pkg/retention"
	"github.com/grafana/flamekeeper/pkg/sqlstore"
)

const (
	StorageMemory = "memory"
	StorageSQL    = "sql"
)

type Config struct {
	Profiler  profiler.Config  `yaml:"profiler"`
	Retention retention.Config `yaml:"retention"`
	Eviction  eviction.Config  `yaml:"eviction"`
	Storage   StorageConfig    `yaml:"storage"`
	Cache     CacheConfig      `yaml:"cache"`

	ConfigFile string `yaml:"-"`
}

type StorageConfig struct {
	Type string          `yaml:"type"`
	SQL  sqlstore.Config `yaml:"sql"`
}

func (c *StorageConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Type, "storage.type", StorageSQL, "Where profiles are stored: sql or memory.")
	c.SQL.RegisterFlags(f)
}

func (c *StorageConfig) Validate() error {
	switch c.Type {
	case StorageMemory:
		return nil
	case StorageSQL:
		return c.SQL.Validate()
	default:
		return errors.Errorf("unknown storage type %q", c.Type)
	}
}

// CacheConfig configures the in-process cache of quota boundaries.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

func (c *CacheConfig) RegisterFlags(f *flag.FlagSet) {
	const prefix = "cache.boundaries."
	f.BoolVar(&c.Enabled, prefix+"enabled", true, "Cache quota boundaries in memory.")
	f.IntVar(&c.Size, prefix+"size", 4096, "Maximum number of cached boundaries.")
	f.DurationVar(&c.TTL, prefix+"ttl", time.Hour, "Time to live of cached boundaries.")
}

func (c *CacheConfig) Validate() error {
	if c.Enabled && c.Size < 1 {
		return errors.New("cache size must be positive")
	}
	if c.TTL < 0 {
		return errors.New("cache ttl can't be negative")
	}
	return nil
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.ConfigFile, "config.file", "", "yaml file to load")
	c.Profiler.RegisterFlags(f)
	c.Retention.RegisterFlags(f)
	c.Eviction.RegisterFlags(f)
	c.Storage.RegisterFlags(f)
	c.Cache.RegisterFlags(f)
}

func (c *Config) Validate() error {
	errs := multierror.New()
	errs.Add(errors.Wrap(c.Profiler.Validate(), "profiler"))
	errs.Add(errors.Wrap(c.Retention.Validate(), "retention"))
	errs.Add(errors.Wrap(c.Eviction.Validate(), "eviction"))
	errs.Add(errors.Wrap(c.Storage.Validate(), "storage"))
	errs.Add(errors.Wrap(c.Cache.Validate(), "cache"))
	return errs.Err()
}

// DefaultConfig returns the configuration with the defaults of every flag.
func DefaultConfig() Config {
	var c Config
	flagext.DefaultValues(&c)
	return c
}

// LoadFile overrides the configuration with the values set in a YAML file.
// Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}
