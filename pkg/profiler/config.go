package profiler

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/sampleset"
)

type Config struct {
	SampleLimit         int                    `yaml:"sample_limit"`
	PartialSaveInterval time.Duration          `yaml:"partial_save_interval"`
	RedactParams        flagext.StringSliceCSV `yaml:"redact_params"`
	FileLines           bool                   `yaml:"file_lines"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	const prefix = "profiler."
	cfg.RedactParams = []string{"password", "passwd", "token", "secret", "api_key"}
	f.IntVar(&cfg.SampleLimit, prefix+"sample-limit", sampleset.DefaultLimit, "Maximum number of samples buffered per run.")
	f.DurationVar(&cfg.PartialSaveInterval, prefix+"partial-save-interval", 10*time.Second, "Minimum interval between partial saves of a running profile. 0 to disable partial saves.")
	f.Var(&cfg.RedactParams, prefix+"redact-params", "Comma separated list of request parameters whose values are not stored.")
	f.BoolVar(&cfg.FileLines, prefix+"file-lines", false, "Include line numbers in the names of frames without a function.")
}

func (cfg *Config) Validate() error {
	if cfg.SampleLimit < 0 {
		return errors.New("sample limit can't be negative")
	}
	if cfg.PartialSaveInterval < 0 {
		return errors.New("partial save interval can't be negative")
	}
	return nil
}
