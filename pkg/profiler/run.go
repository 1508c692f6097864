package profiler

import (
	"time"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/sampleset"
)

// Options describe the run being started.
type Options struct {
	// Scope is the grouping key of the run. When empty, it is derived from
	// Path.
	Scope      string
	Path       string
	Method     string
	Parameters string
	ScriptType model.ScriptType
	RequestID  string
	User       string
	Host       string
	PID        int

	// Manual is set when profiling was explicitly requested for this run.
	Manual bool
	// FlameAll is set when every run is profiled.
	FlameAll bool
	Start    time.Time
}

// Run is the profiling state of a single request. A Run is used by one
// goroutine at a time.
type Run struct {
	opts    Options
	scope   string
	params  string
	samples *sampleset.SampleSet

	id       int64
	reasons  model.Reason
	lastSave time.Time
	finished bool
}

func (r *Run) AddSamples(samples []flamegraph.Sample) {
	r.samples.AddMany(samples)
}

func (r *Run) Scope() string { return r.scope }

func (r *Run) Start() time.Time { return r.opts.Start }

// RecordID returns the id of the stored profile, or 0 if the run has not
// been saved yet.
func (r *Run) RecordID() int64 { return r.id }

// Reasons returns the reasons the run has been saved for so far.
func (r *Run) Reasons() model.Reason { return r.reasons }

func (r *Run) Finished() bool { return r.finished }

// Samples exposes the sample buffer of the run.
func (r *Run) Samples() *sampleset.SampleSet { return r.samples }

func (r *Run) profile() *model.Profile {
	return &model.Profile{
		RequestID:  r.opts.RequestID,
		Scope:      r.scope,
		ScriptType: r.opts.ScriptType,
		Method:     r.opts.Method,
		Path:       r.opts.Path,
		Parameters: r.params,
		User:       r.opts.User,
		Host:       r.opts.Host,
		PID:        r.opts.PID,
		CreatedAt:  r.opts.Start,
	}
}

// Outcome holds what is only known once the request is over.
type Outcome struct {
	// End defaults to the current time.
	End          time.Time
	ResponseCode int
	DBReads      int64
	DBWrites     int64
	MemoryPeak   int64
}
