package profiler

import (
	"context"
	"time"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/sampleset"
)

type window struct {
	name       string
	begin, end time.Time
}

// CronProcessor profiles a long running process executing named tasks one
// after the other. Samples are attributed to the task running at their
// offset, and each task is stored as its own profile. Executions of the same
// task between two flushes are merged into one profile.
//
// A CronProcessor is not safe for concurrent use.
type CronProcessor struct {
	m       *Manager
	opts    Options
	samples *sampleset.SampleSet
	windows []window
	open    *window
}

// NewCronProcessor starts profiling a process. Offsets of the samples passed
// to AddSamples are relative to opts.Start.
func (m *Manager) NewCronProcessor(opts Options) *CronProcessor {
	if opts.Start.IsZero() {
		opts.Start = m.now()
	}
	opts.ScriptType = model.ScriptTypeTask
	return &CronProcessor{
		m:       m,
		opts:    opts,
		samples: sampleset.New("cron", opts.Start, m.cfg.SampleLimit),
	}
}

// BeginTask marks the start of a task. A task still running is ended.
func (c *CronProcessor) BeginTask(name string, at time.Time) {
	c.EndTask(at)
	c.open = &window{name: name, begin: at}
}

func (c *CronProcessor) EndTask(at time.Time) {
	if c.open == nil {
		return
	}
	c.open.end = at
	if c.open.end.After(c.open.begin) {
		c.windows = append(c.windows, *c.open)
	}
	c.open = nil
}

func (c *CronProcessor) AddSamples(samples []flamegraph.Sample) {
	c.samples.AddMany(samples)
}

type taskProfile struct {
	name     string
	tree     *flamegraph.Node
	duration time.Duration
	depth    int
}

// Flush saves a profile for every task that ended since the last flush, in
// order of first execution. Samples outside of any ended task are dropped,
// except the ones of the task still running.
func (c *CronProcessor) Flush(ctx context.Context) []SaveResult {
	tasks := c.aggregate()
	rate := c.samples.Rate()
	c.reset()

	results := make([]SaveResult, 0, len(tasks))
	for _, t := range tasks {
		opts := c.opts
		opts.Scope = t.name
		opts.Path = t.name
		opts.RequestID = ""
		r := &Run{opts: opts, scope: t.name}
		results = append(results, c.m.save(ctx, r, snapshot{
			tree:     t.tree,
			duration: t.duration,
			depth:    t.depth,
			rate:     rate,
			at:       c.m.now(),
		}, &Outcome{}))
	}
	return results
}

func (c *CronProcessor) aggregate() []*taskProfile {
	var tasks []*taskProfile
	byName := make(map[string]*taskProfile)
	builders := make([]*flamegraph.Builder, len(c.windows))
	for i, w := range c.windows {
		builders[i] = flamegraph.NewBuilder(c.m.buildOpts...)
		t, ok := byName[w.name]
		if !ok {
			t = &taskProfile{name: w.name}
			byName[w.name] = t
			tasks = append(tasks, t)
		}
		t.duration += w.end.Sub(w.begin)
	}
	for _, s := range c.samples.Samples() {
		at := c.opts.Start.Add(s.Offset)
		for i, w := range c.windows {
			if !at.Before(w.begin) && at.Before(w.end) {
				builders[i].Add(s)
				t := byName[w.name]
				t.depth = max(t.depth, len(s.Frames))
				break
			}
		}
	}
	for i, w := range c.windows {
		t := byName[w.name]
		if t.tree == nil {
			t.tree = builders[i].Root()
			continue
		}
		t.tree.MergeFrom(builders[i].Root())
	}
	return tasks
}

// reset drops everything but the samples of the running task.
func (c *CronProcessor) reset() {
	c.windows = c.windows[:0]
	rest := sampleset.New("cron", c.opts.Start, c.m.cfg.SampleLimit)
	if c.open != nil {
		for _, s := range c.samples.Samples() {
			if !c.opts.Start.Add(s.Offset).Before(c.open.begin) {
				rest.Add(s)
			}
		}
	}
	c.samples = rest
}
