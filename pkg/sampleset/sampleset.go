// Package sampleset buffers the samples of a single run in bounded memory.
//
// Once the buffer is full, every other kept sample is dropped and the
// sampling rate is halved, so the buffer always holds an evenly spread
// subsequence of the observed samples.
package sampleset

import (
	"time"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

const DefaultLimit = 1024

// SampleSet is not safe for concurrent use.
type SampleSet struct {
	Name  string
	Start time.Time

	limit   int
	rate    int
	counter int64
	depth   int
	samples []flamegraph.Sample
}

// New creates an empty set holding at most limit samples.
// A limit below 1 selects DefaultLimit.
func New(name string, start time.Time, limit int) *SampleSet {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &SampleSet{
		Name:    name,
		Start:   start,
		limit:   limit,
		rate:    1,
		samples: make([]flamegraph.Sample, 0, min(limit, 64)),
	}
}

// Add observes a sample. It is kept if the number of samples observed so far
// is a multiple of the current rate.
func (s *SampleSet) Add(sample flamegraph.Sample) {
	s.counter++
	if d := len(sample.Frames); d > s.depth {
		s.depth = d
	}
	if s.counter%int64(s.rate) != 0 {
		return
	}
	if len(s.samples) >= s.limit {
		s.thin()
		if s.counter%int64(s.rate) != 0 {
			return
		}
	}
	s.samples = append(s.samples, sample)
}

func (s *SampleSet) AddMany(samples []flamegraph.Sample) {
	for _, sample := range samples {
		s.Add(sample)
	}
}

// thin keeps the samples at odd positions and doubles the rate.
func (s *SampleSet) thin() {
	kept := s.samples[:0]
	for i := 1; i < len(s.samples); i += 2 {
		kept = append(kept, s.samples[i])
	}
	clear(s.samples[len(kept):])
	s.samples = kept
	s.rate *= 2
}

// StackDepth returns the deepest stack observed, including samples that were
// not kept.
func (s *SampleSet) StackDepth() int { return s.depth }

// Len returns the number of kept samples.
func (s *SampleSet) Len() int { return len(s.samples) }

// Total returns the number of observed samples.
func (s *SampleSet) Total() int64 { return s.counter }

// Rate returns N, where one in every N observed samples is currently kept.
func (s *SampleSet) Rate() int { return s.rate }

func (s *SampleSet) Limit() int { return s.limit }

// Samples returns a copy of the kept samples in observation order.
func (s *SampleSet) Samples() []flamegraph.Sample {
	r := make([]flamegraph.Sample, len(s.samples))
	copy(r, s.samples)
	return r
}

// Tree builds a tree out of the kept samples. The set is left unchanged.
func (s *SampleSet) Tree(opts ...flamegraph.Option) *flamegraph.Node {
	return flamegraph.Build(s.samples, opts...)
}
