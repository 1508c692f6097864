// Package speedscope reads profiles in the speedscope file format.
package speedscope

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parse returns the samples of every profile of the file. Sampled profiles
// give a sample per stack, weighted by its weight. Evented profiles give a
// sample per interval between two events, weighted by the length of the
// interval in the unit of the profile.
func Parse(r io.Reader) ([]flamegraph.Sample, error) {
	var file speedscopeFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "parse speedscope")
	}
	frames := make([]flamegraph.Frame, len(file.Shared.Frames))
	for i, f := range file.Shared.Frames {
		frames[i] = flamegraph.Frame{Function: f.Name, File: f.File, Line: f.Line}
	}
	var samples []flamegraph.Sample
	for i, p := range file.Profiles {
		var err error
		switch p.Type {
		case profileSampled:
			samples, err = appendSampled(samples, frames, p)
		case profileEvented:
			samples, err = appendEvented(samples, frames, p)
		default:
			err = errors.Errorf("unknown profile type %q", p.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "profile %d", i)
		}
	}
	return samples, nil
}

func stack(frames []flamegraph.Frame, indexes []int) ([]flamegraph.Frame, error) {
	r := make([]flamegraph.Frame, len(indexes))
	for i, idx := range indexes {
		if idx < 0 || idx >= len(frames) {
			return nil, errors.Errorf("invalid frame index %d", idx)
		}
		r[i] = frames[idx]
	}
	return r, nil
}

func appendSampled(samples []flamegraph.Sample, frames []flamegraph.Frame, p profile) ([]flamegraph.Sample, error) {
	if len(p.Weights) != 0 && len(p.Weights) != len(p.Samples) {
		return nil, errors.New("samples and weights differ in length")
	}
	for i, indexes := range p.Samples {
		s, err := stack(frames, indexes)
		if err != nil {
			return nil, err
		}
		weight := int64(1)
		if len(p.Weights) != 0 {
			weight = p.Weights[i]
		}
		if weight < 1 {
			continue
		}
		samples = append(samples, flamegraph.Sample{Frames: s, Weight: weight})
	}
	return samples, nil
}

func appendEvented(samples []flamegraph.Sample, frames []flamegraph.Frame, p profile) ([]flamegraph.Sample, error) {
	var open []int
	last := p.StartValue
	for _, e := range p.Events {
		if e.At < last {
			return nil, errors.Errorf("event at %d is out of order", e.At)
		}
		if d := e.At - last; d > 0 && len(open) > 0 {
			s, err := stack(frames, open)
			if err != nil {
				return nil, err
			}
			samples = append(samples, flamegraph.Sample{
				Frames: s,
				Weight: d,
			})
		}
		last = e.At
		switch e.Type {
		case eventOpen:
			open = append(open, e.Frame)
		case eventClose:
			if len(open) == 0 || open[len(open)-1] != e.Frame {
				return nil, errors.Errorf("unbalanced close event of frame %d at %d", e.Frame, e.At)
			}
			open = open[:len(open)-1]
		default:
			return nil, errors.Errorf("unknown event type %q", e.Type)
		}
	}
	return samples, nil
}
