package convert

import (
	"io"

	"github.com/google/pprof/profile"
	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

func ParsePprof(r io.Reader) (*profile.Profile, error) {
	p, err := profile.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse pprof")
	}
	return p, nil
}

// SamplesFromPprof turns the samples of a pprof profile into stack samples,
// using the value at valueIndex as their weight. Samples with a value below 1
// are dropped. Inlined functions get a frame of their own.
func SamplesFromPprof(p *profile.Profile, valueIndex int) []flamegraph.Sample {
	if p == nil || valueIndex < 0 || valueIndex >= len(p.SampleType) {
		return nil
	}
	samples := make([]flamegraph.Sample, 0, len(p.Sample))
	for _, s := range p.Sample {
		if valueIndex >= len(s.Value) || s.Value[valueIndex] < 1 {
			continue
		}
		var frames []flamegraph.Frame
		// Locations are leaf first, and so are the lines of a location.
		for i := len(s.Location) - 1; i >= 0; i-- {
			loc := s.Location[i]
			if len(loc.Line) == 0 {
				frames = append(frames, flamegraph.Frame{})
				continue
			}
			for j := len(loc.Line) - 1; j >= 0; j-- {
				frames = append(frames, frameFromLine(loc.Line[j]))
			}
		}
		samples = append(samples, flamegraph.Sample{
			Frames: frames,
			Weight: s.Value[valueIndex],
		})
	}
	return samples
}

func frameFromLine(l profile.Line) flamegraph.Frame {
	if l.Function == nil {
		return flamegraph.Frame{Line: int(l.Line)}
	}
	return flamegraph.Frame{
		Function: l.Function.Name,
		File:     l.Function.Filename,
		Line:     int(l.Line),
	}
}

// PprofValueIndex returns the index of the named sample type, or the last one
// if typ is empty.
func PprofValueIndex(p *profile.Profile, typ string) (int, error) {
	if typ == "" {
		if len(p.SampleType) == 0 {
			return 0, errors.New("profile has no sample types")
		}
		return len(p.SampleType) - 1, nil
	}
	for i, st := range p.SampleType {
		if st.Type == typ {
			return i, nil
		}
	}
	return 0, errors.Errorf("sample type %q not found", typ)
}
