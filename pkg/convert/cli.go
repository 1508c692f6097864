package convert

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/grafana/flamekeeper/pkg/convert/speedscope"
	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

// Input formats.
const (
	FormatFolded = "folded"
	FormatLines  = "lines"
	FormatPprof  = "pprof"

	FormatSpeedscope = "speedscope"
)

// Output formats.
const (
	FormatJSON      = "json"
	FormatCollapsed = "collapsed"
	FormatEncoded   = "encoded"
)

type Options struct {
	From       string
	To         string
	SampleType string
	FileLines  bool
}

// Convert reads a profile in one of the input formats and writes its tree in
// one of the output formats.
func Convert(in io.Reader, out io.Writer, opts Options) error {
	root, err := ReadTree(in, opts)
	if err != nil {
		return err
	}
	return WriteTree(out, root, opts.To)
}

func ReadTree(in io.Reader, opts Options) (*flamegraph.Node, error) {
	switch opts.From {
	case FormatFolded, "":
		return FoldedToTree(in)
	case FormatLines:
		return parseToTree(in, ParseIndividualLines)
	case FormatPprof:
		p, err := ParsePprof(in)
		if err != nil {
			return nil, err
		}
		idx, err := PprofValueIndex(p, opts.SampleType)
		if err != nil {
			return nil, err
		}
		return flamegraph.Build(SamplesFromPprof(p, idx), flamegraph.WithFileLines(opts.FileLines)), nil
	case FormatSpeedscope:
		samples, err := speedscope.Parse(in)
		if err != nil {
			return nil, err
		}
		return flamegraph.Build(samples, flamegraph.WithFileLines(opts.FileLines)), nil
	default:
		return nil, errors.Errorf("unknown input format %q", opts.From)
	}
}

func WriteTree(out io.Writer, root *flamegraph.Node, format string) error {
	var (
		b   []byte
		err error
	)
	switch format {
	case FormatJSON, "":
		b, err = flamegraph.Marshal(root)
	case FormatCollapsed:
		b = []byte(root.Collapsed())
	case FormatEncoded:
		b, err = flamegraph.Encode(root)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// ReadSamples reads a profile in one of the input formats as stack samples.
// Each folded stack becomes a sample weighted by its count.
func ReadSamples(in io.Reader, opts Options) ([]flamegraph.Sample, error) {
	var parse func(io.Reader, func([]byte, int)) error
	switch opts.From {
	case FormatPprof:
		p, err := ParsePprof(in)
		if err != nil {
			return nil, err
		}
		idx, err := PprofValueIndex(p, opts.SampleType)
		if err != nil {
			return nil, err
		}
		return SamplesFromPprof(p, idx), nil
	case FormatSpeedscope:
		return speedscope.Parse(in)
	case FormatFolded, "":
		parse = ParseGroups
	case FormatLines:
		parse = ParseIndividualLines
	default:
		return nil, errors.Errorf("unknown input format %q", opts.From)
	}
	var samples []flamegraph.Sample
	err := parse(in, func(stack []byte, val int) {
		var frames []flamegraph.Frame
		for _, name := range bytes.Split(stack, []byte{';'}) {
			if len(name) > 0 {
				frames = append(frames, flamegraph.Frame{Function: string(name)})
			}
		}
		samples = append(samples, flamegraph.Sample{Frames: frames, Weight: int64(val)})
	})
	return samples, err
}
