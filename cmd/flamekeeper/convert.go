package main

import (
	"context"
	"io"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/flamekeeper/pkg/convert"
)

type convertParams struct {
	input string
	opts  convert.Options
}

func addInputParams(cmd *kingpin.CmdClause, params *convertParams) {
	cmd.Arg("input", "Profile to read. Standard input is read when omitted or -.").Default("-").StringVar(&params.input)
	cmd.Flag("from", "Input format: folded, lines, pprof or speedscope.").Default(convert.FormatFolded).
		EnumVar(&params.opts.From, convert.FormatFolded, convert.FormatLines, convert.FormatPprof, convert.FormatSpeedscope)
	cmd.Flag("sample-type", "Sample type of pprof profiles. Defaults to the last one.").StringVar(&params.opts.SampleType)
	cmd.Flag("file-lines", "Include line numbers in the names of frames without a function.").BoolVar(&params.opts.FileLines)
}

func addConvertParams(cmd *kingpin.CmdClause) *convertParams {
	params := new(convertParams)
	addInputParams(cmd, params)
	cmd.Flag("to", "Output format: json, collapsed or encoded.").Default(convert.FormatJSON).
		EnumVar(&params.opts.To, convert.FormatJSON, convert.FormatCollapsed, convert.FormatEncoded)
	return params
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func convertProfile(ctx context.Context, params *convertParams) error {
	in, err := openInput(params.input)
	if err != nil {
		return err
	}
	defer in.Close()
	return convert.Convert(in, output(ctx), params.opts)
}
