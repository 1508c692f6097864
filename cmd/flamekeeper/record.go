package main

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/flamekeeper/pkg/convert"
	"github.com/grafana/flamekeeper/pkg/flamekeeper"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/profiler"
)

type recordParams struct {
	convertParams
	path       string
	scope      string
	method     string
	scriptType string
	duration   time.Duration
	manual     bool
	flameAll   bool
	status     int
}

func addRecordParams(cmd *kingpin.CmdClause) *recordParams {
	params := new(recordParams)
	addInputParams(cmd, &params.convertParams)
	cmd.Flag("path", "Request path of the run.").Required().StringVar(&params.path)
	cmd.Flag("scope", "Scope of the run. Derived from the path when empty.").StringVar(&params.scope)
	cmd.Flag("method", "Request method of the run.").Default("GET").StringVar(&params.method)
	cmd.Flag("script-type", "One of web, cli, ajax, websocket or task.").Default(string(model.ScriptTypeWeb)).StringVar(&params.scriptType)
	cmd.Flag("duration", "Wall time of the run.").Required().DurationVar(&params.duration)
	cmd.Flag("manual", "Mark the run as explicitly profiled.").BoolVar(&params.manual)
	cmd.Flag("flame-all", "Mark the run as profiled because every run is.").BoolVar(&params.flameAll)
	cmd.Flag("status", "Response code of the run.").Default("200").IntVar(&params.status)
	return params
}

func record(ctx context.Context, f *flamekeeper.Flamekeeper, params *recordParams) error {
	scriptType, err := model.ParseScriptType(params.scriptType)
	if err != nil {
		return err
	}
	in, err := openInput(params.input)
	if err != nil {
		return err
	}
	defer in.Close()
	samples, err := convert.ReadSamples(in, params.opts)
	if err != nil {
		return err
	}

	end := time.Now()
	ctx, run := f.Profiler.Start(ctx, profiler.Options{
		Scope:      params.scope,
		Path:       params.path,
		Method:     params.method,
		ScriptType: scriptType,
		Manual:     params.manual,
		FlameAll:   params.flameAll,
		Start:      end.Add(-params.duration),
	})
	run.AddSamples(samples)
	res := f.Profiler.Finish(ctx, run, profiler.Outcome{End: end, ResponseCode: params.status})
	if res.Skip == profiler.SkipStoreUnavailable {
		return fmt.Errorf("profile of %s not saved: store unavailable", run.Scope())
	}
	fmt.Fprintf(output(ctx), "%s %s\n", run.Scope(), res)
	return nil
}
