package main

import (
	"context"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/flamekeeper/pkg/convert"
	"github.com/grafana/flamekeeper/pkg/flamekeeper"
	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/store"
)

type filterParams struct {
	scope  string
	reason string
}

func addFilterParams(cmd *kingpin.CmdClause, params *filterParams) {
	cmd.Flag("scope", "Only include profiles of this scope.").StringVar(&params.scope)
	cmd.Flag("reason", "Only include profiles holding one of these comma separated reasons.").StringVar(&params.reason)
}

func (p *filterParams) filter() (store.Filter, error) {
	var f store.Filter
	if p.scope != "" {
		f.Scope = model.String(p.scope)
	}
	r, err := model.ParseReason(p.reason)
	if err != nil {
		return f, err
	}
	f.Reason = r
	return f, nil
}

type listParams struct {
	filterParams
	limit  int
	offset int
}

func addListParams(cmd *kingpin.CmdClause) *listParams {
	params := new(listParams)
	addFilterParams(cmd, &params.filterParams)
	cmd.Flag("limit", "Maximum number of profiles to list.").Default("50").IntVar(&params.limit)
	cmd.Flag("offset", "Number of profiles to skip.").Default("0").IntVar(&params.offset)
	return params
}

func list(ctx context.Context, f *flamekeeper.Flamekeeper, params *listParams) error {
	filter, err := params.filter()
	if err != nil {
		return err
	}
	profiles, err := f.Store.TopByDuration(ctx, filter, params.limit, params.offset)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(output(ctx))
	table.SetHeader([]string{"ID", "Scope", "Type", "Duration", "Reasons", "Samples", "Rate", "Size", "Created", "Lock"})
	for _, p := range profiles {
		created := humanize.Time(p.CreatedAt)
		if !p.Finished() {
			created += " (partial)"
		}
		table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			p.Scope,
			string(p.ScriptType),
			p.Duration.String(),
			p.Reason.String(),
			humanize.Comma(p.SampleCount),
			strconv.Itoa(p.SampleRate),
			humanize.Bytes(uint64(p.DataSize)),
			created,
			p.LockReason,
		})
	}
	table.Render()
	return nil
}

type statsParams struct {
	filterParams
	groupBy string
}

func addStatsParams(cmd *kingpin.CmdClause) *statsParams {
	params := new(statsParams)
	addFilterParams(cmd, &params.filterParams)
	cmd.Flag("group-by", "Field to group profiles by: scope or script_type.").Default(string(store.FieldScope)).
		EnumVar(&params.groupBy, string(store.FieldScope), string(store.FieldScriptType))
	return params
}

func stats(ctx context.Context, f *flamekeeper.Flamekeeper, params *statsParams) error {
	filter, err := params.filter()
	if err != nil {
		return err
	}
	by := store.Field(params.groupBy)
	durations, err := f.Store.SumGroupBy(ctx, by, store.FieldDuration, filter)
	if err != nil {
		return err
	}
	sizes, err := f.Store.SumGroupBy(ctx, by, store.FieldDataSize, filter)
	if err != nil {
		return err
	}
	size := make(map[string]float64, len(sizes))
	for _, g := range sizes {
		size[g.Key] = g.Sum
	}
	scopes, err := f.Store.CountDistinct(ctx, store.FieldScope, filter)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(output(ctx))
	table.SetHeader([]string{params.groupBy, "Profiles", "Total duration", "Average duration", "Size"})
	var total int64
	for _, g := range durations {
		total += g.Count
		table.Append([]string{
			g.Key,
			humanize.Comma(g.Count),
			time.Duration(g.Sum).String(),
			(time.Duration(g.Sum) / time.Duration(g.Count)).String(),
			humanize.Bytes(uint64(size[g.Key])),
		})
	}
	table.SetFooter([]string{"", humanize.Comma(total), "", "", humanize.Comma(scopes) + " scopes"})
	table.Render()
	return nil
}

type showParams struct {
	id     int64
	format string
}

func addShowParams(cmd *kingpin.CmdClause) *showParams {
	params := new(showParams)
	cmd.Arg("id", "Profile id.").Required().Int64Var(&params.id)
	cmd.Flag("to", "Output format: json, collapsed or encoded.").Default(convert.FormatCollapsed).
		EnumVar(&params.format, convert.FormatJSON, convert.FormatCollapsed, convert.FormatEncoded)
	return params
}

func show(ctx context.Context, f *flamekeeper.Flamekeeper, params *showParams) error {
	p, err := f.Store.Get(ctx, params.id)
	if err != nil {
		return err
	}
	root, err := p.FlameGraph()
	if err != nil {
		return err
	}
	return convert.WriteTree(output(ctx), root, params.format)
}

func purge(ctx context.Context, f *flamekeeper.Flamekeeper) error {
	quota := f.Cfg.Retention.Quota(model.ReasonSlow)
	byScope, err := f.Engine.PurgeFastestByScope(ctx, quota.PerScope)
	if err != nil {
		return err
	}
	global, err := f.Engine.PurgeFastestGlobal(ctx, quota.Global)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "quotas enforced", "stripped_scope", byScope, "stripped_global", global)
	return nil
}

type expireParams struct {
	olderThan time.Duration
}

func addExpireParams(cmd *kingpin.CmdClause) *expireParams {
	params := new(expireParams)
	cmd.Flag("older-than", "Age of the profiles to delete. Defaults to the configured expiry age.").DurationVar(&params.olderThan)
	return params
}

func expire(ctx context.Context, f *flamekeeper.Flamekeeper, params *expireParams) error {
	age := params.olderThan
	if age == 0 {
		age = f.Cfg.Eviction.ExpiryAge
	}
	if age <= 0 {
		return errors.New("expiry age must be positive")
	}
	n, err := f.Engine.PurgeOlderThan(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "profiles expired", "deleted", n, "older_than", age)
	return nil
}

type lockParams struct {
	id     int64
	reason string
}

func addLockParams(cmd *kingpin.CmdClause) *lockParams {
	params := new(lockParams)
	cmd.Arg("id", "Profile id.").Required().Int64Var(&params.id)
	cmd.Arg("reason", "Why the profile is kept.").Required().StringVar(&params.reason)
	return params
}

func addUnlockParams(cmd *kingpin.CmdClause) *lockParams {
	params := new(lockParams)
	cmd.Arg("id", "Profile id.").Required().Int64Var(&params.id)
	return params
}

func lock(ctx context.Context, f *flamekeeper.Flamekeeper, params *lockParams) error {
	return f.Engine.Lock(ctx, params.id, params.reason)
}

func unlock(ctx context.Context, f *flamekeeper.Flamekeeper, params *lockParams) error {
	return f.Engine.Unlock(ctx, params.id)
}
