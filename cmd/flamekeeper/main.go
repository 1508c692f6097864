package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/flamekeeper/pkg/flamekeeper"
	fkcontext "github.com/grafana/flamekeeper/pkg/flamekeeper/context"
)

var cfg struct {
	verbose    bool
	configFile string
	storage    string
	dbURL      string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Tooling for flamekeeper, the sampling profile store.").UsageWriter(os.Stdout)
	app.Version(version.Print("flamekeeper"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("config.file", "YAML file to load.").StringVar(&cfg.configFile)
	app.Flag("storage.type", "Override the storage type: sql or memory.").StringVar(&cfg.storage)
	app.Flag("storage.sql.url", "Override the data source name of the SQL database.").StringVar(&cfg.dbURL)

	convertCmd := app.Command("convert", "Convert a profile to a flame graph.")
	convertParams := addConvertParams(convertCmd)

	recordCmd := app.Command("record", "Store a profile as a finished run, if the retention policy keeps it.")
	recordParams := addRecordParams(recordCmd)

	listCmd := app.Command("list", "List stored profiles, slowest first.")
	listParams := addListParams(listCmd)

	statsCmd := app.Command("stats", "Show the number of stored profiles and their total duration per scope.")
	statsParams := addStatsParams(statsCmd)

	showCmd := app.Command("show", "Print the flame graph of a stored profile.")
	showParams := addShowParams(showCmd)

	purgeCmd := app.Command("purge", "Enforce the retention quotas once.")

	expireCmd := app.Command("expire", "Delete unlocked profiles older than a given age.")
	expireParams := addExpireParams(expireCmd)

	lockCmd := app.Command("lock", "Exempt a profile from eviction and expiry.")
	lockParams := addLockParams(lockCmd)
	unlockCmd := app.Command("unlock", "Make a locked profile evictable again.")
	unlockParams := addUnlockParams(unlockCmd)

	runCmd := app.Command("run", "Run the eviction service until interrupted.")

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	ctx := fkcontext.WithLogger(context.Background(), logger)
	ctx = withOutput(ctx, os.Stdout)

	if parsedCmd == convertCmd.FullCommand() {
		os.Exit(checkError(convertProfile(ctx, convertParams)))
	}

	f, err := newFlamekeeper(ctx)
	if err != nil {
		os.Exit(checkError(err))
	}
	defer func() {
		if err := f.Close(); err != nil {
			level.Warn(logger).Log("msg", "failed to close", "err", err)
		}
	}()

	switch parsedCmd {
	case recordCmd.FullCommand():
		err = record(ctx, f, recordParams)
	case listCmd.FullCommand():
		err = list(ctx, f, listParams)
	case statsCmd.FullCommand():
		err = stats(ctx, f, statsParams)
	case showCmd.FullCommand():
		err = show(ctx, f, showParams)
	case purgeCmd.FullCommand():
		err = purge(ctx, f)
	case expireCmd.FullCommand():
		err = expire(ctx, f, expireParams)
	case lockCmd.FullCommand():
		err = lock(ctx, f, lockParams)
	case unlockCmd.FullCommand():
		err = unlock(ctx, f, unlockParams)
	case runCmd.FullCommand():
		err = run(ctx, f)
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
	if code := checkError(err); code != 0 {
		_ = f.Close()
		os.Exit(code)
	}
}

func newFlamekeeper(ctx context.Context) (*flamekeeper.Flamekeeper, error) {
	c := flamekeeper.DefaultConfig()
	if cfg.configFile != "" {
		if err := c.LoadFile(cfg.configFile); err != nil {
			return nil, err
		}
	}
	if cfg.storage != "" {
		c.Storage.Type = cfg.storage
	}
	if cfg.dbURL != "" {
		c.Storage.SQL.URL = cfg.dbURL
	}
	return flamekeeper.New(ctx, c)
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
