// Command menu-cli analyzes how Battalion Wars 2 menu buttons navigate
// between pages and answers queries over the saved report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/analysis"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/config"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/output"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/query"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/report"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/watcher"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/web"
)

const (
	exitOK            = 0
	exitInputError    = 1
	exitMissingReport = 2
)

// Debounce settings for --watch
const (
	watchQuietPeriod = 300 * time.Millisecond
	watchMaxWait     = 2 * time.Second
)

const usage = `Usage: menu-cli <command> [flags]

Commands:
  analyze   extract buttons and navigation, write the JSON and HTML reports
  search    search the report: menu-cli search <pattern>
  page      show one page: menu-cli page <name>
  list      list pages, --sort name|functions|connections
  serve     serve the report over HTTP

Run 'menu-cli <command> --help' for the flags of a command.
`

// usageError is a command-line mistake; it exits like an input error
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

type command struct {
	flags func(fs *pflag.FlagSet)
	args  int // positional arguments required
	run   func(ctx context.Context, env *env) error
}

// env is what a command runs with
type env struct {
	cfg    *config.Config
	args   []string
	stdout io.Writer
}

var commands = map[string]command{
	"analyze": {flags: analyzeFlags, run: runAnalyze},
	"search":  {flags: reportFlags, args: 1, run: runSearch},
	"page":    {flags: reportFlags, args: 1, run: runPage},
	"list":    {flags: listFlags, run: runList},
	"serve":   {flags: serveFlags, run: runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitInputError
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(stdout, usage)
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n%s", name, usage)
		return exitInputError
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	commonFlags(fs)
	cmd.flags(fs)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitInputError
	}
	if fs.NArg() != cmd.args {
		fmt.Fprintf(stderr, "Error: %s takes %d argument(s), got %d\n", name, cmd.args, fs.NArg())
		return exitInputError
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInputError
	}

	level := logging.ParseLevel(cfg.Verbosity)
	if verbose, _ := fs.GetBool("verbose"); verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logging.Setup(stderr, level, cfg.LogJSON)

	err = cmd.run(ctx, &env{cfg: cfg, args: fs.Args(), stdout: stdout})
	return exitCode(stderr, err)
}

// exitCode prints err and classifies it
func exitCode(stderr io.Writer, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)

	var missing *report.MissingReportError
	if errors.As(err, &missing) {
		return exitMissingReport
	}
	// Input errors, usage errors and anything unexpected
	return exitInputError
}

func commonFlags(fs *pflag.FlagSet) {
	fs.String("path", ".", "Directory with the level XML and page scripts")
	fs.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	fs.BoolP("verbose", "v", false, "Shorthand for --verbosity debug")
	fs.Bool("log-json", false, "Log as JSON")
}

func reportFlags(fs *pflag.FlagSet) {
	fs.String("out", "", "Report directory (default --path)")
	fs.String("report", "", "Report file (default <out>/"+config.ReportJSONName+")")
}

func analyzeFlags(fs *pflag.FlagSet) {
	reportFlags(fs)
	fs.String("xml", "Frontend2_Level.xml", "Level XML file, relative to --path")
	fs.String("scripts", "", "Page script directory (default --path)")
	fs.Bool("watch", false, "Re-run when the XML or a script changes")
	fs.Int("workers", 4, "Scripts scanned in parallel")
}

func listFlags(fs *pflag.FlagSet) {
	reportFlags(fs)
	fs.String("sort", query.SortName, "Sort by name, functions or connections")
}

func serveFlags(fs *pflag.FlagSet) {
	analyzeFlags(fs)
	fs.Int("port", 8080, "HTTP port")
}

func runAnalyze(ctx context.Context, e *env) error {
	runner := analysis.NewRunner(analysis.OptionsFromConfig(e.cfg), nil)

	runOnce := func(ctx context.Context, reason string) error {
		rep, err := runner.Run(ctx, reason)
		if err != nil {
			return err
		}
		output.PrintSummary(e.stdout, rep, e.cfg.ReportPath(), e.cfg.HTMLPath())
		fmt.Fprintln(e.stdout)
		output.PrintFlow(e.stdout, rep)
		return nil
	}

	err := runOnce(ctx, "analyze")
	if !e.cfg.Watch {
		return err
	}
	if err != nil {
		// Keep watching; the next save may fix the input
		logging.Error("analysis failed", "error", err)
	}

	return watcher.Watch(ctx, e.cfg.XMLPath(), e.cfg.ScriptsPath(), watchQuietPeriod, watchMaxWait,
		func(ctx context.Context, ev watcher.ChangeEvent) {
			if err := runOnce(ctx, watcher.Reason(ev)); err != nil {
				logging.Error("analysis failed", "error", err)
			}
		})
}

func loadReport(e *env) (*model.Report, error) {
	return report.Load(e.cfg.ReportPath())
}

func runSearch(_ context.Context, e *env) error {
	pattern := e.args[0]
	if pattern == "" {
		return &usageError{msg: "search pattern must not be empty"}
	}
	rep, err := loadReport(e)
	if err != nil {
		return err
	}
	output.PrintSearch(e.stdout, pattern, query.Search(rep, pattern))
	return nil
}

func runPage(_ context.Context, e *env) error {
	rep, err := loadReport(e)
	if err != nil {
		return err
	}
	name := e.args[0]
	page, ok := query.Lookup(rep, name)
	if !ok {
		output.PrintPageNotFound(e.stdout, name, rep)
		return nil
	}
	output.PrintPage(e.stdout, page)
	return nil
}

func runList(_ context.Context, e *env) error {
	rep, err := loadReport(e)
	if err != nil {
		return err
	}
	entries, err := query.List(rep, e.cfg.Sort)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	output.PrintList(e.stdout, entries, e.cfg.Sort)
	return nil
}

func runServe(ctx context.Context, e *env) error {
	publisher := web.NewPublisher()
	srv := web.NewServer(e.cfg.ReportPath(), publisher)

	if !e.cfg.Watch {
		if err := srv.Reload(); err != nil {
			return err
		}
		return srv.Start(ctx, e.cfg.Port)
	}

	runner := analysis.NewRunner(analysis.OptionsFromConfig(e.cfg), publisher)
	if _, err := runner.Run(ctx, "serve"); err != nil {
		logging.Error("analysis failed", "error", err)
		// Serve the last good report, if any
		if err := srv.Reload(); err != nil {
			logging.Warn("no report to serve yet", "error", err)
		}
	}

	go srv.FollowReports(ctx)
	go func() {
		err := watcher.Watch(ctx, e.cfg.XMLPath(), e.cfg.ScriptsPath(), watchQuietPeriod, watchMaxWait,
			func(ctx context.Context, ev watcher.ChangeEvent) {
				if _, err := runner.Run(ctx, watcher.Reason(ev)); err != nil {
					logging.Error("analysis failed", "error", err)
				}
			})
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("watcher stopped", "error", err)
		}
	}()

	return srv.Start(ctx, e.cfg.Port)
}
