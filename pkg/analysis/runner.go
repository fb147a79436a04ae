// Package analysis runs the full pipeline: find scripts, extract widgets,
// scan scripts, correlate, and write the reports.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/config"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/correlate"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/finder"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/lua"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/pubsub"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/report"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/xmlgui"
)

const totalSteps = 5

// Options configures one analysis
type Options struct {
	XMLPath    string
	ScriptsDir string
	JSONPath   string // where Run writes the JSON report
	HTMLPath   string // where Run writes the HTML report; empty skips it
	Workers    int

	Extract xmlgui.Config
	Scan    lua.Config
	Match   correlate.Config
}

// OptionsFromConfig maps the loaded configuration onto runner options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		XMLPath:    cfg.XMLPath(),
		ScriptsDir: cfg.ScriptsPath(),
		JSONPath:   cfg.ReportPath(),
		HTMLPath:   cfg.HTMLPath(),
		Workers:    cfg.Workers,
		Extract: xmlgui.Config{
			Element:  cfg.Extract.Element,
			Types:    cfg.Extract.Types,
			NameKeys: cfg.Extract.NameKeys,
		},
		Scan: lua.Config{
			GotoPrefixes: cfg.Scan.GotoPrefixes,
			Verbs:        cfg.Scan.Verbs,
			RegisterFunc: cfg.Scan.RegisterFunc,
		},
		Match: correlate.Config{
			Handlers: cfg.Match.Handlers,
			FoldCase: cfg.Match.FoldCase,
		},
	}
}

// Runner orchestrates analysis runs. Runs are serialized.
type Runner struct {
	opts      Options
	publisher pubsub.Publisher
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewRunner creates a runner. publisher may be nil.
func NewRunner(opts Options, publisher pubsub.Publisher) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:      opts,
		publisher: publisher,
		logger:    logging.New("analysis"),
	}
}

// Analyze builds the report without writing anything.
// Any *model.InputError aborts the analysis.
func (r *Runner) Analyze(ctx context.Context) (*model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyze(ctx)
}

// Run analyzes and writes both reports. Nothing is written if the analysis fails.
func (r *Runner) Run(ctx context.Context, reason string) (*model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("starting analysis", "reason", reason)
	rep, err := r.analyze(ctx)
	if err != nil {
		r.status("error", err.Error(), 0)
		return nil, err
	}

	r.status("writing", "Writing reports", 5)
	if err := report.Save(r.opts.JSONPath, rep); err != nil {
		r.status("error", err.Error(), 5)
		return nil, fmt.Errorf("save report: %w", err)
	}
	if r.opts.HTMLPath != "" {
		if err := report.SaveHTML(r.opts.HTMLPath, rep); err != nil {
			r.status("error", err.Error(), 5)
			return nil, fmt.Errorf("save html report: %w", err)
		}
	}

	r.status("ready", "Analysis complete", totalSteps)
	r.publish(pubsub.TopicReport, "updated", pubsub.ReportStatus{
		Path:       r.opts.JSONPath,
		Pages:      rep.Summary.TotalPages,
		Buttons:    rep.Summary.TotalButtons,
		Edges:      rep.Summary.ResolvedEdges,
		Unresolved: rep.Summary.UnresolvedCalls,
	})
	r.logger.Info("analysis complete", "reason", reason, "report", r.opts.JSONPath,
		"pages", rep.Summary.TotalPages, "edges", rep.Summary.ResolvedEdges)
	return rep, nil
}

func (r *Runner) analyze(ctx context.Context) (*model.Report, error) {
	r.status("discovering", "Finding page scripts", 1)
	files, err := finder.FindScripts(r.opts.ScriptsDir)
	if err != nil {
		return nil, &model.InputError{File: r.opts.ScriptsDir, Offset: -1, Err: err}
	}
	r.logger.Debug("found scripts", "dir", r.opts.ScriptsDir, "count", len(files))

	r.status("extracting", "Extracting widgets", 2)
	r.logger.Debug("extractor config", "config", r.opts.Extract.String())
	extracted, err := xmlgui.NewExtractor(r.opts.Extract).ExtractFile(r.opts.XMLPath)
	if err != nil {
		return nil, err
	}

	r.status("scanning", fmt.Sprintf("Scanning %d scripts", len(files)), 3)
	scripts, err := r.scanAll(ctx, files)
	if err != nil {
		return nil, err
	}

	r.status("correlating", "Building navigation graph", 4)
	rep := correlate.NewBuilder(r.opts.Match).Build(correlate.Input{
		XMLFile: r.opts.XMLPath,
		Objects: extracted.Objects,
		Skipped: extracted.Skipped,
		Scripts: scripts,
	})
	return rep, nil
}

// scanAll scans files in parallel. Results keep the file order; when several
// files fail, the error of the first one in that order is returned.
func (r *Runner) scanAll(ctx context.Context, files []string) ([]*lua.Result, error) {
	scanner := lua.NewScanner(r.opts.Scan)
	results := make([]*lua.Result, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = scanner.ScanFile(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (r *Runner) status(state, message string, step int) {
	r.publish(pubsub.TopicAnalysis, state, pubsub.AnalysisStatus{
		State:   state,
		Message: message,
		Step:    step,
		Total:   totalSteps,
	})
}

func (r *Runner) publish(topic, eventType string, data any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(topic, eventType, data); err != nil {
		r.logger.Debug("publish failed", "topic", topic, "error", err)
	}
}
