// Package pipeline runs the survey extraction: it loads the reference
// files and raw results once, runs the derivation modules of the survey
// year, and writes every table as parquet.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/obsprep/internal/cache"
	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/columnar"
	"github.com/sells-group/obsprep/internal/config"
	"github.com/sells-group/obsprep/internal/derive"
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/routes"
	"github.com/sells-group/obsprep/internal/sheet"
	"github.com/sells-group/obsprep/internal/store"
	"github.com/sells-group/obsprep/internal/survey"
)

// Fixed output table names. Module tables are named after their module.
const (
	TableRoutes  = "routes"
	TableResults = "results"
)

// Options tune a single run.
type Options struct {
	// RefreshCache rebuilds the results snapshot even when it is current.
	RefreshCache bool
	// NoCache reads the results file directly and leaves the snapshot alone.
	NoCache bool
	// OnStep is called after each step completes.
	OnStep func(step string)
}

// Output is one table written by a run.
type Output struct {
	Name  string
	Path  string
	Table *frame.Table
}

// Result holds everything a run produced. Tables are populated once and
// read-only afterwards.
type Result struct {
	RunID    string
	Variant  survey.Variant
	Routes   *routes.Table
	Codebook *codebook.Codebook
	Results  *frame.Table
	Modules  []Output
	Combined *frame.Table
	Outputs  []Output
	CacheHit bool
	Quality  *derive.Quality
}

// Pipeline extracts one survey year.
type Pipeline struct {
	year    survey.Year
	cfg     *config.SurveyConfig
	variant survey.Variant
	modules []derive.Module
	store   store.Store
	cache   *cache.Cache
}

// New creates a pipeline for year. st records the run and the snapshot
// manifest; it may be nil, in which case nothing is recorded and the
// results are always read from the source file.
func New(year survey.Year, cfg *config.SurveyConfig, st store.Store) (*Pipeline, error) {
	variant, err := cfg.Variant(year)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: survey variant")
	}
	modules, err := derive.NewRegistry().Select(variant.Modules)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select modules")
	}

	p := &Pipeline{
		year:    year,
		cfg:     cfg,
		variant: variant,
		modules: modules,
		store:   st,
	}
	if st != nil && cfg.CacheDir != "" {
		p.cache = cache.New(cfg.CacheDir, st)
	}
	return p, nil
}

// Steps lists the step names reported through Options.OnStep, in order.
func (p *Pipeline) Steps() []string {
	steps := []string{"routes", "codebook", "results"}
	for _, m := range p.modules {
		steps = append(steps, "derive "+m.Name())
	}
	return append(steps, "combine", "write")
}

// Roles returns the raw column roles the enabled modules read, plus the ID.
func (p *Pipeline) Roles() []survey.Role {
	roles := []survey.Role{survey.RoleID}
	seen := map[survey.Role]bool{survey.RoleID: true}
	for _, m := range p.modules {
		for _, r := range m.Roles() {
			if !seen[r] {
				seen[r] = true
				roles = append(roles, r)
			}
		}
	}
	return roles
}

// Run executes the extraction and records it in the run ledger.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.Stringer("year", p.year))
	log.Info("pipeline: starting extraction")

	result := &Result{Variant: p.variant, Quality: &derive.Quality{}}

	if p.store != nil {
		run, err := p.store.StartRun(ctx, int(p.year))
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: start run")
		}
		result.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	err := p.run(ctx, log, opts, result)
	if p.store != nil {
		// The outcome is recorded even when ctx was canceled mid-run.
		ledgerCtx := context.WithoutCancel(ctx)
		if err != nil {
			if failErr := p.store.FailRun(ledgerCtx, result.RunID, err); failErr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
			}
		} else if doneErr := p.store.CompleteRun(ledgerCtx, result.RunID, summarize(result, p.cfg.SaveDir)); doneErr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(doneErr))
		}
	}
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: extraction complete",
		zap.Int("rows", result.Combined.Len()),
		zap.Int("columns", len(result.Combined.Names())),
		zap.Int("data_quality_issues", result.Quality.Total()),
		zap.Bool("cache_hit", result.CacheHit),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, opts Options, result *Result) error {
	step := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "pipeline: %s", name)
		}
		start := time.Now()
		if err := fn(); err != nil {
			log.Error("pipeline: step failed", zap.String("step", name), zap.Error(err))
			return err
		}
		log.Debug("pipeline: step complete",
			zap.String("step", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		if opts.OnStep != nil {
			opts.OnStep(name)
		}
		return nil
	}

	if err := step("routes", func() (err error) {
		result.Routes, err = LoadRoutes(p.cfg.RoutesPath)
		return err
	}); err != nil {
		return err
	}

	if err := step("codebook", func() (err error) {
		if p.cfg.DataDictionaryPath == "" {
			if len(p.variant.Variables) > 0 {
				return eris.Errorf("pipeline: survey %s needs data_dictionary_path", p.year)
			}
			return nil
		}
		result.Codebook, err = LoadCodebook(p.cfg.DataDictionaryPath, p.cfg.DataDictionarySheet)
		return err
	}); err != nil {
		return err
	}

	if err := step("results", func() error {
		tbl, hit, err := p.loadResults(ctx, opts)
		if err != nil {
			return err
		}
		result.Results, result.CacheHit = tbl, hit
		return nil
	}); err != nil {
		return err
	}

	in := &derive.Input{
		Results:  result.Results,
		Variant:  p.variant,
		Codebook: result.Codebook,
		Routes:   result.Routes,
		Quality:  result.Quality,
	}
	groups := make([]frame.Group, 0, len(p.modules))
	for _, m := range p.modules {
		if err := step("derive "+m.Name(), func() error {
			tbl, err := m.Derive(in)
			if err != nil {
				return eris.Wrapf(err, "pipeline: derive %s", m.Name())
			}
			result.Modules = append(result.Modules, Output{Name: m.Name(), Table: tbl})
			groups = append(groups, frame.Group{Name: m.Name(), Table: tbl})
			return nil
		}); err != nil {
			return err
		}
	}

	if err := step("combine", func() (err error) {
		result.Combined, err = frame.Concat(result.Results.IndexName, result.Results.Index, groups...)
		if err != nil {
			return eris.Wrap(err, "pipeline: combine")
		}
		if result.Combined.Len() != result.Results.Len() {
			return eris.Errorf("pipeline: combined table has %d rows, results have %d",
				result.Combined.Len(), result.Results.Len())
		}
		return nil
	}); err != nil {
		return err
	}

	return step("write", func() error {
		return p.write(result)
	})
}

// loadResults reads the raw results through the snapshot cache when one is
// configured, then checks the columns the enabled modules need.
func (p *Pipeline) loadResults(ctx context.Context, opts Options) (*frame.Table, bool, error) {
	idColumn, ok := p.variant.Schema.Column(survey.RoleID)
	if !ok {
		return nil, false, eris.Errorf("pipeline: survey %s has no ID column", p.year)
	}
	read := func(context.Context) (*frame.Table, error) {
		t, err := sheet.ReadFile(p.cfg.ResultsPath, p.cfg.ResultsSheet)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: read results")
		}
		return ResultsFrame(t, idColumn)
	}

	var (
		tbl *frame.Table
		hit bool
		err error
	)
	if p.cache == nil || opts.NoCache {
		tbl, err = read(ctx)
	} else {
		var res *cache.Result
		res, err = p.cache.Load(ctx, int(p.year), p.cfg.ResultsPath, p.cfg.ResultsSheet, opts.RefreshCache, read)
		if res != nil {
			tbl, hit = res.Table, res.Hit
		}
	}
	if err != nil {
		return nil, false, err
	}

	if tbl.IndexName != idColumn {
		return nil, false, eris.Errorf("pipeline: results indexed by %q, want %q", tbl.IndexName, idColumn)
	}
	has := func(name string) bool {
		_, ok := tbl.Column(name)
		return ok || name == tbl.IndexName
	}
	if err := p.variant.Schema.Require(has, p.Roles()...); err != nil {
		return nil, false, eris.Wrapf(err, "pipeline: survey %s", p.year)
	}
	return tbl, hit, nil
}

func (p *Pipeline) write(result *Result) error {
	routesFrame, err := result.Routes.Frame()
	if err != nil {
		return eris.Wrap(err, "pipeline: routes frame")
	}

	outputs := []Output{
		{Name: TableRoutes, Table: routesFrame},
		{Name: TableResults, Table: result.Results},
	}
	outputs = append(outputs, result.Modules...)
	outputs = append(outputs, Output{Name: p.variant.OutputName(), Table: result.Combined})

	for i := range outputs {
		outputs[i].Path = filepath.Join(p.cfg.SaveDir, outputs[i].Name+columnar.Ext)
		if err := columnar.Write(outputs[i].Path, outputs[i].Table); err != nil {
			return eris.Wrapf(err, "pipeline: save %s", outputs[i].Name)
		}
	}
	result.Outputs = outputs
	return nil
}

func summarize(r *Result, saveDir string) *store.RunResult {
	out := &store.RunResult{
		Issues:    r.Quality.Total(),
		CacheHit:  r.CacheHit,
		OutputDir: saveDir,
	}
	if r.Combined != nil {
		out.Rows = r.Combined.Len()
		out.Columns = len(r.Combined.Names())
	}
	for _, o := range r.Outputs {
		out.Tables = append(out.Tables, o.Name)
	}
	return out
}
