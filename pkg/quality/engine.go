package quality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// Reader provides the current batch of a dataset at a stage
type Reader interface {
	Read(ctx context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error)
}

// Options configures check thresholds
type Options struct {
	// Earliest acceptable order date
	HistoryFloor time.Time
	// Maximum sample rows kept per check
	SampleLimit int
	// Plural to singular table used when joining spec subcategories to the category map
	CategorySubstitutions map[string]string
	// Processing clock; defaults to time.Now
	Now func() time.Time
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		HistoryFloor:          time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		SampleLimit:           20,
		CategorySubstitutions: resolver.DefaultCategorySubstitutions(),
		Now:                   time.Now,
	}
}

// Report is the structured outcome of one quality run
type Report struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	Stage      model.Stage  `json:"stage" yaml:"stage"`
	Scope      []model.Kind `json:"scope" yaml:"scope"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Results    []Result     `json:"results" yaml:"results"`
}

// IssueCount returns the number of checks that found violations
func (r *Report) IssueCount() int {
	n := 0
	for _, res := range r.Results {
		if res.HasIssues() {
			n++
		}
	}
	return n
}

// ErrorCount returns the number of checks that could not be evaluated
func (r *Report) ErrorCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// Engine executes the check catalog
type Engine struct {
	logger     *zap.Logger
	opts       Options
	catalog    []Check
	categories *resolver.CategoryNormalizer
	codes      *resolver.Dictionaries
}

// NewEngine creates a quality engine with the standard catalog
func NewEngine(logger *zap.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultOptions().SampleLimit
	}
	if len(opts.CategorySubstitutions) == 0 {
		opts.CategorySubstitutions = resolver.DefaultCategorySubstitutions()
	}

	categories, err := resolver.NewCategoryNormalizer(opts.CategorySubstitutions, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build category normalizer: %w", err)
	}

	catalog := Catalog()
	seen := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate check id %s", c.ID)
		}
		seen[c.ID] = true
	}

	return &Engine{
		logger:     logger.Named("quality"),
		opts:       opts,
		catalog:    catalog,
		categories: categories,
		codes:      resolver.DefaultDictionaries(),
	}, nil
}

// Checks returns the catalog in execution order
func (e *Engine) Checks() []Check {
	out := make([]Check, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// Lookup returns a check by identifier
func (e *Engine) Lookup(id string) (Check, bool) {
	for _, c := range e.catalog {
		if c.ID == id {
			return c, true
		}
	}
	return Check{}, false
}

// Run executes every check whose datasets are in scope and collects every
// result. A check that cannot evaluate records its error; the run continues.
func (e *Engine) Run(ctx context.Context, reader Reader, stage model.Stage, scope []model.Kind) (*Report, error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if len(scope) == 0 {
		scope = model.AllKinds()
	}
	inScope := make(map[model.Kind]bool, len(scope))
	for _, k := range scope {
		inScope[k] = true
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Stage:     stage,
		Scope:     scope,
		StartedAt: e.opts.Now().UTC(),
	}
	ec := e.newEvalContext(ctx, reader, stage)

	for _, check := range e.catalog {
		if !check.InScope(inScope) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("quality run cancelled: %w", err)
		}
		report.Results = append(report.Results, e.evaluate(ec, check))
	}

	report.FinishedAt = e.opts.Now().UTC()
	e.logger.Info("Quality checks completed",
		zap.String("runId", report.RunID),
		zap.String("stage", string(stage)),
		zap.Int("checks", len(report.Results)),
		zap.Int("checksWithIssues", report.IssueCount()),
		zap.Int("checksFailed", report.ErrorCount()))

	return report, nil
}

// RunCheck executes a single check by identifier
func (e *Engine) RunCheck(ctx context.Context, reader Reader, stage model.Stage, id string) (Result, error) {
	check, ok := e.Lookup(id)
	if !ok {
		return Result{}, fmt.Errorf("unknown check %q", id)
	}
	return e.evaluate(e.newEvalContext(ctx, reader, stage), check), nil
}

func (e *Engine) evaluate(ec *evalContext, check Check) Result {
	res, err := check.eval(ec)
	res.CheckID = check.ID
	res.Dataset = check.datasetLabel()
	res.Category = check.Category
	res.Description = check.Description
	res.Metric = check.Metric
	res.Probe = check.Probe
	if err != nil {
		res.Error = err.Error()
		e.logger.Warn("Quality check could not be evaluated",
			zap.String("checkId", check.ID),
			zap.Error(err))
		return res
	}
	if res.Metric == MetricGroups && res.Count == 0 {
		res.Count = len(res.Groups)
	}
	e.logger.Debug("Quality check evaluated",
		zap.String("checkId", check.ID),
		zap.Int("count", res.Count))
	return res
}

func (e *Engine) newEvalContext(ctx context.Context, reader Reader, stage model.Stage) *evalContext {
	return &evalContext{
		ctx:        ctx,
		reader:     reader,
		stage:      stage,
		now:        e.opts.Now().UTC(),
		opts:       e.opts,
		categories: e.categories,
		codes:      e.codes,
		batches:    make(map[model.Kind]*model.Batch),
		errs:       make(map[model.Kind]error),
	}
}

// evalContext is shared by the checks of one run; each dataset is read once
type evalContext struct {
	ctx        context.Context
	reader     Reader
	stage      model.Stage
	now        time.Time
	opts       Options
	categories *resolver.CategoryNormalizer
	codes      *resolver.Dictionaries
	batches    map[model.Kind]*model.Batch
	errs       map[model.Kind]error
}

func (ec *evalContext) batch(kind model.Kind) (*model.Batch, error) {
	if b, ok := ec.batches[kind]; ok {
		return b, nil
	}
	if err, ok := ec.errs[kind]; ok {
		return nil, err
	}
	b, err := ec.reader.Read(ec.ctx, ec.stage, kind)
	if err == nil && b == nil {
		err = fmt.Errorf("%s: %w", kind, model.ErrDatasetUnavailable)
	}
	if err != nil {
		err = fmt.Errorf("failed to read %s %s: %w", ec.stage, kind, err)
		ec.errs[kind] = err
		return nil, err
	}
	ec.batches[kind] = b
	return b, nil
}

// col returns the stage-specific column name
func (ec *evalContext) col(kind model.Kind, name string) string {
	return model.MustLookup(kind).Field(name, ec.stage)
}

func (ec *evalContext) sample(samples []model.Record, row model.Record) []model.Record {
	if len(samples) >= ec.opts.SampleLimit {
		return samples
	}
	return append(samples, row)
}
