// Package pipeline orchestrates a warehouse run: load raw extracts, check
// quality, cleanse each dataset in dependency order and check quality again.
// Failures are isolated per dataset; only contract violations abort an
// invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/cleaner"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/loader"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/quality"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
)

// Phase names used for durations and logs
const (
	PhaseLoad         = "load"
	PhaseRawQuality   = "raw_quality"
	PhaseCleansing    = "cleansing"
	PhaseCleanQuality = "clean_quality"
)

// Options configures a Manager
type Options struct {
	// Abort cleansing when a dataset's resolver cannot be built
	RequireResolvers bool
	// Plural to singular table for the category normalizer
	CategorySubstitutions map[string]string
	// Push gateway receiving metrics at the end of Run; empty disables pushing
	PushGateway string
	// Push gateway job name
	PushJob string
}

// Manager orchestrates pipeline invocations against one warehouse. Invocations
// are serialized: the clean store has a single writer.
type Manager struct {
	warehouse store.Warehouse
	loader    *loader.Loader
	cleaner   *cleaner.DataCleaner
	quality   *quality.Engine
	verifier  *Verifier
	metrics   *Metrics
	logger    *zap.Logger
	opts      Options
	mu        sync.Mutex
}

// NewManager creates a pipeline manager. ld may be nil when the raw store is
// filled by other means; LoadRaw and Run then fail.
func NewManager(
	warehouse store.Warehouse,
	ld *loader.Loader,
	dataCleaner *cleaner.DataCleaner,
	engine *quality.Engine,
	metrics *Metrics,
	logger *zap.Logger,
	opts Options,
) (*Manager, error) {
	if warehouse == nil {
		return nil, errors.New("warehouse cannot be nil")
	}
	if dataCleaner == nil {
		return nil, errors.New("cleaner cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("quality engine cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if metrics == nil {
		metrics = NewMetrics(logger)
	}
	if len(opts.CategorySubstitutions) == 0 {
		opts.CategorySubstitutions = resolver.DefaultCategorySubstitutions()
	}

	return &Manager{
		warehouse: warehouse,
		loader:    ld,
		cleaner:   dataCleaner,
		quality:   engine,
		verifier:  NewVerifier(logger),
		metrics:   metrics,
		logger:    logger.Named("pipeline"),
		opts:      opts,
	}, nil
}

// Metrics returns the manager's collectors
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// LoadRaw truncates and reloads the raw store for a scope. An empty scope
// reloads every dataset.
func (m *Manager) LoadRaw(ctx context.Context, scope []model.Kind) ([]*DatasetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadRaw(ctx, resolveScope(scope), NewErrorHandler(m.logger))
}

func (m *Manager) loadRaw(ctx context.Context, scope []model.Kind, handler *ErrorHandler) ([]*DatasetResult, error) {
	if m.loader == nil {
		return nil, fmt.Errorf("no raw source configured: %w", ErrContractViolation)
	}
	start := time.Now()
	defer func() { m.metrics.ObservePhase(PhaseLoad, time.Since(start)) }()

	loaded, err := m.loader.Load(ctx, scope)
	results := make([]*DatasetResult, 0, len(loaded))
	for _, l := range loaded {
		res := &DatasetResult{Dataset: l.Dataset, RowsLoaded: l.Rows, StartTime: time.Now().Add(-l.Duration)}
		status := StatusLoaded
		if l.Err != nil {
			rec := NewErrorRecord(l.Err).WithDataset(l.Dataset).WithStage(PhaseLoad)
			handler.HandleError(rec)
			res.AddError(rec)
			status = StatusUnavailable
		}
		res.Complete(status)
		m.metrics.RecordLoad(res)
		results = append(results, res)
	}
	if err != nil {
		return results, fmt.Errorf("failed to load raw datasets: %w", err)
	}
	return results, nil
}

// RunQualityChecks runs the catalog entries whose datasets are in scope
func (m *Manager) RunQualityChecks(ctx context.Context, stage model.Stage, scope []model.Kind) (*quality.Report, error) {
	start := time.Now()
	phase := PhaseRawQuality
	if stage == model.StageClean {
		phase = PhaseCleanQuality
	}
	defer func() { m.metrics.ObservePhase(phase, time.Since(start)) }()

	report, err := m.quality.Run(ctx, m.warehouse, stage, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s quality checks: %w", stage, err)
	}
	m.metrics.RecordQuality(report)
	return report, nil
}

// RunCleansing cleanses every dataset in scope in dependency order
func (m *Manager) RunCleansing(ctx context.Context, scope []model.Kind) ([]*DatasetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := NewRunReport(scope)
	err := m.runCleansing(ctx, report, NewErrorHandler(m.logger))
	return report.Cleansing, err
}

func (m *Manager) runCleansing(ctx context.Context, report *RunReport, handler *ErrorHandler) error {
	start := time.Now()
	defer func() { m.metrics.ObservePhase(PhaseCleansing, time.Since(start)) }()

	if err := m.checkRawAvailable(ctx); err != nil {
		handler.HandleError(NewErrorRecord(err))
		return err
	}

	jobs, err := Plan(report.Scope)
	if err != nil {
		return err
	}

	fresh := make(map[model.Kind]*model.Batch)
	failed := make(map[model.Kind]bool)
	if report.Verification == nil {
		report.Verification = make(map[model.Kind]*Verification)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, v, err := m.cleanseJob(ctx, report.RunID, job, fresh, failed, handler)
		report.Cleansing = append(report.Cleansing, res)
		m.metrics.RecordCleansing(res)
		if v != nil {
			report.Verification[job.Dataset] = v
			m.metrics.RecordVerification(job.Dataset, v)
		}
		if err != nil {
			return err
		}
		if res.Status != StatusCleansed {
			failed[job.Dataset] = true
		}
	}
	return nil
}

// checkRawAvailable enforces that cleansing only runs after some raw data was loaded
func (m *Manager) checkRawAvailable(ctx context.Context) error {
	statuses, err := m.warehouse.Status(ctx, model.StageRaw)
	if err != nil {
		return fmt.Errorf("failed to read raw store status: %w", err)
	}
	for _, s := range statuses {
		if s.Available {
			return nil
		}
	}
	return fmt.Errorf("cleansing invoked before any raw data was loaded: %w", ErrContractViolation)
}

// cleanseJob cleanses one dataset. The returned error aborts the invocation;
// dataset-level failures are reported in the result.
func (m *Manager) cleanseJob(
	ctx context.Context,
	runID string,
	job DatasetJob,
	fresh map[model.Kind]*model.Batch,
	failed map[model.Kind]bool,
	handler *ErrorHandler,
) (*DatasetResult, *Verification, error) {
	res := newDatasetResult(job.Dataset)
	res.JobID = job.ID
	logger := m.logger.With(zap.String("dataset", string(job.Dataset)), zap.String("jobId", job.ID))

	fail := func(err error, status Status) (*DatasetResult, *Verification, error) {
		rec := NewErrorRecord(err).WithDataset(job.Dataset)
		res.AddError(rec)
		res.Complete(status)
		if handler.HandleError(rec) == ActionAbort {
			return res, nil, err
		}
		return res, nil, nil
	}

	for _, dep := range job.Dependencies {
		if failed[dep] {
			logger.Warn("Skipping dataset whose dependency failed", zap.String("dependency", string(dep)))
			return fail(fmt.Errorf("%s: %w", dep, ErrDependencyFailed), StatusSkipped)
		}
	}

	resolvers, err := m.buildResolvers(ctx, job, fresh)
	if err != nil {
		return fail(err, StatusFailed)
	}

	raw, err := m.warehouse.Read(ctx, model.StageRaw, job.Dataset)
	if err != nil && !errors.Is(err, model.ErrDatasetUnavailable) {
		return fail(err, StatusFailed)
	}
	if raw != nil {
		res.RowsLoaded = raw.Len()
	}

	result, err := m.cleaner.Cleanse(ctx, job.Dataset, raw, resolvers)
	if err != nil {
		return fail(err, StatusFailed)
	}
	res.RowsRejected = result.RowsRejected
	res.RowsDeduplicated = result.RowsDeduplicated
	res.RowsCleansed = result.Batch.Len()
	res.ResolverFallbacks = result.ResolverFallbacks
	res.CleaningOperations = len(result.Operations)

	v := m.verifier.Verify(raw, result.Batch, resolvers)
	for _, issue := range v.Issues {
		res.AddWarning(fmt.Sprintf("%s: %s", issue.IssueType, issue.Description))
	}

	if err := m.warehouse.Replace(ctx, result.Batch); err != nil {
		out, _, abort := fail(fmt.Errorf("failed to replace clean %s: %w", job.Dataset, err), StatusFailed)
		return out, v, abort
	}
	fresh[job.Dataset] = result.Batch

	for i := range result.Operations {
		result.Operations[i].RunID = runID
	}
	if err := m.warehouse.SaveAudit(ctx, result.Operations); err != nil {
		rec := NewErrorRecord(err).WithDataset(job.Dataset).WithStage("audit")
		rec.Category = ErrorCategoryWarning
		handler.RecordError(rec)
		res.AddWarning("audit trail not saved: " + err.Error())
	}

	res.Complete(StatusCleansed)
	logger.Info("Dataset cleansed",
		zap.Int("rowsLoaded", res.RowsLoaded),
		zap.Int("rowsCleansed", res.RowsCleansed),
		zap.Int("rowsRejected", res.RowsRejected),
		zap.Int("rowsDeduplicated", res.RowsDeduplicated),
		zap.Duration("duration", res.Duration))
	return res, v, nil
}

// buildResolvers constructs the resolvers a job needs, preferring clean
// output produced earlier in the same invocation over the clean store
func (m *Manager) buildResolvers(ctx context.Context, job DatasetJob, fresh map[model.Kind]*model.Batch) (resolver.Set, error) {
	set := resolver.Set{Codes: resolver.DefaultDictionaries()}

	for _, dep := range job.Dependencies {
		batch, err := m.cleanBatch(ctx, dep, fresh)
		if err != nil {
			return set, err
		}

		var buildErr error
		switch dep {
		case model.KindTerritory:
			set.Territory, buildErr = resolver.NewTerritoryResolver(batch)
		case model.KindCategoryMap:
			if batch == nil || batch.Len() == 0 {
				buildErr = fmt.Errorf("category map: %w", resolver.ErrResolverUnavailable)
				break
			}
			set.Category, buildErr = resolver.NewCategoryNormalizer(m.opts.CategorySubstitutions, batch, m.logger)
		}
		if buildErr == nil {
			continue
		}
		if !errors.Is(buildErr, resolver.ErrResolverUnavailable) {
			return set, buildErr
		}
		if m.opts.RequireResolvers {
			return set, fmt.Errorf("%s needs %s: %w: %w", job.Dataset, dep, buildErr, ErrContractViolation)
		}
		m.logger.Warn("Resolver unavailable, cleansing falls back to unverified values",
			zap.String("dataset", string(job.Dataset)),
			zap.String("dependency", string(dep)))
	}
	return set, nil
}

func (m *Manager) cleanBatch(ctx context.Context, kind model.Kind, fresh map[model.Kind]*model.Batch) (*model.Batch, error) {
	if b, ok := fresh[kind]; ok {
		return b, nil
	}
	b, err := m.warehouse.Read(ctx, model.StageClean, kind)
	if errors.Is(err, model.ErrDatasetUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read clean %s: %w", kind, err)
	}
	return b, nil
}

// Run executes load, raw checks, cleansing and clean checks for a scope
func (m *Manager) Run(ctx context.Context, scope []model.Kind) (*RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := NewRunReport(scope)
	scope = report.Scope
	handler := NewErrorHandler(m.logger)
	m.logger.Info("Starting pipeline run",
		zap.String("runId", report.RunID),
		zap.Int("datasets", len(scope)))

	finish := func(err error) (*RunReport, error) {
		report.Complete()
		report.ErrorCounts = make(map[string]int)
		for category, count := range handler.GetErrorSummary() {
			report.ErrorCounts[category.String()] = count
		}
		m.metrics.RecordRun(report)
		if pushErr := m.metrics.Push(ctx, m.opts.PushGateway, m.opts.PushJob); pushErr != nil {
			m.logger.Warn("Metrics push failed", zap.Error(pushErr))
		}
		m.logger.Info("Pipeline run finished",
			zap.String("runId", report.RunID),
			zap.Bool("succeeded", report.Succeeded()),
			zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
			zap.Error(err))
		return report, err
	}

	loaded, err := m.loadRaw(ctx, scope, handler)
	report.Load = loaded
	if err != nil {
		return finish(err)
	}

	if report.RawQuality, err = m.RunQualityChecks(ctx, model.StageRaw, scope); err != nil {
		return finish(err)
	}

	if err := m.runCleansing(ctx, report, handler); err != nil {
		return finish(err)
	}

	if report.CleanQuality, err = m.RunQualityChecks(ctx, model.StageClean, scope); err != nil {
		return finish(err)
	}
	return finish(nil)
}
