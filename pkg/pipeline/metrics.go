package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/quality"
)

const metricsNamespace = "zenith_warehouse"

// Metrics holds the Prometheus collectors for pipeline runs. Each instance owns
// its registry so runs and tests never share state.
type Metrics struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	// RowsTotal counts rows by dataset and phase (read, loaded, rejected, deduplicated, cleansed)
	RowsTotal *prometheus.CounterVec
	// DatasetFailuresTotal counts fatal dataset errors by dataset, stage and category
	DatasetFailuresTotal *prometheus.CounterVec
	// CleaningOperationsTotal counts audited value changes by dataset
	CleaningOperationsTotal *prometheus.CounterVec
	// QualityIssues is the number of failing checks of the last quality run per stage
	QualityIssues *prometheus.GaugeVec
	// VerificationIssues is the number of post-cleanse invariant violations per dataset
	VerificationIssues *prometheus.GaugeVec
	// PhaseDurationSeconds measures each pipeline phase
	PhaseDurationSeconds *prometheus.HistogramVec
	// LastSuccess is the unix time of the last run that finished without dataset failures
	LastSuccess prometheus.Gauge
}

// NewMetrics registers the pipeline collectors on a fresh registry
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logger:   logger.Named("metrics"),
		RowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_total",
			Help:      "Rows processed by dataset and phase",
		}, []string{"dataset", "phase"}),
		DatasetFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_failures_total",
			Help:      "Fatal dataset errors by dataset, stage and category",
		}, []string{"dataset", "stage", "category"}),
		CleaningOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cleaning_operations_total",
			Help:      "Audited value changes made while cleansing",
		}, []string{"dataset"}),
		QualityIssues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "quality_issues",
			Help:      "Checks with violations in the last quality run",
		}, []string{"stage"}),
		VerificationIssues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "verification_issues",
			Help:      "Post-cleanse invariant violations in the last run",
		}, []string{"dataset"}),
		PhaseDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"phase"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run without dataset failures",
		}),
	}
}

// Registry exposes the registry for scraping or tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePhase records how long a phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDurationSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordLoad records one dataset's load outcome
func (m *Metrics) RecordLoad(res *DatasetResult) {
	if res.Status == StatusLoaded {
		m.RowsTotal.WithLabelValues(string(res.Dataset), "loaded").Add(float64(res.RowsLoaded))
	}
	m.recordFailures(res)
}

// RecordCleansing records one dataset's cleansing outcome
func (m *Metrics) RecordCleansing(res *DatasetResult) {
	kind := string(res.Dataset)
	m.RowsTotal.WithLabelValues(kind, "read").Add(float64(res.RowsLoaded))
	if res.Status == StatusCleansed {
		m.RowsTotal.WithLabelValues(kind, "rejected").Add(float64(res.RowsRejected))
		m.RowsTotal.WithLabelValues(kind, "deduplicated").Add(float64(res.RowsDeduplicated))
		m.RowsTotal.WithLabelValues(kind, "cleansed").Add(float64(res.RowsCleansed))
		m.CleaningOperationsTotal.WithLabelValues(kind).Add(float64(res.CleaningOperations))
	}
	m.recordFailures(res)
}

func (m *Metrics) recordFailures(res *DatasetResult) {
	for _, e := range res.Errors {
		m.DatasetFailuresTotal.WithLabelValues(string(res.Dataset), e.Stage, e.Category.String()).Inc()
	}
}

// RecordQuality records the issue count of a quality report
func (m *Metrics) RecordQuality(report *quality.Report) {
	if report == nil {
		return
	}
	m.QualityIssues.WithLabelValues(string(report.Stage)).Set(float64(report.IssueCount()))
}

// RecordVerification records the invariant violations found for a dataset
func (m *Metrics) RecordVerification(kind model.Kind, v *Verification) {
	if v == nil {
		return
	}
	m.VerificationIssues.WithLabelValues(string(kind)).Set(float64(len(v.Issues)))
}

// RecordRun marks a completed run
func (m *Metrics) RecordRun(report *RunReport) {
	if report.Succeeded() {
		m.LastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

// Push sends the registry to a Prometheus push gateway
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	m.logger.Debug("Pushed metrics", zap.String("gateway", gatewayURL), zap.String("job", job))
	return nil
}
