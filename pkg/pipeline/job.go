package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/quality"
)

// DatasetJob represents the cleansing of one dataset within an invocation
type DatasetJob struct {
	ID           string       // Unique job identifier
	Dataset      model.Kind   // Dataset to cleanse
	CreatedAt    time.Time    // Job creation timestamp
	Dependencies []model.Kind // Datasets whose clean output this job reads
}

// NewDatasetJob creates a job carrying the dataset's declared dependencies
func NewDatasetJob(kind model.Kind) DatasetJob {
	ds := model.MustLookup(kind)
	return DatasetJob{
		ID:           uuid.New().String(),
		Dataset:      kind,
		CreatedAt:    time.Now(),
		Dependencies: append([]model.Kind(nil), ds.DependsOn...),
	}
}

// Plan orders the jobs for a scope so every dataset follows the in-scope
// datasets it depends on. Ties keep catalog order, so the plan is deterministic.
func Plan(scope []model.Kind) ([]DatasetJob, error) {
	inScope := make(map[model.Kind]bool, len(scope))
	for _, k := range scope {
		if _, ok := model.Lookup(k); !ok {
			return nil, fmt.Errorf("unknown dataset %q", k)
		}
		inScope[k] = true
	}

	done := make(map[model.Kind]bool, len(scope))
	jobs := make([]DatasetJob, 0, len(inScope))
	for len(jobs) < len(inScope) {
		progressed := false
		for _, k := range model.AllKinds() {
			if !inScope[k] || done[k] {
				continue
			}
			ready := true
			for _, dep := range model.MustLookup(k).DependsOn {
				if inScope[dep] && !done[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			jobs = append(jobs, NewDatasetJob(k))
			done[k] = true
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among %v: %w", scope, ErrContractViolation)
		}
	}
	return jobs, nil
}

// Status is the outcome of one dataset in a run
type Status string

const (
	StatusLoaded      Status = "loaded"
	StatusUnavailable Status = "unavailable"
	StatusCleansed    Status = "cleansed"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
)

// DatasetResult represents the result of processing one dataset
type DatasetResult struct {
	JobID              string        `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Dataset            model.Kind    `json:"dataset" yaml:"dataset"`
	Status             Status        `json:"status" yaml:"status"`
	RowsLoaded         int           `json:"rows_loaded" yaml:"rows_loaded"`
	RowsRejected       int           `json:"rows_rejected" yaml:"rows_rejected"`
	RowsDeduplicated   int           `json:"rows_deduplicated" yaml:"rows_deduplicated"`
	RowsCleansed       int           `json:"rows_cleansed" yaml:"rows_cleansed"`
	ResolverFallbacks  int           `json:"resolver_fallbacks" yaml:"resolver_fallbacks"`
	CleaningOperations int           `json:"cleaning_operations" yaml:"cleaning_operations"`
	Errors             []ErrorRecord `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings           []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StartTime          time.Time     `json:"start_time" yaml:"start_time"`
	EndTime            time.Time     `json:"end_time" yaml:"end_time"`
	Duration           time.Duration `json:"duration" yaml:"duration"`
}

func newDatasetResult(kind model.Kind) *DatasetResult {
	return &DatasetResult{Dataset: kind, StartTime: time.Now()}
}

// Complete sets the final status and calculates duration
func (r *DatasetResult) Complete(status Status) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Status = status
}

// AddError adds an error to the result
func (r *DatasetResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a warning to the result
func (r *DatasetResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// FatalError returns the message of the error that stopped the dataset
func (r *DatasetResult) FatalError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[len(r.Errors)-1].String()
}

// RunReport is the structured outcome of one pipeline invocation
type RunReport struct {
	RunID        string                       `json:"run_id" yaml:"run_id"`
	StartedAt    time.Time                    `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time                    `json:"finished_at" yaml:"finished_at"`
	Scope        []model.Kind                 `json:"scope" yaml:"scope"`
	Load         []*DatasetResult             `json:"load,omitempty" yaml:"load,omitempty"`
	Cleansing    []*DatasetResult             `json:"cleansing,omitempty" yaml:"cleansing,omitempty"`
	RawQuality   *quality.Report              `json:"raw_quality,omitempty" yaml:"raw_quality,omitempty"`
	CleanQuality *quality.Report              `json:"clean_quality,omitempty" yaml:"clean_quality,omitempty"`
	ErrorCounts  map[string]int               `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
	Verification map[model.Kind]*Verification `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// NewRunReport starts a report for a scope. An empty scope covers every dataset.
func NewRunReport(scope []model.Kind) *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Scope:     resolveScope(scope),
	}
}

func resolveScope(scope []model.Kind) []model.Kind {
	if len(scope) == 0 {
		return model.AllKinds()
	}
	return append([]model.Kind(nil), scope...)
}

// Complete stamps the finish time
func (r *RunReport) Complete() {
	r.FinishedAt = time.Now()
}

// Succeeded reports whether every dataset loaded and cleansed without a fatal error
func (r *RunReport) Succeeded() bool {
	for _, res := range r.Load {
		if res.Status != StatusLoaded {
			return false
		}
	}
	for _, res := range r.Cleansing {
		if res.Status != StatusCleansed {
			return false
		}
	}
	return true
}

// Failed lists the datasets that failed or were skipped during cleansing
func (r *RunReport) Failed() []model.Kind {
	var out []model.Kind
	for _, res := range r.Cleansing {
		if res.Status == StatusFailed || res.Status == StatusSkipped {
			out = append(out, res.Dataset)
		}
	}
	return out
}
