package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/cleaner"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/loader"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// ErrContractViolation marks an invocation that broke the pipeline's calling
// contract. It aborts the whole invocation.
var ErrContractViolation = errors.New("contract violation")

// ErrDependencyFailed marks a dataset skipped because a dataset it depends on failed
var ErrDependencyFailed = errors.New("dependency failed")

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionSkipDataset indicates the current dataset should be given up
	ActionSkipDataset
	// ActionAbort indicates the entire invocation should be aborted
	ActionAbort
)

// ErrorCategory defines categories of errors during a run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryWarning
	ErrorCategoryInputDefect
	ErrorCategoryTransformation
	ErrorCategoryResolverUnavailable
	ErrorCategoryDependencyFailed
	ErrorCategoryPersistence
	ErrorCategoryContractViolation
	ErrorCategoryCanceled
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryInputDefect:
		return "InputDefect"
	case ErrorCategoryTransformation:
		return "TransformationFailure"
	case ErrorCategoryResolverUnavailable:
		return "ResolverUnavailable"
	case ErrorCategoryDependencyFailed:
		return "DependencyFailed"
	case ErrorCategoryPersistence:
		return "Persistence"
	case ErrorCategoryContractViolation:
		return "ContractViolation"
	case ErrorCategoryCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// MarshalText renders the category by name in reports
func (ec ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category  ErrorCategory `json:"category" yaml:"category"`
	Dataset   model.Kind    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Stage     string        `json:"stage,omitempty" yaml:"stage,omitempty"`
	Message   string        `json:"message" yaml:"message"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Err       error         `json:"-" yaml:"-"`
}

// NewErrorRecord creates a new error record with current timestamp. The
// category and stage are derived from err.
func NewErrorRecord(err error) ErrorRecord {
	record := ErrorRecord{
		Category:  CategorizeError(err),
		Err:       err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}

	var stageErr *cleaner.StageError
	if errors.As(err, &stageErr) {
		record.Dataset = stageErr.Dataset
		record.Stage = stageErr.Stage
	}
	var defect *loader.InputDefect
	if errors.As(err, &defect) {
		record.Dataset = defect.Dataset
		record.Stage = "load"
	}
	return record
}

// WithDataset adds dataset information to the error record
func (r ErrorRecord) WithDataset(kind model.Kind) ErrorRecord {
	r.Dataset = kind
	return r
}

// WithStage adds stage information to the error record
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))
	if r.Dataset != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s ", r.Dataset))
	}
	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}
	sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	return sb.String()
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	var defect *loader.InputDefect
	var stageErr *cleaner.StageError

	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCanceled
	case errors.Is(err, ErrContractViolation):
		return ErrorCategoryContractViolation
	case errors.Is(err, ErrDependencyFailed):
		return ErrorCategoryDependencyFailed
	case errors.Is(err, resolver.ErrResolverUnavailable):
		return ErrorCategoryResolverUnavailable
	case errors.As(err, &defect), errors.Is(err, model.ErrDatasetUnavailable):
		return ErrorCategoryInputDefect
	case errors.As(err, &stageErr):
		return ErrorCategoryTransformation
	default:
		return ErrorCategoryPersistence
	}
}

// ErrorHandler records the errors of one invocation and decides how each affects it
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		maxSamples:   5,
	}
}

// HandleError records an error and determines the action
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryWarning:
		return ActionContinue
	case ErrorCategoryContractViolation, ErrorCategoryCanceled:
		return ActionAbort
	default:
		return ActionSkipDataset
	}
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++
	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if eh.logger == nil {
		return
	}
	level := zap.WarnLevel
	switch record.Category {
	case ErrorCategoryWarning:
		level = zap.InfoLevel
	case ErrorCategoryContractViolation, ErrorCategoryPersistence:
		level = zap.ErrorLevel
	}
	eh.logger.Log(level, "Pipeline error",
		zap.String("category", record.Category.String()),
		zap.String("dataset", string(record.Dataset)),
		zap.String("stage", record.Stage),
		zap.String("error", record.Message))
}

// GetErrorSummary returns error counts by category
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int, len(eh.errorCounts))
	for category, count := range eh.errorCounts {
		summary[category] = count
	}
	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord, len(eh.sampleErrors))
	for category, records := range eh.sampleErrors {
		samples[category] = append([]ErrorRecord(nil), records...)
	}
	return samples
}
