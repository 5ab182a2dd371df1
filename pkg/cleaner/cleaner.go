// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// Stage names reported in StageError and in the cleaning audit trail
const (
	StageCoerce      = "coerce"
	StageFilter      = "filter"
	StageDeduplicate = "deduplicate"
	StageNormalize   = "normalize_text"
	StageMapCodes    = "map_codes"
	StageValidate    = "validate"
	StageRecompute   = "recompute"
	StageCorrect     = "cross_reference"
	StageRename      = "rename"
	StageStamp       = "stamp"
)

// StageError reports a cleansing failure with the dataset and the stage that raised it
type StageError struct {
	Dataset model.Kind
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cleansing %s failed at stage %s: %v", e.Dataset, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures the cleansing engine
type Options struct {
	// Per-dataset dedup policy overrides; datasets not listed use their default
	Dedup map[model.Kind]model.DedupPolicy
	// Fail datasets whose resolver is missing instead of falling back
	RequireResolvers bool
	// Processing clock; defaults to time.Now
	Now func() time.Time
}

// Result is the outcome of cleansing one dataset
type Result struct {
	Dataset           model.Kind
	Batch             *model.Batch
	RowsIn            int
	RowsRejected      int
	RowsDeduplicated  int
	ResolverFallbacks int
	Operations        []model.CleaningOperation
}

// DataCleaner runs the per-dataset cleansing pipeline
type DataCleaner struct {
	logger    *zap.Logger
	converter *converter.TypeConverter
	opts      Options
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(logger *zap.Logger, conv *converter.TypeConverter, opts Options) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("type converter cannot be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for kind, policy := range opts.Dedup {
		if err := validatePolicy(kind, policy); err != nil {
			return nil, err
		}
	}

	return &DataCleaner{
		logger:    logger.Named("cleaner"),
		converter: conv,
		opts:      opts,
	}, nil
}

// DedupPolicy returns the effective dedup policy for a dataset
func (c *DataCleaner) DedupPolicy(kind model.Kind) model.DedupPolicy {
	if p, ok := c.opts.Dedup[kind]; ok {
		return p
	}
	return model.MustLookup(kind).Dedup
}

// Cleanse derives the clean batch for one dataset from its raw batch. A nil raw
// batch means the dataset could not be loaded. The returned batch is complete;
// callers replace the clean store contents with it or keep the prior contents.
func (c *DataCleaner) Cleanse(ctx context.Context, kind model.Kind, raw *model.Batch, resolvers resolver.Set) (*Result, error) {
	ds, ok := model.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", kind)
	}
	if raw == nil {
		return nil, &StageError{Dataset: kind, Stage: StageCoerce, Err: model.ErrDatasetUnavailable}
	}
	if raw.Dataset != kind {
		return nil, &StageError{Dataset: kind, Stage: StageCoerce,
			Err: fmt.Errorf("batch holds %s records", raw.Dataset)}
	}
	if resolvers.Codes == nil {
		resolvers.Codes = resolver.DefaultDictionaries()
	}

	now := c.opts.Now().UTC()
	run := &cleanseRun{
		ds:        ds,
		rules:     rulesFor(kind),
		resolvers: resolvers,
		converter: c.converter,
		caser:     cases.Title(language.Und),
		now:       now,
		require:   c.opts.RequireResolvers,
		logger:    c.logger.With(zap.String("dataset", string(kind))),
	}
	result := &Result{Dataset: kind, RowsIn: raw.Len()}

	stages := []struct {
		name string
		fn   func() error
	}{
		{StageCoerce, func() error { return run.coerce(raw.Rows) }},
		{StageFilter, func() error {
			result.RowsRejected = run.filterBlankKeys()
			return nil
		}},
		{StageDeduplicate, func() error {
			removed, err := run.deduplicate(c.DedupPolicy(kind))
			result.RowsDeduplicated = removed
			return err
		}},
		{StageNormalize, run.normalizeText},
		{StageMapCodes, run.mapCodes},
		{StageValidate, run.validate},
		{StageRecompute, run.recompute},
		{StageCorrect, run.correct},
		{StageRename, run.rename},
		{StageStamp, run.stamp},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Dataset: kind, Stage: stage.name, Err: err}
		}
		if err := stage.fn(); err != nil {
			c.logger.Error("Cleansing stage failed",
				zap.String("dataset", string(kind)),
				zap.String("stage", stage.name),
				zap.Error(err))
			return nil, &StageError{Dataset: kind, Stage: stage.name, Err: err}
		}
	}

	result.Batch = &model.Batch{Dataset: kind, Stage: model.StageClean, Rows: run.output(), LoadedAt: now}
	result.ResolverFallbacks = run.fallbacks
	result.Operations = run.operations

	c.logger.Info("Cleansed dataset",
		zap.String("dataset", string(kind)),
		zap.Int("rowsIn", result.RowsIn),
		zap.Int("rowsOut", result.Batch.Len()),
		zap.Int("rowsRejected", result.RowsRejected),
		zap.Int("rowsDeduplicated", result.RowsDeduplicated),
		zap.Int("cleaningOperations", len(result.Operations)))

	return result, nil
}

func validatePolicy(kind model.Kind, policy model.DedupPolicy) error {
	ds, ok := model.Lookup(kind)
	if !ok {
		return fmt.Errorf("dedup policy for unknown dataset %q", kind)
	}
	switch policy.Strategy {
	case model.DedupFirst:
		return nil
	case model.DedupLatest:
		col := ds.Metadata.GetColumnByName(policy.Field)
		if col == nil {
			return fmt.Errorf("dedup policy for %s: unknown field %q", kind, policy.Field)
		}
		if col.DataType == model.TypeText {
			return fmt.Errorf("dedup policy for %s: field %q is not orderable", kind, policy.Field)
		}
		return nil
	default:
		return fmt.Errorf("dedup policy for %s: unknown strategy %q", kind, policy.Strategy)
	}
}
