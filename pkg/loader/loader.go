package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/store"
)

// Result is the outcome of loading one dataset
type Result struct {
	Dataset  model.Kind
	Rows     int
	Duration time.Duration
	Err      error // non-nil when the dataset was marked unavailable
}

// Loaded reports whether the dataset is available in the raw store
func (r Result) Loaded() bool {
	return r.Err == nil
}

// Loader copies raw extracts from a source into the raw store
type Loader struct {
	source Source
	store  store.Warehouse
	logger *zap.Logger
}

// NewLoader creates a loader
func NewLoader(source Source, warehouse store.Warehouse, logger *zap.Logger) (*Loader, error) {
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if warehouse == nil {
		return nil, errors.New("warehouse cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Loader{
		source: source,
		store:  warehouse,
		logger: logger.Named("loader"),
	}, nil
}

// Load truncates and reloads every dataset in scope. A dataset whose extract
// fails is marked unavailable and reported in its Result; the returned error
// is reserved for cancellation and store failures.
func (l *Loader) Load(ctx context.Context, scope []model.Kind) ([]Result, error) {
	l.logger.Info("Loading raw datasets",
		zap.String("source", l.source.Describe()),
		zap.Int("datasets", len(scope)))

	results := make([]Result, 0, len(scope))
	for _, kind := range scope {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := l.loadOne(ctx, kind)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (l *Loader) loadOne(ctx context.Context, kind model.Kind) (Result, error) {
	start := time.Now()
	res := Result{Dataset: kind}

	batch, err := l.source.Extract(ctx, kind)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if !errors.Is(err, model.ErrDatasetUnavailable) {
			err = defect(kind, 0, "", err)
		}
		l.logger.Warn("Dataset unavailable",
			zap.String("dataset", string(kind)),
			zap.Error(err))
		if markErr := l.store.MarkUnavailable(ctx, model.StageRaw, kind); markErr != nil {
			return res, fmt.Errorf("failed to mark %s unavailable: %w", kind, markErr)
		}
		res.Err = err
		res.Duration = time.Since(start)
		return res, nil
	}

	if err := l.store.Replace(ctx, batch); err != nil {
		return res, fmt.Errorf("failed to store raw %s: %w", kind, err)
	}
	res.Rows = batch.Len()
	res.Duration = time.Since(start)

	l.logger.Info("Loaded raw dataset",
		zap.String("dataset", string(kind)),
		zap.Int("rows", res.Rows),
		zap.Duration("duration", res.Duration))
	return res, nil
}
