// Package store holds the raw (bronze) and clean (silver) record stores.
// Every dataset is replaced wholesale; readers observe either the previous or
// the new contents of a dataset, never a mix.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Warehouse is the storage contract shared by the in-memory and SQL stores
type Warehouse interface {
	// Read returns the current contents of a dataset, or an error wrapping
	// model.ErrDatasetUnavailable when it was never loaded or marked unavailable
	Read(ctx context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error)

	// Replace atomically swaps the contents of batch.Dataset at batch.Stage
	Replace(ctx context.Context, batch *model.Batch) error

	// MarkUnavailable empties a dataset and flags it as not loaded
	MarkUnavailable(ctx context.Context, stage model.Stage, kind model.Kind) error

	// Status lists the load state of every dataset known at a stage
	Status(ctx context.Context, stage model.Stage) ([]DatasetStatus, error)

	// SaveAudit appends cleaning operations to the audit trail
	SaveAudit(ctx context.Context, ops []model.CleaningOperation) error

	// Close releases resources
	Close() error
}

// DatasetStatus is the load state of one dataset at one stage
type DatasetStatus struct {
	Stage     model.Stage `json:"stage" yaml:"stage"`
	Dataset   model.Kind  `json:"dataset" yaml:"dataset"`
	Rows      int         `json:"rows" yaml:"rows"`
	LoadedAt  time.Time   `json:"loaded_at" yaml:"loaded_at"`
	Available bool        `json:"available" yaml:"available"`
}

// TableName returns the warehouse table holding a dataset at a stage
func TableName(stage model.Stage, kind model.Kind) string {
	if stage == model.StageClean {
		return "silver_" + string(kind)
	}
	return "bronze_" + string(kind)
}

func unavailable(stage model.Stage, kind model.Kind) error {
	return fmt.Errorf("%s %s: %w", stage, kind, model.ErrDatasetUnavailable)
}

func validateBatch(batch *model.Batch) (*model.Dataset, error) {
	if batch == nil {
		return nil, fmt.Errorf("batch cannot be nil")
	}
	ds, ok := model.Lookup(batch.Dataset)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", batch.Dataset)
	}
	if batch.Stage != model.StageRaw && batch.Stage != model.StageClean {
		return nil, fmt.Errorf("unknown stage %q for %s", batch.Stage, batch.Dataset)
	}
	return ds, nil
}
