// Package loader reads the nine raw extracts into the raw store. Any defect in
// an extract (missing file, malformed row, wrong type) makes that dataset
// unavailable for the run; other datasets still load.
package loader

import (
	"context"
	"fmt"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Source produces the raw batch of one dataset
type Source interface {
	Extract(ctx context.Context, kind model.Kind) (*model.Batch, error)
	Describe() string
}

// InputDefect describes why a raw extract could not be loaded. It matches
// model.ErrDatasetUnavailable with errors.Is.
type InputDefect struct {
	Dataset model.Kind
	Row     int    // 1-based data row, 0 when the defect is not row specific
	Column  string // empty when the defect is not column specific
	Err     error
}

func (e *InputDefect) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("input defect in %s row %d column %s: %v", e.Dataset, e.Row, e.Column, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("input defect in %s row %d: %v", e.Dataset, e.Row, e.Err)
	default:
		return fmt.Sprintf("input defect in %s: %v", e.Dataset, e.Err)
	}
}

// Unwrap exposes both the cause and the unavailable-dataset sentinel
func (e *InputDefect) Unwrap() []error {
	return []error{model.ErrDatasetUnavailable, e.Err}
}

func defect(kind model.Kind, row int, column string, err error) *InputDefect {
	return &InputDefect{Dataset: kind, Row: row, Column: column, Err: err}
}
