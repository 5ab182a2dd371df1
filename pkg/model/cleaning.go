// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningOperation represents a single value change made while cleansing a dataset
type CleaningOperation struct {
	RunID             string      // Pipeline run that produced the change
	Dataset           Kind        // Dataset that was cleansed
	ColumnName        string      // Column that was cleaned
	OriginalValue     interface{} // Original value (may be nil)
	NewValue          interface{} // New value after cleaning (may be nil)
	RowIdentifier     string      // Business key of the row
	CleaningOperation string      // Type of cleaning performed (e.g., "code_mapping")
	CleaningReason    string      // Reason for cleaning (e.g., "unrecognized_code")
	CleanedAt         time.Time   // When the cleaning occurred
}

// CleaningContext contains information needed for cleaning a value
type CleaningContext struct {
	Dataset       Kind
	ColumnName    string
	RowIdentifier string
	DataType      string
}
