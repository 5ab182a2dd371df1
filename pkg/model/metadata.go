package model

import "strings"

// Column data types understood by the loader, the converter and the warehouse DDL
const (
	TypeInt       = "INT"
	TypeDecimal   = "DECIMAL"
	TypeDate      = "DATE"
	TypeText      = "TEXT"
	TypeTimestamp = "TIMESTAMP"
)

// LoadTimestampColumn is the audit column stamped on every clean record
const LoadTimestampColumn = "load_timestamp"

// TableMetadata contains the structure information for a dataset table
type TableMetadata struct {
	Table       string   // Dataset table name (without bronze_/silver_ prefix)
	Columns     []Column // Column definitions in source order
	PrimaryKeys []string // Business key column names (clean naming)
}

// Column represents metadata about a dataset column
type Column struct {
	Name         string // Clean column name
	RawName      string // Source column name when it differs from Name
	DataType     string // One of the Type* constants
	Nullable     bool   // Whether column allows NULL values in clean data
	IsPrimaryKey bool   // Whether column is the business key
}

// NameFor returns the column name used at the given stage
func (col Column) NameFor(stage Stage) string {
	if stage == StageRaw && col.RawName != "" {
		return col.RawName
	}
	return col.Name
}

// GetColumnByName returns a column by clean or raw name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName ||
			(col.RawName != "" && normalizeColumnName(col.RawName) == normalizedName) {
			return &tm.Columns[i]
		}
	}
	return nil
}

// ColumnNames lists the column names for a stage, in source order.
// Clean stage includes the load timestamp column.
func (tm *TableMetadata) ColumnNames(stage Stage) []string {
	names := make([]string, 0, len(tm.Columns)+1)
	for _, col := range tm.Columns {
		names = append(names, col.NameFor(stage))
	}
	if stage == StageClean {
		names = append(names, LoadTimestampColumn)
	}
	return names
}

// ColumnsFor returns column metadata for a stage; the clean stage carries
// the load timestamp as an extra column
func (tm *TableMetadata) ColumnsFor(stage Stage) []Column {
	cols := make([]Column, 0, len(tm.Columns)+1)
	for _, col := range tm.Columns {
		c := col
		c.Name = col.NameFor(stage)
		c.RawName = ""
		cols = append(cols, c)
	}
	if stage == StageClean {
		cols = append(cols, Column{Name: LoadTimestampColumn, DataType: TypeTimestamp})
	}
	return cols
}

// KeyColumn returns the business key column
func (tm *TableMetadata) KeyColumn() Column {
	for _, col := range tm.Columns {
		if col.IsPrimaryKey {
			return col
		}
	}
	return tm.Columns[0]
}

// Helper functions for case-insensitive string operations
func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
