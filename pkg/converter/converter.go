// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// TypeConverter handles conversion of source and storage values into the
// canonical Go types used by records: int64, float64, time.Time, string
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Location used for dates without an explicit zone
	DefaultTimezone string
	// Tokens treated as null in non-text source columns (compared after trim)
	NullTokens []string
	// Date values that upstream extracts use to mean "no date"
	DateSentinels []string
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		DefaultTimezone: "UTC",
		NullTokens:      []string{"null", "NULL", "nil", "NIL"},
		DateSentinels:   []string{"0", "00000000", "0000-00-00"},
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// ParseRaw converts a delimited-file cell into the column's type. Text cells are
// kept verbatim so the raw store mirrors its input; other cells that are blank or
// a configured null token become nil.
func (c *TypeConverter) ParseRaw(cell string, col model.Column) (interface{}, error) {
	if col.DataType == model.TypeText {
		return cell, nil
	}

	trimmed := strings.TrimSpace(cell)
	if trimmed == "" || c.isNullToken(trimmed) {
		return nil, nil
	}
	if col.DataType == model.TypeDate && c.isDateSentinel(trimmed) {
		return nil, nil
	}

	return c.ConvertValue(trimmed, col.DataType, col.Name)
}

// ConvertValue converts a value to the canonical Go type for a column data type
func (c *TypeConverter) ConvertValue(value interface{}, dataType string, colName string) (interface{}, error) {
	// Handle NULL values
	if isNull(value) {
		return nil, nil
	}

	switch strings.ToUpper(dataType) {
	case model.TypeText, "":
		s, _, err := ToText(value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colName, err)
		}
		return s, nil

	case model.TypeInt:
		n, ok, err := ToInt64(value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colName, err)
		}
		if !ok {
			return nil, nil
		}
		return n, nil

	case model.TypeDecimal:
		f, ok, err := ToFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colName, err)
		}
		if !ok {
			return nil, nil
		}
		return f, nil

	case model.TypeDate, model.TypeTimestamp:
		t, ok, err := c.toTime(value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colName, err)
		}
		if !ok {
			return nil, nil
		}
		if strings.EqualFold(dataType, model.TypeDate) {
			return DateOnly(t), nil
		}
		return t.UTC(), nil

	default:
		return nil, fmt.Errorf("column %s: unsupported data type %q", colName, dataType)
	}
}

// ConvertRecord normalizes every column of a record read back from storage.
// Columns not described by cols are dropped.
func (c *TypeConverter) ConvertRecord(row map[string]interface{}, cols []model.Column) (model.Record, error) {
	out := make(model.Record, len(cols))
	for _, col := range cols {
		raw, ok := lookupFold(row, col.Name)
		if !ok {
			out[col.Name] = nil
			continue
		}
		v, err := c.ConvertValue(raw, col.DataType, col.Name)
		if err != nil {
			return nil, err
		}
		out[col.Name] = v
	}
	return out, nil
}

func (c *TypeConverter) toTime(value interface{}) (time.Time, bool, error) {
	if s, ok := value.(string); ok && c.isDateSentinel(strings.TrimSpace(s)) {
		return time.Time{}, false, nil
	}
	return toTimeIn(value, c.location())
}

func (c *TypeConverter) location() *time.Location {
	if c.config.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.config.DefaultTimezone)
	if err != nil {
		c.logger.Warn("Unknown timezone, falling back to UTC",
			zap.String("timezone", c.config.DefaultTimezone),
			zap.Error(err))
		return time.UTC
	}
	return loc
}

func (c *TypeConverter) isNullToken(s string) bool {
	for _, tok := range c.config.NullTokens {
		if s == tok {
			return true
		}
	}
	return false
}

func (c *TypeConverter) isDateSentinel(s string) bool {
	for _, tok := range c.config.DateSentinels {
		if s == tok {
			return true
		}
	}
	return false
}

// lookupFold finds a map entry ignoring case, since drivers differ in the
// case they report column names in
func lookupFold(row map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
