package model

import (
	"fmt"
	"strings"
	"time"
)

// Record is a single dataset row keyed by column name. A nil value is null.
type Record map[string]interface{}

// Clone returns a shallow copy of the record; values are immutable scalars
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsBlank reports whether the field is null or a whitespace-only string
func (r Record) IsBlank(field string) bool {
	return IsBlank(r[field])
}

// IsBlank reports whether a value is null or a whitespace-only string
func IsBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return strings.TrimSpace(string(v)) == ""
	default:
		return false
	}
}

// KeyString renders a value as a grouping key. Strings are trimmed, dates are
// rendered as YYYY-MM-DD and null renders as the empty string.
func KeyString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case time.Time:
		return v.UTC().Format("2006-01-02")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Batch is the full contents of one dataset at one stage
type Batch struct {
	Dataset  Kind
	Stage    Stage
	Rows     []Record
	LoadedAt time.Time
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Clone returns a copy of the batch whose rows can be modified independently
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	rows := make([]Record, len(b.Rows))
	for i, r := range b.Rows {
		rows[i] = r.Clone()
	}
	return &Batch{Dataset: b.Dataset, Stage: b.Stage, Rows: rows, LoadedAt: b.LoadedAt}
}

// Index builds a lookup from the trimmed key value to the first row carrying it
func (b *Batch) Index(field string) map[string]Record {
	idx := make(map[string]Record, b.Len())
	if b == nil {
		return idx
	}
	for _, r := range b.Rows {
		k := KeyString(r[field])
		if k == "" {
			continue
		}
		if _, exists := idx[k]; !exists {
			idx[k] = r
		}
	}
	return idx
}
