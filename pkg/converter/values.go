// pkg/converter/values.go
package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// isNull determines if a value should be treated as NULL
func isNull(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case []byte:
		return v == nil
	}
	return false
}

// ToText converts a value to a string. ok is false for null.
func ToText(value interface{}) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	case time.Time:
		return v.UTC().Format("2006-01-02"), true, nil
	case bool, map[string]interface{}, []interface{}:
		return "", false, fmt.Errorf("unexpected %T value for text field", value)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", false, fmt.Errorf("cannot convert %T to text: %w", value, err)
	}
	return s, true, nil
}

// ToInt64 converts a value to an integer. Blank strings are null; fractional
// values are rejected.
func ToInt64(value interface{}) (int64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case []byte:
		return ToInt64(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cannot convert string '%s' to integer", v)
		}
		return integral(f)
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case bool, time.Time:
		return 0, false, fmt.Errorf("unexpected %T value for integer field", value)
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		return 0, false, fmt.Errorf("cannot convert %T to integer: %w", value, err)
	}
	return n, true, nil
}

func integral(f float64) (int64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), true, nil
}

// ToFloat64 converts a value to a decimal. Blank strings are null.
func ToFloat64(value interface{}) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case []byte:
		return ToFloat64(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return 0, false, fmt.Errorf("cannot convert string '%s' to decimal", v)
		}
		return f, true, nil
	case bool, time.Time:
		return 0, false, fmt.Errorf("unexpected %T value for decimal field", value)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false, fmt.Errorf("cannot convert %T to decimal: %w", value, err)
	}
	return f, true, nil
}

// ToDate converts a value to a UTC date at midnight. Blank strings are null.
func ToDate(value interface{}) (time.Time, bool, error) {
	t, ok, err := toTimeIn(value, time.UTC)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return DateOnly(t), true, nil
}

// DateOnly truncates a time to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// toTimeIn converts a value to a timestamp, interpreting zone-less strings in loc
func toTimeIn(value interface{}, loc *time.Location) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case []byte:
		return toTimeIn(string(v), loc)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false, nil
		}

		// Detect format (if possible)
		if format := DetectTimeFormat(s); format != "" {
			parsedTime, err := time.ParseInLocation(format, s, loc)
			if err == nil {
				return parsedTime, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("cannot parse '%s' as date", v)
	default:
		return time.Time{}, false, fmt.Errorf("cannot convert %T to date", value)
	}
}
