// pkg/converter/mapping.go
package converter

import (
	"time"
)

// Layouts tried by DetectTimeFormat, most specific first
var timeFormats = []string{
	"2006-01-02T15:04:05Z",                // ISO8601 UTC
	"2006-01-02T15:04:05-07:00",           // ISO8601 with timezone
	"2006-01-02T15:04:05.999999999Z07:00", // RFC3339 with fraction
	"2006-01-02 15:04:05.999999999-07:00", // SQLite driver timestamp
	"2006-01-02 15:04:05 -0700 MST",       // time.Time String()
	"2006-01-02 15:04:05",                 // SQL timestamp
	"2006-01-02",                          // Date only
	"20060102",                            // Compact date (CRM integer dates)
	"2006/01/02",                          // Slash date
	"20060102T150405Z",                    // Compact ISO8601
}

// DetectTimeFormat analyzes a value to determine its timestamp format
func DetectTimeFormat(value string) string {
	for _, format := range timeFormats {
		_, err := time.Parse(format, value)
		if err == nil {
			return format
		}
	}

	return ""
}
