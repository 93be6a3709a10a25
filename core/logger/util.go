package logger

import (
	"strings"
	"time"
)

// RoundMS rounds d to whole milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether some
// were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	n := min(max(limit, 0), len(values))
	return strings.Join(values[:n], ", "), n < len(values)
}
