package dateparse

import (
	"testing"
	"time"
)

// FuzzParseEndFrom checks that arbitrary input never panics.
func FuzzParseEndFrom(f *testing.F) {
	seeds := []string{
		"today", "tomorrow", "monday", "next friday", "eow", "eom",
		"+1", "+7d", "+12h", "+2w", "+", "+-1", "in 3 days", "in 1 hour",
		"2024-01-15", "2024-01-15 10:00", "2024-01-15T10:00:00Z",
		"", " ", "invalid", "in days", "next",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	ref := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	f.Fuzz(func(t *testing.T, input string) {
		_, _ = ParseEndFrom(input, ref)
	})
}
