// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims and lowercases each element, dropping empty
// values and case-insensitive duplicates. Order is preserved.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  Dev@Example.com ", "", "dev@example.com"})
//	// Returns: []string{"dev@example.com"}
func DedupeAndTrimLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
