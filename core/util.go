package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// IntPtr returns a pointer to a copy of i.
func IntPtr(i int) *int { return &i }

// FloatPtr returns a pointer to a copy of f.
func FloatPtr(f float64) *float64 { return &f }
