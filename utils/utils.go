package utils

import "strings"

// CompactSpaces trims s and collapses inner whitespace runs to a single space.
func CompactSpaces(s string) string { return strings.Join(strings.Fields(s), " ") }
