// Package utils holds query-string helpers for the dashboard list endpoint.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes a requested page and page size. A page below 1
// becomes 1; a non-positive size becomes def and a size above hi is capped.
func ClampPage(page, size, def, hi int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if hi > 0 && size > hi {
		size = hi
	}
	return page, size
}
