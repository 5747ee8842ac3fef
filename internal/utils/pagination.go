// Package utils holds small parsing helpers shared by the HTTP layer.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a number.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageBounds are the defaults and ceiling applied by ClampPage.
type PageBounds struct {
	DefaultSize int
	MaxSize     int
}

// ClampPage parses raw page and page_size values. Page is at least 1 and
// size falls in [1, MaxSize]; missing or garbage values take the defaults.
func ClampPage(rawPage, rawSize string, b PageBounds) (page, size int) {
	if b.DefaultSize < 1 {
		b.DefaultSize = 20
	}
	if b.MaxSize < b.DefaultSize {
		b.MaxSize = b.DefaultSize
	}
	page = max(AtoiDefault(rawPage, 1), 1)
	size = min(max(AtoiDefault(rawSize, b.DefaultSize), 1), b.MaxSize)
	return page, size
}

// TotalPages is the number of size-item pages needed to hold total items.
func TotalPages(total int64, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
