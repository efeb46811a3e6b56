// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

import "slices"

// AppendUnique appends items to dst, skipping zero values and items already
// present. Order of first occurrence is preserved.
//
// Example:
//
//	labels := sliceutil.AppendUnique([]string{"payment"}, "urgency", "payment", "")
//	// Result: ["payment", "urgency"]
func AppendUnique[T comparable](dst []T, items ...T) []T {
	var zero T
	for _, it := range items {
		if it != zero && !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
