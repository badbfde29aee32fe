// Package sequence allocates registration numbers.
//
// Numbers are strictly increasing per year and never reused, even when a
// registration is later abandoned. Allocation must be atomic against the
// backing store: a read-count-then-format scheme hands the same number to
// concurrent callers, so implementations increment and read in one operation.
package sequence

import (
	"context"
	"fmt"
)

// Allocator produces the next sequence number for a given year.
type Allocator interface {
	Next(ctx context.Context, year int) (int64, error)
}

// Format composes the human-readable registration number.
func Format(year int, seq int64) string {
	return fmt.Sprintf("MTS-%d-%04d", year, seq)
}
