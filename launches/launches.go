// Package launches implements the pure computations liftoff applies to launch
// records: building the dashboard working set, picking the latest records for
// the proxy endpoint, ordering by date and chunking into rows.
//
// Every function returns new slices and never reorders its input.
package launches

import (
	"slices"
	"strings"

	"github.com/tfkr-ae/liftoff/domain"
)

const (
	WorkingSetCap = 28 // Maximum number of records kept by WorkingSet
	LatestCount   = 10 // Number of records returned by the proxy endpoint
	GroupSize     = 4  // Number of records per dashboard row
)

// Direction is the chronological order applied by Sort.
type Direction string

const (
	Ascending  Direction = "asc"  // Oldest first
	Descending Direction = "desc" // Newest first
)

// ParseDirection maps a user supplied value to a Direction.
// Anything other than "desc" (case insensitive) is Ascending, which is also the initial order of a view.
func ParseDirection(value string) Direction {
	if strings.EqualFold(strings.TrimSpace(value), string(Descending)) {
		return Descending
	}
	return Ascending
}

// WorkingSet keeps the records with a known outcome, in upstream order, up to WorkingSetCap of them.
func WorkingSet(records []domain.Launch) []domain.Launch {
	set := make([]domain.Launch, 0, min(len(records), WorkingSetCap))
	for _, record := range records {
		if !record.HasOutcome() {
			continue
		}
		set = append(set, record)
		if len(set) == WorkingSetCap {
			break
		}
	}
	return set
}

// Latest returns the last n records of the upstream sequence, most recent first.
// The result is never nil so it always encodes as a JSON array.
func Latest(records []domain.Launch, n int) []domain.Launch {
	if n <= 0 {
		return []domain.Launch{}
	}
	tail := records[max(len(records)-n, 0):]
	latest := make([]domain.Launch, 0, len(tail))
	latest = append(latest, tail...)
	slices.Reverse(latest)
	return latest
}

// Sort returns a copy of set ordered by DateUTC in the given direction.
// The sort is stable, records sharing a date keep their relative order.
func Sort(set []domain.Launch, dir Direction) []domain.Launch {
	sorted := slices.Clone(set)
	slices.SortStableFunc(sorted, func(a, b domain.Launch) int {
		if dir == Descending {
			return b.DateUTC.Compare(a.DateUTC)
		}
		return a.DateUTC.Compare(b.DateUTC)
	})
	return sorted
}

// Chunk partitions records into consecutive groups of size, the last group holding the remainder.
// A size below one falls back to GroupSize.
func Chunk(records []domain.Launch, size int) [][]domain.Launch {
	if size < 1 {
		size = GroupSize
	}
	return slices.Collect(slices.Chunk(records, size))
}

// Group sorts set in the given direction and chunks it into rows of GroupSize.
func Group(set []domain.Launch, dir Direction) [][]domain.Launch {
	return Chunk(Sort(set, dir), GroupSize)
}
