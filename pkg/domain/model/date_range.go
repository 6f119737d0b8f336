package model

import (
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DateRange is a closed interval [Start, End] of canonical timestamps
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a canonical range and rejects Start > End
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: canonical(start), End: canonical(end)}
	if r.Start.After(r.End) {
		return DateRange{}, goerr.Wrap(ErrInvalidRange, "start is after end",
			goerr.V(StartKey, FormatTimestamp(r.Start)),
			goerr.V(EndKey, FormatTimestamp(r.End)))
	}
	return r, nil
}

// ParseDateRange normalizes raw start/end strings into a DateRange
func ParseDateRange(rawStart, rawEnd string) (DateRange, error) {
	start, err := ParseTimestamp(rawStart)
	if err != nil {
		return DateRange{}, goerr.Wrap(err, "failed to parse start", goerr.V(StartKey, rawStart))
	}
	end, err := ParseTimestamp(rawEnd)
	if err != nil {
		return DateRange{}, goerr.Wrap(err, "failed to parse end", goerr.V(EndKey, rawEnd))
	}
	return NewDateRange(start, end)
}

func (r DateRange) String() string {
	return "[" + FormatTimestamp(r.Start) + ", " + FormatTimestamp(r.End) + "]"
}

// Contains reports whether other lies entirely within r
func (r DateRange) Contains(other DateRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Overlaps reports whether r and other share at least one instant
func (r DateRange) Overlaps(other DateRange) bool {
	return !(other.End.Before(r.Start) || other.Start.After(r.End))
}

// Includes reports whether t lies within r
func (r DateRange) Includes(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Union returns the smallest range covering both
func (r DateRange) Union(other DateRange) DateRange {
	u := r
	if other.Start.Before(u.Start) {
		u.Start = other.Start
	}
	if other.End.After(u.End) {
		u.End = other.End
	}
	return u
}

// SortRanges sorts ranges by start in place
func SortRanges(ranges []DateRange) {
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Start.Before(ranges[j].Start)
	})
}

// NormalizeRanges sorts ranges and merges any two where the next start is not after the previous end
func NormalizeRanges(ranges []DateRange) []DateRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]DateRange, len(ranges))
	copy(sorted, ranges)
	SortRanges(sorted)

	normalized := []DateRange{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &normalized[len(normalized)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		normalized = append(normalized, cur)
	}
	return normalized
}

// MissingRanges returns the minimal sub-ranges of req not covered by covered.
// covered may be unsorted and may extend beyond req.
func MissingRanges(req DateRange, covered []DateRange) []DateRange {
	if len(covered) == 0 {
		return []DateRange{req}
	}

	sorted := make([]DateRange, len(covered))
	copy(sorted, covered)
	SortRanges(sorted)

	var missing []DateRange
	cursor := req.Start
	for _, c := range sorted {
		if c.Start.After(req.End) {
			break
		}
		if c.Start.After(cursor) {
			missing = append(missing, DateRange{Start: cursor, End: c.Start})
		}
		if c.End.After(cursor) {
			cursor = c.End
		}
	}
	if cursor.Before(req.End) {
		missing = append(missing, DateRange{Start: cursor, End: req.End})
	}

	return NormalizeRanges(missing)
}
