package model

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Cache errors
var (
	ErrInvalidDateFormat = goerr.New("invalid date format")
	ErrInvalidRange      = goerr.New("invalid date range")
	ErrBackingSource     = goerr.New("backing source failed")
	ErrConsistency       = goerr.New("cache consistency violated")
)

// Context keys for error values
const (
	ChannelIDKey = "channel_id"
	DateKey      = "date"
	StartKey     = "start"
	EndKey       = "end"
)

// BackingSourceError is returned by the cache when fetching one missing sub-range failed.
// Range is the exact sub-range that failed, so callers can retry narrowly.
type BackingSourceError struct {
	ChannelID string
	Range     DateRange
	Err       error
}

func (e *BackingSourceError) Error() string {
	return fmt.Sprintf("backing source failed for channel %s in %s: %v", e.ChannelID, e.Range, e.Err)
}

func (e *BackingSourceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrBackingSource) hold for every BackingSourceError
func (e *BackingSourceError) Is(target error) bool {
	return target == ErrBackingSource
}
