package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// TimestampLayout is the canonical text form of every stored timestamp
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	dateOnlyLayout = "2006-01-02"
	zonedLayout    = "2006-01-02T15:04:05.999999999Z07:00"
	localLayout    = "2006-01-02T15:04:05.999999999"
	minuteLayout   = "2006-01-02T15:04"
)

// ParseTimestamp accepts YYYY-MM-DD, ISO-8601 with a T separator (with or without
// fractional seconds), with a trailing Z, or with an explicit offset. The result is
// in UTC and truncated to milliseconds. Inputs without a zone are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, goerr.Wrap(ErrInvalidDateFormat, "empty date", goerr.V(DateKey, raw))
	}

	var layouts []string
	switch {
	case !strings.Contains(s, "T"):
		layouts = []string{dateOnlyLayout}
	case hasZone(s):
		layouts = []string{zonedLayout}
	default:
		layouts = []string{localLayout, minuteLayout}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return canonical(t), nil
		}
	}

	return time.Time{}, goerr.Wrap(ErrInvalidDateFormat, "unsupported date", goerr.V(DateKey, raw))
}

// FormatTimestamp renders t in the canonical YYYY-MM-DDTHH:MM:SS.mmmZ form
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeTimestamp parses raw and renders it back in canonical form
func NormalizeTimestamp(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}

func canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// hasZone reports whether the time part carries Z or a numeric offset
func hasZone(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	idx := strings.Index(s, "T")
	clock := s[idx+1:]
	return strings.ContainsAny(clock, "+-")
}
