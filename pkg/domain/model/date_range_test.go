package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

func mustRange(t *testing.T, start, end string) model.DateRange {
	t.Helper()
	r, err := model.ParseDateRange(start, end)
	gt.NoError(t, err).Required()
	return r
}

func rangeStrings(ranges []model.DateRange) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.String()
	}
	return out
}

func TestParseDateRangeRejectsReversed(t *testing.T) {
	_, err := model.ParseDateRange("2025-04-05", "2025-04-01")
	gt.Error(t, err).Is(model.ErrInvalidRange)
}

func TestParseDateRangeInvalidDate(t *testing.T) {
	_, err := model.ParseDateRange("2025-04-01", "soon")
	gt.Error(t, err).Is(model.ErrInvalidDateFormat)
}

func TestDateRangeContains(t *testing.T) {
	outer := mustRange(t, "2025-04-03", "2025-04-06")

	gt.Bool(t, outer.Contains(mustRange(t, "2025-04-03", "2025-04-06"))).True()
	gt.Bool(t, outer.Contains(mustRange(t, "2025-04-04", "2025-04-05"))).True()
	gt.Bool(t, outer.Contains(mustRange(t, "2025-04-02", "2025-04-05"))).False()
	gt.Bool(t, outer.Contains(mustRange(t, "2025-04-04", "2025-04-07"))).False()
}

func TestDateRangeOverlaps(t *testing.T) {
	r := mustRange(t, "2025-04-03", "2025-04-06")

	tests := []struct {
		name  string
		other model.DateRange
		want  bool
	}{
		{"before", mustRange(t, "2025-04-01", "2025-04-02"), false},
		{"touching start", mustRange(t, "2025-04-01", "2025-04-03"), true},
		{"inside", mustRange(t, "2025-04-04", "2025-04-05"), true},
		{"covering", mustRange(t, "2025-04-01", "2025-04-10"), true},
		{"touching end", mustRange(t, "2025-04-06", "2025-04-08"), true},
		{"after", mustRange(t, "2025-04-07", "2025-04-08"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, r.Overlaps(tt.other)).Equal(tt.want)
			gt.Value(t, tt.other.Overlaps(r)).Equal(tt.want)
		})
	}
}

func TestNormalizeRanges(t *testing.T) {
	got := model.NormalizeRanges([]model.DateRange{
		mustRange(t, "2025-04-08", "2025-04-09"),
		mustRange(t, "2025-04-01", "2025-04-03"),
		mustRange(t, "2025-04-03", "2025-04-04"),
		mustRange(t, "2025-04-02", "2025-04-03"),
	})

	gt.Value(t, rangeStrings(got)).Equal([]string{
		"[2025-04-01T00:00:00.000Z, 2025-04-04T00:00:00.000Z]",
		"[2025-04-08T00:00:00.000Z, 2025-04-09T00:00:00.000Z]",
	})
	gt.Array(t, model.NormalizeRanges(nil)).Length(0)
}

func TestMissingRanges(t *testing.T) {
	tests := []struct {
		name    string
		req     model.DateRange
		covered []model.DateRange
		want    []string
	}{
		{
			name: "nothing covered",
			req:  mustRange(t, "2025-04-01", "2025-04-05"),
			want: []string{"[2025-04-01T00:00:00.000Z, 2025-04-05T00:00:00.000Z]"},
		},
		{
			name:    "gap before cached",
			req:     mustRange(t, "2025-04-01", "2025-04-05"),
			covered: []model.DateRange{mustRange(t, "2025-04-03", "2025-04-06")},
			want:    []string{"[2025-04-01T00:00:00.000Z, 2025-04-03T00:00:00.000Z]"},
		},
		{
			name:    "gap after cached",
			req:     mustRange(t, "2025-04-04", "2025-04-08"),
			covered: []model.DateRange{mustRange(t, "2025-04-03", "2025-04-06")},
			want:    []string{"[2025-04-06T00:00:00.000Z, 2025-04-08T00:00:00.000Z]"},
		},
		{
			name: "gap between two cached, unsorted input",
			req:  mustRange(t, "2025-04-02", "2025-04-07"),
			covered: []model.DateRange{
				mustRange(t, "2025-04-06", "2025-04-10"),
				mustRange(t, "2025-04-01", "2025-04-03"),
			},
			want: []string{"[2025-04-03T00:00:00.000Z, 2025-04-06T00:00:00.000Z]"},
		},
		{
			name: "gaps on both sides and in between",
			req:  mustRange(t, "2025-04-01", "2025-04-10"),
			covered: []model.DateRange{
				mustRange(t, "2025-04-02", "2025-04-03"),
				mustRange(t, "2025-04-05", "2025-04-06"),
			},
			want: []string{
				"[2025-04-01T00:00:00.000Z, 2025-04-02T00:00:00.000Z]",
				"[2025-04-03T00:00:00.000Z, 2025-04-05T00:00:00.000Z]",
				"[2025-04-06T00:00:00.000Z, 2025-04-10T00:00:00.000Z]",
			},
		},
		{
			name: "nested covered ranges",
			req:  mustRange(t, "2025-04-01", "2025-04-10"),
			covered: []model.DateRange{
				mustRange(t, "2025-04-01", "2025-04-08"),
				mustRange(t, "2025-04-02", "2025-04-03"),
			},
			want: []string{"[2025-04-08T00:00:00.000Z, 2025-04-10T00:00:00.000Z]"},
		},
		{
			name:    "fully covered",
			req:     mustRange(t, "2025-04-04", "2025-04-05"),
			covered: []model.DateRange{mustRange(t, "2025-04-03", "2025-04-06")},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.MissingRanges(tt.req, tt.covered)
			gt.Value(t, rangeStrings(got)).Equal(tt.want)
		})
	}
}
