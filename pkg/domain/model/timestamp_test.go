package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "date only", input: "2025-04-03", want: "2025-04-03T00:00:00.000Z"},
		{name: "zulu with millis", input: "2025-04-03T10:20:30.123Z", want: "2025-04-03T10:20:30.123Z"},
		{name: "zulu without fraction", input: "2025-04-03T10:20:30Z", want: "2025-04-03T10:20:30.000Z"},
		{name: "no zone is UTC", input: "2025-04-03T10:20:30", want: "2025-04-03T10:20:30.000Z"},
		{name: "minute precision", input: "2025-04-03T10:20", want: "2025-04-03T10:20:00.000Z"},
		{name: "positive offset", input: "2025-04-03T09:00:00+09:00", want: "2025-04-03T00:00:00.000Z"},
		{name: "negative offset", input: "2025-04-02T19:00:00-05:00", want: "2025-04-03T00:00:00.000Z"},
		{name: "micro seconds truncated", input: "2025-04-03T00:00:00.123456Z", want: "2025-04-03T00:00:00.123Z"},
		{name: "surrounding space", input: " 2025-04-03 ", want: "2025-04-03T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.NormalizeTimestamp(tt.input)
			gt.NoError(t, err).Required()
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	inputs := []string{
		"",
		"yesterday",
		"2025/04/03",
		"2025-13-01",
		"2025-04-03T25:00:00Z",
		"2025-04-03Tnoon",
		"04-03-2025",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := model.ParseTimestamp(input)
			gt.Error(t, err).Is(model.ErrInvalidDateFormat)
		})
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	ts, err := model.ParseTimestamp("2025-04-03T10:20:30.456Z")
	gt.NoError(t, err).Required()
	gt.Value(t, model.FormatTimestamp(ts)).Equal("2025-04-03T10:20:30.456Z")
	gt.Value(t, ts.Location().String()).Equal("UTC")
}
