package model

// CacheEntry holds the complete set of messages known for Range
type CacheEntry struct {
	Range    DateRange
	Messages []*Message
}

// EntrySummary describes a cache entry without its messages
type EntrySummary struct {
	Range        DateRange `json:"-"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	MessageCount int       `json:"message_count"`
}

// Summary returns the observable shape of the entry
func (e *CacheEntry) Summary() EntrySummary {
	return EntrySummary{
		Range:        e.Range,
		Start:        FormatTimestamp(e.Range.Start),
		End:          FormatTimestamp(e.Range.End),
		MessageCount: len(e.Messages),
	}
}

// CacheStats counts cache activity since start or the last Clear
type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Fetches     int64 `json:"fetches"`
	FetchErrors int64 `json:"fetch_errors"`
}
