package intervalcache

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

// channelCache holds the entries of one channel.
// loadMu serializes Load calls; mu guards entries so readers never wait on a fetch.
type channelCache struct {
	loadMu sync.Mutex

	mu      sync.RWMutex
	entries []*model.CacheEntry
}

func (ch *channelCache) findContaining(r model.DateRange) *model.CacheEntry {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	for _, entry := range ch.entries {
		if entry.Range.Contains(r) {
			return entry
		}
	}
	return nil
}

// findOverlapping returns the entries sharing at least one instant with r, in stored order
func (ch *channelCache) findOverlapping(r model.DateRange) []*model.CacheEntry {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	var overlapping []*model.CacheEntry
	for _, entry := range ch.entries {
		if entry.Range.Overlaps(r) {
			overlapping = append(overlapping, entry)
		}
	}
	return overlapping
}

// mergeEntry stores a freshly fetched range and coalesces the channel's entries
func (ch *channelCache) mergeEntry(r model.DateRange, msgs []*model.Message, tolerance time.Duration, order model.OrderPolicy) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	entries := append(slices.Clone(ch.entries), &model.CacheEntry{Range: r, Messages: msgs})
	optimized := optimize(entries, tolerance, order)

	for _, entry := range optimized {
		if entry.Range.Contains(r) {
			ch.entries = optimized
			return nil
		}
	}

	return goerr.Wrap(model.ErrConsistency, "no entry covers the inserted range after optimization",
		goerr.V("range", r.String()),
		goerr.V("entries", len(optimized)))
}

func (ch *channelCache) summaries() []model.EntrySummary {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	summaries := make([]model.EntrySummary, len(ch.entries))
	for i, entry := range ch.entries {
		summaries[i] = entry.Summary()
	}
	return summaries
}

func (ch *channelCache) reset() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.entries = nil
}

// optimize sorts entries by start and merges every pair whose ranges overlap or lie
// within tolerance of each other. Merged entries are new values; inputs are not modified.
func optimize(entries []*model.CacheEntry, tolerance time.Duration, order model.OrderPolicy) []*model.CacheEntry {
	if len(entries) == 0 {
		return nil
	}

	sorted := slices.Clone(entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Before(sorted[j].Range.Start)
	})

	optimized := make([]*model.CacheEntry, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if !next.Range.Start.After(current.Range.End.Add(tolerance)) {
			current = &model.CacheEntry{
				Range:    current.Range.Union(next.Range),
				Messages: model.MergeMessages(order, current.Messages, next.Messages),
			}
			continue
		}
		optimized = append(optimized, current)
		current = next
	}
	optimized = append(optimized, current)

	return optimized
}
