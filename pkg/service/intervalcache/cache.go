// Package intervalcache implements a read-through cache of channel messages keyed by
// time ranges. Only the sub-ranges not held in memory are requested from the backing
// source, and the stored ranges of a channel are coalesced after every fetch.
package intervalcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/domain/types"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
)

const (
	// DefaultTolerance is the gap under which two stored ranges are coalesced
	DefaultTolerance = time.Second
)

// Cache is safe for concurrent use. Loads of the same channel are serialized from the
// overlap check until the fetched ranges are merged; loads of different channels never
// wait on each other.
type Cache struct {
	source    interfaces.MessageSource
	tolerance time.Duration
	order     model.OrderPolicy

	mu       sync.Mutex
	channels map[string]*channelCache

	hits        atomic.Int64
	misses      atomic.Int64
	fetches     atomic.Int64
	fetchErrors atomic.Int64
}

// Option is a functional option for Cache configuration
type Option func(*Cache)

// WithTolerance sets the coalescing tolerance between adjacent ranges
func WithTolerance(d time.Duration) Option {
	return func(c *Cache) {
		c.tolerance = d
	}
}

// WithOrderPolicy sets how merged message lists are ordered
func WithOrderPolicy(p model.OrderPolicy) Option {
	return func(c *Cache) {
		c.order = p
	}
}

// New creates a cache reading through to source
func New(source interfaces.MessageSource, opts ...Option) (*Cache, error) {
	if source == nil {
		return nil, goerr.New("message source is required")
	}

	c := &Cache{
		source:    source,
		tolerance: DefaultTolerance,
		order:     model.OrderSentAt,
		channels:  make(map[string]*channelCache),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tolerance < 0 {
		return nil, goerr.New("tolerance must not be negative", goerr.V("tolerance", c.tolerance))
	}
	if !c.order.Validate() {
		return nil, goerr.New("unknown order policy", goerr.V("order", c.order))
	}

	return c, nil
}

// Load returns the messages of channelID within [rawStart, rawEnd]. Dates may be
// YYYY-MM-DD or ISO-8601; malformed input fails with model.ErrInvalidDateFormat before
// any cache state is touched.
func (c *Cache) Load(ctx context.Context, channelID, rawStart, rawEnd string) ([]*model.Message, error) {
	if err := types.ChannelID(channelID).Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid channel")
	}

	req, err := model.ParseDateRange(rawStart, rawEnd)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid range", goerr.V(model.ChannelIDKey, channelID))
	}

	return c.LoadRange(ctx, channelID, req)
}

// LoadRange is Load for an already normalized range.
//
// A backing source failure aborts the call with a *model.BackingSourceError naming the
// failing sub-range. Sub-ranges fetched earlier in the same call stay cached, so a retry
// only fetches what is still missing. The returned messages are shared with the cache
// and must not be modified.
func (c *Cache) LoadRange(ctx context.Context, channelID string, req model.DateRange) ([]*model.Message, error) {
	if err := types.ChannelID(channelID).Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid channel")
	}
	if req.Start.After(req.End) {
		return nil, goerr.Wrap(model.ErrInvalidRange, "start is after end",
			goerr.V(model.ChannelIDKey, channelID),
			goerr.V(model.StartKey, model.FormatTimestamp(req.Start)),
			goerr.V(model.EndKey, model.FormatTimestamp(req.End)))
	}

	logger := logging.From(ctx).With(
		"channel_id", channelID,
		"start", model.FormatTimestamp(req.Start),
		"end", model.FormatTimestamp(req.End),
	)

	ch := c.channel(channelID)
	ch.loadMu.Lock()
	defer ch.loadMu.Unlock()

	if entry := ch.findContaining(req); entry != nil {
		c.hits.Add(1)
		logger.Debug("cache hit", "messages", len(entry.Messages))
		return model.FilterMessages(entry.Messages, req), nil
	}
	c.misses.Add(1)

	overlapping := ch.findOverlapping(req)
	if len(overlapping) == 0 {
		logger.Debug("no cached data found, fetching full range")
		msgs, err := c.fetch(ctx, channelID, req)
		if err != nil {
			return nil, err
		}
		if err := ch.mergeEntry(req, msgs, c.tolerance, c.order); err != nil {
			return nil, goerr.Wrap(err, "failed to store fetched range", goerr.V(model.ChannelIDKey, channelID))
		}
		logger.Debug("fetched full range", "messages", len(msgs))
		return model.FilterMessages(msgs, req), nil
	}

	covered := make([]model.DateRange, len(overlapping))
	parts := make([]*model.CacheEntry, 0, len(overlapping))
	for i, entry := range overlapping {
		covered[i] = entry.Range
		parts = append(parts, entry)
	}

	missing := model.MissingRanges(req, covered)
	logger.Debug("found overlapping cached ranges",
		"overlapping", len(overlapping),
		"missing", len(missing),
	)

	for _, gap := range missing {
		msgs, err := c.fetch(ctx, channelID, gap)
		if err != nil {
			return nil, err
		}
		if err := ch.mergeEntry(gap, msgs, c.tolerance, c.order); err != nil {
			return nil, goerr.Wrap(err, "failed to store fetched range",
				goerr.V(model.ChannelIDKey, channelID),
				goerr.V("range", gap.String()))
		}
		logger.Debug("fetched missing range", "range", gap.String(), "messages", len(msgs))
		parts = append(parts, &model.CacheEntry{Range: gap, Messages: msgs})
	}

	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Range.Start.Before(parts[j].Range.Start)
	})
	lists := make([][]*model.Message, len(parts))
	for i, p := range parts {
		lists[i] = p.Messages
	}

	merged := model.FilterMessages(model.MergeMessages(c.order, lists...), req)
	logger.Debug("returning merged messages", "messages", len(merged))
	return merged, nil
}

// Snapshot returns the stored ranges and message counts of every channel
func (c *Cache) Snapshot() map[string][]model.EntrySummary {
	c.mu.Lock()
	channels := make(map[string]*channelCache, len(c.channels))
	for id, ch := range c.channels {
		channels[id] = ch
	}
	c.mu.Unlock()

	snapshot := make(map[string][]model.EntrySummary, len(channels))
	for id, ch := range channels {
		if summaries := ch.summaries(); len(summaries) > 0 {
			snapshot[id] = summaries
		}
	}
	return snapshot
}

// Clear discards all entries of all channels and resets the counters
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.channels {
		ch.reset()
		delete(c.channels, id)
	}

	c.hits.Store(0)
	c.misses.Store(0)
	c.fetches.Store(0)
	c.fetchErrors.Store(0)
}

// Stats returns activity counters
func (c *Cache) Stats() model.CacheStats {
	return model.CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Fetches:     c.fetches.Load(),
		FetchErrors: c.fetchErrors.Load(),
	}
}

func (c *Cache) channel(channelID string) *channelCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[channelID]
	if !ok {
		ch = &channelCache{}
		c.channels[channelID] = ch
	}
	return ch
}

func (c *Cache) fetch(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	c.fetches.Add(1)

	msgs, err := c.source.FetchMessages(ctx, channelID, r)
	if err != nil {
		c.fetchErrors.Add(1)
		return nil, goerr.Wrap(&model.BackingSourceError{ChannelID: channelID, Range: r, Err: err},
			"failed to fetch messages",
			goerr.V(model.ChannelIDKey, channelID),
			goerr.V("range", r.String()))
	}

	return model.MergeMessages(c.order, msgs), nil
}
