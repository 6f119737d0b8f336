package intervalcache_test

import (
	"context"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/service/intervalcache"
)

type fetchCall struct {
	channelID string
	start     string
	end       string
}

// recordingSource records every fetch and delegates to handler
type recordingSource struct {
	mu      sync.Mutex
	calls   []fetchCall
	handler func(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error)
}

func (s *recordingSource) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{
		channelID: channelID,
		start:     model.FormatTimestamp(r.Start),
		end:       model.FormatTimestamp(r.End),
	})
	s.mu.Unlock()

	if s.handler == nil {
		return nil, nil
	}
	return s.handler(ctx, channelID, r)
}

func (s *recordingSource) Calls() []fetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fetchCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *recordingSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// replySequence returns the given batches for successive fetches, then nothing
func replySequence(batches ...[]*model.Message) func(context.Context, string, model.DateRange) ([]*model.Message, error) {
	var mu sync.Mutex
	idx := 0
	return func(_ context.Context, _ string, _ model.DateRange) ([]*model.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		if idx >= len(batches) {
			return nil, nil
		}
		batch := batches[idx]
		idx++
		return batch, nil
	}
}

func msg(author, body string) *model.Message {
	return &model.Message{Author: author, Body: body}
}

func pairs(msgs []*model.Message) [][2]string {
	out := make([][2]string, len(msgs))
	for i, m := range msgs {
		out[i] = [2]string{m.Author, m.Body}
	}
	return out
}

func newCache(t *testing.T, src *recordingSource, opts ...intervalcache.Option) *intervalcache.Cache {
	t.Helper()
	c, err := intervalcache.New(src, opts...)
	gt.NoError(t, err).Required()
	return c
}
