package interfaces

import (
	"context"

	"github.com/secmon-lab/kioku/pkg/domain/model"
)

// MessageSource is the system of record the cache reads through to.
//
// FetchMessages must return the complete, authoritative set of messages of the channel
// within the closed range r, or an error. The cache does not retry.
type MessageSource interface {
	FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error)
}

// MessageSourceFunc adapts a function to MessageSource
type MessageSourceFunc func(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error)

// FetchMessages calls f
func (f MessageSourceFunc) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	return f(ctx, channelID, r)
}
