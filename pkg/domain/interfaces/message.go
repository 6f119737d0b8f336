package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/kioku/pkg/domain/model"
)

// MessageRepository archives ingested messages per channel
type MessageRepository interface {
	// PutMessages saves messages of a channel (upsert by message key)
	PutMessages(ctx context.Context, channelID string, msgs []*model.Message) error

	// ListMessages returns messages of a channel whose SentAt lies within the closed range r,
	// oldest first
	ListMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error)

	// PruneMessages deletes messages sent before the given time.
	// If channelID is empty, deletes from all channels.
	// Returns the number of messages deleted
	PruneMessages(ctx context.Context, channelID string, before time.Time) (int, error)
}
