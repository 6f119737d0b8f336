package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

type messageRepository struct {
	mu       sync.RWMutex
	channels map[string]*channelData
}

type channelData struct {
	messages map[model.MessageKey]*model.Message
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		channels: make(map[string]*channelData),
	}
}

func (r *messageRepository) PutMessages(ctx context.Context, channelID string, msgs []*model.Message) error {
	if channelID == "" {
		return goerr.New("channelID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Initialize channel if it doesn't exist
	channel, exists := r.channels[channelID]
	if !exists {
		channel = &channelData{messages: make(map[model.MessageKey]*model.Message)}
		r.channels[channelID] = channel
	}

	for _, msg := range msgs {
		if msg == nil {
			return goerr.New("message is nil", goerr.V(model.ChannelIDKey, channelID))
		}
		copied := *msg
		channel.messages[msg.Key()] = &copied
	}

	return nil
}

func (r *messageRepository) ListMessages(ctx context.Context, channelID string, dr model.DateRange) ([]*model.Message, error) {
	if channelID == "" {
		return nil, goerr.New("channelID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	channel, exists := r.channels[channelID]
	if !exists {
		return []*model.Message{}, nil
	}

	messages := make([]*model.Message, 0)
	for _, msg := range channel.messages {
		if dr.Includes(msg.SentAt) {
			copied := *msg
			messages = append(messages, &copied)
		}
	}

	// Oldest first; ties broken by ID then body for a stable order
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].SentAt.Before(messages[j].SentAt)
		}
		if messages[i].ID != messages[j].ID {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Body < messages[j].Body
	})

	return messages, nil
}

func (r *messageRepository) PruneMessages(ctx context.Context, channelID string, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totalDeleted := 0

	if channelID == "" {
		// Delete from all channels
		for cid := range r.channels {
			totalDeleted += r.pruneChannelUnsafe(cid, before)
		}
	} else {
		totalDeleted += r.pruneChannelUnsafe(channelID, before)
	}

	return totalDeleted, nil
}

// pruneChannelUnsafe must be called with lock held
func (r *messageRepository) pruneChannelUnsafe(channelID string, before time.Time) int {
	channel, exists := r.channels[channelID]
	if !exists {
		return 0
	}

	deleted := 0
	for key, msg := range channel.messages {
		if msg.SentAt.Before(before) {
			delete(channel.messages, key)
			deleted++
		}
	}

	return deleted
}
