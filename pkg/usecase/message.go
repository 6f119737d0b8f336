package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/domain/types"
	"github.com/secmon-lab/kioku/pkg/service/intervalcache"
	"github.com/secmon-lab/kioku/pkg/utils/async"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
)

// MessageUseCase serves channel messages through the interval cache and
// maintains the message archive behind it
type MessageUseCase struct {
	cache   *intervalcache.Cache
	archive interfaces.MessageRepository
}

// NewMessageUseCase creates a new MessageUseCase. archive may be nil, which disables import.
func NewMessageUseCase(cache *intervalcache.Cache, archive interfaces.MessageRepository) *MessageUseCase {
	return &MessageUseCase{
		cache:   cache,
		archive: archive,
	}
}

// LoadMessages returns the messages of channelID between rawStart and rawEnd, reading
// through to the backing source for ranges not cached yet
func (uc *MessageUseCase) LoadMessages(ctx context.Context, channelID, rawStart, rawEnd string) ([]*model.Message, error) {
	loadID := uuid.NewString()
	logger := logging.From(ctx).With(LoadIDKey, loadID)
	ctx = logging.With(ctx, logger)

	msgs, err := uc.cache.Load(ctx, channelID, rawStart, rawEnd)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load messages", goerr.V(LoadIDKey, loadID))
	}

	logger.Info("messages loaded",
		model.ChannelIDKey, channelID,
		"count", len(msgs))
	return msgs, nil
}

// Prefetch validates the request and loads the range in the background.
// It returns a job id that appears in the background load's log records.
func (uc *MessageUseCase) Prefetch(ctx context.Context, channelID, rawStart, rawEnd string) (string, error) {
	if err := types.ChannelID(channelID).Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid channel")
	}
	r, err := model.ParseDateRange(rawStart, rawEnd)
	if err != nil {
		return "", goerr.Wrap(err, "invalid range", goerr.V(model.ChannelIDKey, channelID))
	}

	jobID := uuid.NewString()
	logger := logging.From(ctx).With(JobIDKey, jobID, model.ChannelIDKey, channelID)

	async.Dispatch(logging.With(ctx, logger), func(ctx context.Context) error {
		msgs, err := uc.cache.LoadRange(ctx, channelID, r)
		if err != nil {
			return goerr.Wrap(err, "prefetch failed", goerr.V(JobIDKey, jobID))
		}
		logging.From(ctx).Info("prefetch completed", "count", len(msgs))
		return nil
	})

	logger.Info("prefetch dispatched", "range", r.String())
	return jobID, nil
}

func (uc *MessageUseCase) Snapshot() map[string][]model.EntrySummary {
	return uc.cache.Snapshot()
}

func (uc *MessageUseCase) Clear(ctx context.Context) {
	uc.cache.Clear()
	logging.From(ctx).Info("cache cleared")
}

func (uc *MessageUseCase) Stats() model.CacheStats {
	return uc.cache.Stats()
}

// ImportMessages writes messages into the archive repository. Every message must carry sent_at.
// Ranges of the channel that are already cached are not refreshed; clear the cache to serve
// the imported messages for those ranges.
func (uc *MessageUseCase) ImportMessages(ctx context.Context, channelID string, msgs []*model.Message) (int, error) {
	if uc.archive == nil {
		return 0, goerr.Wrap(ErrArchiveNotConfigured, "cannot import messages")
	}
	if err := types.ChannelID(channelID).Validate(); err != nil {
		return 0, goerr.Wrap(err, "invalid channel")
	}

	normalized := make([]*model.Message, len(msgs))
	for i, msg := range msgs {
		if msg == nil || !msg.HasSentAt() {
			return 0, goerr.Wrap(ErrUntimedMessage, "cannot import message",
				goerr.V(model.ChannelIDKey, channelID),
				goerr.V("index", i))
		}
		copied := *msg
		copied.SentAt = copied.SentAt.UTC().Truncate(time.Millisecond)
		normalized[i] = &copied
	}

	if err := uc.archive.PutMessages(ctx, channelID, normalized); err != nil {
		return 0, goerr.Wrap(err, "failed to import messages", goerr.V(model.ChannelIDKey, channelID))
	}

	logging.From(ctx).Info("messages imported",
		model.ChannelIDKey, channelID,
		"count", len(msgs))
	return len(msgs), nil
}

// PruneArchive deletes archived messages sent before the cutoff. An empty channelID prunes every channel.
func (uc *MessageUseCase) PruneArchive(ctx context.Context, channelID string, before time.Time) (int, error) {
	if uc.archive == nil {
		return 0, goerr.Wrap(ErrArchiveNotConfigured, "cannot prune archive")
	}

	n, err := uc.archive.PruneMessages(ctx, channelID, before)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prune archive", goerr.V(model.ChannelIDKey, channelID))
	}

	logging.From(ctx).Info("archive pruned",
		model.ChannelIDKey, channelID,
		"before", model.FormatTimestamp(before),
		"deleted", n)
	return n, nil
}
