package source

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

// Archive serves messages previously imported into a message repository
type Archive struct {
	repo interfaces.MessageRepository
}

var _ interfaces.MessageSource = &Archive{}

func NewArchive(repo interfaces.MessageRepository) *Archive {
	return &Archive{repo: repo}
}

func (a *Archive) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	msgs, err := a.repo.ListMessages(ctx, channelID, r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list archived messages", goerr.V(model.ChannelIDKey, channelID))
	}
	return msgs, nil
}
