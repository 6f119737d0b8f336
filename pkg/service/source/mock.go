package source

import (
	"context"

	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

// Mock returns the same two untimed messages for any channel and range.
// Used for local development without a message backend.
type Mock struct{}

var _ interfaces.MessageSource = Mock{}

func (Mock) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []*model.Message{
		{Author: "John", Body: "Hello, how are you?"},
		{Author: "Jane", Body: "I'm good, thank you!"},
	}, nil
}
