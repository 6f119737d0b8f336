package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// API mirrors the subset of *slack.Client the source depends on
type API interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

func NewWithAPI(a API, opts ...Option) *Client {
	return newClient(a, opts...)
}

var (
	FormatTS = formatTS
	ParseTS  = parseTS
)
