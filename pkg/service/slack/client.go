package slack

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/slack-go/slack"
)

const (
	// DefaultCacheTTL is the default TTL for user name cache
	DefaultCacheTTL = 10 * time.Minute
	// DefaultPageSize is the number of messages requested per conversations.history call
	DefaultPageSize = 200
)

// api is the subset of *slack.Client used by Client
type api interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// cacheEntry holds a cached user name with expiration
type cacheEntry struct {
	name      string
	expiresAt time.Time
}

// Client reads channel history from Slack and serves it as a message source
type Client struct {
	api      api
	cacheTTL time.Duration
	pageSize int
	apiURL   string

	mu    sync.RWMutex
	users map[string]cacheEntry
}

var _ interfaces.MessageSource = &Client{}

// Option is a functional option for client configuration
type Option func(*Client)

// WithCacheTTL sets the TTL for user name cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithPageSize sets the conversations.history page size
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithAPIURL points the client to a different Slack API endpoint, e.g. "https://slack.example.com/api/"
func WithAPIURL(url string) Option {
	return func(c *Client) {
		c.apiURL = url
	}
}

// New creates a new Slack message source with the provided bot token
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := newClient(nil, opts...)

	var slackOpts []slack.Option
	if c.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(c.apiURL))
	}
	c.api = slack.New(token, slackOpts...)

	return c, nil
}

func newClient(a api, opts ...Option) *Client {
	c := &Client{
		api:      a,
		cacheTTL: DefaultCacheTTL,
		pageSize: DefaultPageSize,
		users:    make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchMessages returns every top level message posted in the channel within r, oldest first
func (c *Client) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	var (
		messages []*model.Message
		cursor   string
	)

	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    formatTS(r.Start),
			Latest:    formatTS(r.End),
			Inclusive: true,
			Limit:     c.pageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get conversation history",
				goerr.V(model.ChannelIDKey, channelID),
				goerr.V("range", r.String()),
			)
		}

		for _, m := range resp.Messages {
			msg, err := c.convert(ctx, m)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert message", goerr.V(model.ChannelIDKey, channelID), goerr.V("ts", m.Timestamp))
			}
			if msg == nil {
				continue
			}
			messages = append(messages, msg)
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}

	// conversations.history pages newest first
	slices.SortStableFunc(messages, func(a, b *model.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	return messages, nil
}

// convert maps a Slack message to a domain message; join/leave notices yield nil
func (c *Client) convert(ctx context.Context, m slack.Message) (*model.Message, error) {
	switch m.SubType {
	case "channel_join", "channel_leave", "channel_topic", "channel_purpose", "channel_name":
		return nil, nil
	}

	sentAt, err := parseTS(m.Timestamp)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:     m.Timestamp,
		Author: c.authorName(ctx, m),
		Body:   m.Text,
		SentAt: sentAt,
	}

	for _, f := range m.Files {
		url := f.URLPrivate
		if url == "" {
			url = f.Permalink
		}
		if url == "" {
			continue
		}

		kind := model.AttachmentKindFile
		if strings.HasPrefix(f.Mimetype, "image/") {
			kind = model.AttachmentKindImage
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{URL: url, Kind: kind})
	}

	return msg, nil
}

func (c *Client) authorName(ctx context.Context, m slack.Message) string {
	if m.User == "" {
		if m.Username != "" {
			return m.Username
		}
		return m.BotID
	}

	now := time.Now()
	c.mu.RLock()
	entry, ok := c.users[m.User]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return entry.name
	}

	user, err := c.api.GetUserInfoContext(ctx, m.User)
	if err != nil {
		// Keep the raw user ID so the message is still served
		logging.From(ctx).Warn("failed to resolve Slack user name", "user_id", m.User, "error", err)
		return m.User
	}

	name := user.RealName
	if name == "" {
		name = user.Name
	}

	c.mu.Lock()
	c.users[m.User] = cacheEntry{name: name, expiresAt: now.Add(c.cacheTTL)}
	c.mu.Unlock()

	return name
}

// formatTS renders t in Slack's "seconds.micros" timestamp form
func formatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

func parseTS(ts string) (time.Time, error) {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid Slack timestamp", goerr.V("ts", ts))
	}

	var micros int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		micros, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return time.Time{}, goerr.Wrap(err, "invalid Slack timestamp", goerr.V("ts", ts))
		}
	}

	return time.Unix(s, micros*int64(time.Microsecond)).UTC().Truncate(time.Millisecond), nil
}
