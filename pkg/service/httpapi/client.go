package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/utils/safe"
)

const (
	DefaultPath    = "/matchenatinderze"
	DefaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failed response is kept in the error
	maxErrorBody = 1024
)

// Client fetches channel messages from the message HTTP API:
//
//	GET {base}{path}?channelId=...&startDate=...&endDate=...
//
// which answers with a JSON array of {username, message, images, createdAt}.
type Client struct {
	baseURL    *url.URL
	path       string
	httpClient *http.Client
}

var _ interfaces.MessageSource = &Client{}

type Option func(*Client)

func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithTimeout bounds each request. Zero disables the client side timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("message API base URL is required")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid message API base URL", goerr.V("base_url", baseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("message API base URL must be http or https", goerr.V("base_url", baseURL))
	}

	c := &Client{
		baseURL:    u,
		path:       DefaultPath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// apiMessage is the wire form of one message
type apiMessage struct {
	Username  string   `json:"username"`
	Message   string   `json:"message"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"createdAt"`
}

func (c *Client) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	endpoint := c.baseURL.JoinPath(strings.TrimPrefix(c.path, "/"))
	q := endpoint.Query()
	q.Set("channelId", channelID)
	q.Set("startDate", model.FormatTimestamp(r.Start))
	q.Set("endDate", model.FormatTimestamp(r.End))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build message API request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "message API request failed",
			goerr.V(model.ChannelIDKey, channelID),
			goerr.V("url", endpoint.String()),
		)
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, goerr.New("message API returned unexpected status",
			goerr.V(model.ChannelIDKey, channelID),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var raw []apiMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode message API response", goerr.V(model.ChannelIDKey, channelID))
	}

	messages := make([]*model.Message, 0, len(raw))
	for _, m := range raw {
		msg := &model.Message{
			Author: m.Username,
			Body:   m.Message,
		}
		for _, img := range m.Images {
			msg.Attachments = append(msg.Attachments, model.Attachment{URL: img, Kind: model.AttachmentKindImage})
		}
		if m.CreatedAt != "" {
			sentAt, err := model.ParseTimestamp(m.CreatedAt)
			if err != nil {
				return nil, goerr.Wrap(err, "message API returned invalid createdAt",
					goerr.V(model.ChannelIDKey, channelID),
					goerr.V("created_at", m.CreatedAt),
				)
			}
			msg.SentAt = sentAt
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
