package slack_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	kslack "github.com/secmon-lab/kioku/pkg/service/slack"
	"github.com/slack-go/slack"
)

type fakeAPI struct {
	mu        sync.Mutex
	pages     map[string]*slack.GetConversationHistoryResponse
	params    []slack.GetConversationHistoryParameters
	users     map[string]*slack.User
	userCalls int
	err       error
}

func (f *fakeAPI) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, *params)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.pages[params.Cursor]
	if !ok {
		return &slack.GetConversationHistoryResponse{}, nil
	}
	return resp, nil
}

func (f *fakeAPI) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	u, ok := f.users[user]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func slackMsg(ts, user, text string) slack.Message {
	return slack.Message{Msg: slack.Msg{Timestamp: ts, User: user, Text: text}}
}

func page(hasMore bool, next string, msgs ...slack.Message) *slack.GetConversationHistoryResponse {
	resp := &slack.GetConversationHistoryResponse{HasMore: hasMore, Messages: msgs}
	resp.ResponseMetaData.NextCursor = next
	return resp
}

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := kslack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates client when token is provided", func(t *testing.T) {
		c, err := kslack.New("test-token", kslack.WithAPIURL("http://127.0.0.1:1/api/"))
		gt.NoError(t, err).Required()
		gt.Value(t, c).NotNil()
	})
}

func TestFetchMessages(t *testing.T) {
	r := model.DateRange{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}

	t.Run("follows cursor pagination and returns oldest first", func(t *testing.T) {
		api := &fakeAPI{
			pages: map[string]*slack.GetConversationHistoryResponse{
				"": page(true, "next",
					slackMsg("1711972800.000300", "U1", "third"),
					slackMsg("1711972800.000200", "U2", "second"),
				),
				"next": page(false, "",
					slackMsg("1711972800.000100", "U1", "first"),
				),
			},
			users: map[string]*slack.User{
				"U1": {ID: "U1", Name: "john", RealName: "John"},
				"U2": {ID: "U2", Name: "jane"},
			},
		}
		c := kslack.NewWithAPI(api, kslack.WithPageSize(2))

		msgs, err := c.FetchMessages(context.Background(), "C1", r)
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(3).Required()
		gt.Value(t, msgs[0].Body).Equal("first")
		gt.Value(t, msgs[1].Body).Equal("second")
		gt.Value(t, msgs[2].Body).Equal("third")
		gt.Value(t, msgs[0].Author).Equal("John")
		gt.Value(t, msgs[1].Author).Equal("jane")
		gt.Value(t, msgs[0].ID).Equal("1711972800.000100")

		gt.Array(t, api.params).Length(2).Required()
		gt.Value(t, api.params[0].ChannelID).Equal("C1")
		gt.Value(t, api.params[0].Oldest).Equal("1711929600.000000")
		gt.Value(t, api.params[0].Latest).Equal("1712016000.000000")
		gt.Bool(t, api.params[0].Inclusive).True()
		gt.Value(t, api.params[0].Limit).Equal(2)
		gt.Value(t, api.params[1].Cursor).Equal("next")

		// U1 is resolved once and served from cache afterwards
		gt.Value(t, api.userCalls).Equal(2)
	})

	t.Run("skips channel notices and maps files", func(t *testing.T) {
		join := slackMsg("1711972800.000100", "U1", "joined")
		join.SubType = "channel_join"
		withFiles := slackMsg("1711972800.000200", "U1", "look")
		withFiles.Files = []slack.File{
			{URLPrivate: "https://files.example.com/a.png", Mimetype: "image/png"},
			{URLPrivate: "https://files.example.com/b.pdf", Mimetype: "application/pdf"},
		}

		api := &fakeAPI{
			pages: map[string]*slack.GetConversationHistoryResponse{"": page(false, "", join, withFiles)},
			users: map[string]*slack.User{"U1": {ID: "U1", Name: "john"}},
		}
		msgs, err := kslack.NewWithAPI(api).FetchMessages(context.Background(), "C1", r)
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(1).Required()
		gt.Array(t, msgs[0].Attachments).Length(2).Required()
		gt.Value(t, msgs[0].Attachments[0].Kind).Equal(model.AttachmentKindImage)
		gt.Value(t, msgs[0].Attachments[1].Kind).Equal(model.AttachmentKindFile)
	})

	t.Run("falls back to user ID when lookup fails", func(t *testing.T) {
		api := &fakeAPI{
			pages: map[string]*slack.GetConversationHistoryResponse{"": page(false, "", slackMsg("1711972800.000100", "U9", "hi"))},
		}
		msgs, err := kslack.NewWithAPI(api).FetchMessages(context.Background(), "C1", r)
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(1).Required()
		gt.Value(t, msgs[0].Author).Equal("U9")
	})

	t.Run("returns API errors", func(t *testing.T) {
		api := &fakeAPI{err: errors.New("ratelimited")}
		_, err := kslack.NewWithAPI(api).FetchMessages(context.Background(), "C1", r)
		gt.Error(t, err)
	})
}

func TestTimestamp(t *testing.T) {
	ts, err := kslack.ParseTS("1711972800.123456")
	gt.NoError(t, err).Required()
	gt.Bool(t, ts.Equal(time.Date(2024, 4, 1, 12, 0, 0, 123000000, time.UTC))).True()
	gt.Value(t, kslack.FormatTS(ts)).Equal("1711972800.123000")

	_, err = kslack.ParseTS("not-a-ts")
	gt.Error(t, err)
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if channelID == "" {
		t.Skip("TEST_SLACK_CHANNEL_ID is not set")
	}

	c, err := kslack.New(token)
	gt.NoError(t, err).Required()

	now := time.Now().UTC().Truncate(time.Millisecond)
	msgs, err := c.FetchMessages(context.Background(), channelID, model.DateRange{Start: now.Add(-24 * time.Hour), End: now})
	gt.NoError(t, err).Required()
	for _, m := range msgs {
		gt.Bool(t, m.HasSentAt()).True()
	}
}
