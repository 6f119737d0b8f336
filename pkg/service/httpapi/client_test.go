package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/service/httpapi"
)

func testRange(t *testing.T) model.DateRange {
	t.Helper()
	r, err := model.ParseDateRange("2024-04-01", "2024-04-03")
	gt.NoError(t, err).Required()
	return r
}

func TestNew(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := httpapi.New("")
		gt.Error(t, err)
	})

	t.Run("rejects non http scheme", func(t *testing.T) {
		_, err := httpapi.New("ftp://example.com")
		gt.Error(t, err)
	})
}

func TestFetchMessages(t *testing.T) {
	t.Run("sends range query and decodes messages", func(t *testing.T) {
		var gotPath, gotChannel, gotStart, gotEnd string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotChannel = r.URL.Query().Get("channelId")
			gotStart = r.URL.Query().Get("startDate")
			gotEnd = r.URL.Query().Get("endDate")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"username":"John","message":"Hello","images":["https://img.example.com/1.png"],"createdAt":"2024-04-01T10:00:00Z"},
				{"username":"Jane","message":"Hi","images":[],"createdAt":""}
			]`))
		}))
		defer srv.Close()

		c, err := httpapi.New(srv.URL)
		gt.NoError(t, err).Required()

		msgs, err := c.FetchMessages(context.Background(), "C1", testRange(t))
		gt.NoError(t, err).Required()

		gt.Value(t, gotPath).Equal("/matchenatinderze")
		gt.Value(t, gotChannel).Equal("C1")
		gt.Value(t, gotStart).Equal("2024-04-01T00:00:00.000Z")
		gt.Value(t, gotEnd).Equal("2024-04-03T00:00:00.000Z")

		gt.Array(t, msgs).Length(2).Required()
		gt.Value(t, msgs[0].Author).Equal("John")
		gt.Value(t, msgs[0].Body).Equal("Hello")
		gt.Array(t, msgs[0].Attachments).Length(1).Required()
		gt.Value(t, msgs[0].Attachments[0].Kind).Equal(model.AttachmentKindImage)
		gt.Bool(t, msgs[0].SentAt.Equal(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))).True()
		gt.Bool(t, msgs[1].HasSentAt()).False()
	})

	t.Run("custom path is joined to base path", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		c, err := httpapi.New(srv.URL+"/v1", httpapi.WithPath("/messages"))
		gt.NoError(t, err).Required()

		msgs, err := c.FetchMessages(context.Background(), "C1", testRange(t))
		gt.NoError(t, err).Required()
		gt.Array(t, msgs).Length(0)
		gt.Value(t, gotPath).Equal("/v1/messages")
	})

	t.Run("non 200 status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := httpapi.New(srv.URL)
		gt.NoError(t, err).Required()

		_, err = c.FetchMessages(context.Background(), "C1", testRange(t))
		gt.Error(t, err)
	})

	t.Run("malformed createdAt is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"username":"John","message":"Hello","createdAt":"yesterday"}]`))
		}))
		defer srv.Close()

		c, err := httpapi.New(srv.URL)
		gt.NoError(t, err).Required()

		_, err = c.FetchMessages(context.Background(), "C1", testRange(t))
		gt.Error(t, err).Is(model.ErrInvalidDateFormat)
	})

	t.Run("timeout aborts slow responses", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c, err := httpapi.New(srv.URL, httpapi.WithTimeout(50*time.Millisecond))
		gt.NoError(t, err).Required()

		_, err = c.FetchMessages(context.Background(), "C1", testRange(t))
		gt.Error(t, err)
	})
}
