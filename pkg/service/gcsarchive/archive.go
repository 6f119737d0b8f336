package gcsarchive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/secmon-lab/kioku/pkg/utils/safe"
)

const (
	dayLayout = "2006-01-02"

	// maxLineSize is the longest JSONL record accepted
	maxLineSize = 4 * 1024 * 1024
)

// errNotFound is returned by objectStore when the object does not exist
var errNotFound = goerr.New("object not found")

type objectStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type bucketStore struct {
	bucket *storage.BucketHandle
}

func (s *bucketStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Archive serves messages from daily JSONL exports laid out as
// <prefix>/<channel>/<YYYY-MM-DD>.jsonl, one model.Message per line.
// A missing daily object means the channel had no messages that day.
type Archive struct {
	store  objectStore
	client *storage.Client
	prefix string
}

var _ interfaces.MessageSource = &Archive{}

type Option func(*Archive)

func WithPrefix(prefix string) Option {
	return func(a *Archive) {
		a.prefix = prefix
	}
}

// New opens a Cloud Storage client using application default credentials
func New(ctx context.Context, bucket string, opts ...Option) (*Archive, error) {
	if bucket == "" {
		return nil, goerr.New("GCS bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	a := newArchive(&bucketStore{bucket: client.Bucket(bucket)}, opts...)
	a.client = client
	return a, nil
}

func newArchive(store objectStore, opts ...Option) *Archive {
	a := &Archive{store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archive) Close() error {
	if a.client == nil {
		return nil
	}
	if err := a.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage client")
	}
	return nil
}

func (a *Archive) objectName(channelID string, day time.Time) string {
	return path.Join(a.prefix, channelID, day.Format(dayLayout)+".jsonl")
}

func (a *Archive) FetchMessages(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error) {
	var messages []*model.Message

	last := r.End.UTC().Truncate(24 * time.Hour)
	for day := r.Start.UTC().Truncate(24 * time.Hour); !day.After(last); day = day.AddDate(0, 0, 1) {
		msgs, err := a.readDay(ctx, channelID, day, r)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msgs...)
	}

	return messages, nil
}

func (a *Archive) readDay(ctx context.Context, channelID string, day time.Time, r model.DateRange) ([]*model.Message, error) {
	name := a.objectName(channelID, day)

	rc, err := a.store.Open(ctx, name)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive object", goerr.V("object", name))
	}
	defer safe.Close(ctx, rc)

	var messages []*model.Message
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, goerr.Wrap(err, "failed to decode archive record", goerr.V("object", name), goerr.V("line", lineNo))
		}
		if !msg.HasSentAt() {
			logging.From(ctx).Warn("skip archive record without sent_at", "object", name, "line", lineNo)
			continue
		}

		msg.SentAt = msg.SentAt.UTC().Truncate(time.Millisecond)
		if r.Includes(msg.SentAt) {
			messages = append(messages, &msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read archive object", goerr.V("object", name))
	}

	return messages, nil
}
