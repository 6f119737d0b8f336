package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	channelsCollection = "channels"
	messagesCollection = "messages"
)

type messageRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository(client *firestore.Client) *messageRepository {
	return &messageRepository{
		client: client,
	}
}

// messageDoc is the Firestore persistence model
type messageDoc struct {
	Key         string
	ID          string
	Author      string
	Body        string
	Attachments []attachmentDoc
	SentAt      time.Time
}

type attachmentDoc struct {
	URL  string
	Kind string
}

func (r *messageRepository) channels() *firestore.CollectionRef {
	name := channelsCollection
	if r.collectionPrefix != "" {
		name = r.collectionPrefix + name
	}
	return r.client.Collection(name)
}

func (r *messageRepository) messages(channelID string) *firestore.CollectionRef {
	return r.channels().Doc(channelID).Collection(messagesCollection)
}

// docID hashes the message key since author/body keys may contain characters
// that are not allowed in document IDs
func docID(key model.MessageKey) string {
	sum := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(sum[:])
}

func (r *messageRepository) PutMessages(ctx context.Context, channelID string, msgs []*model.Message) error {
	if channelID == "" {
		return goerr.New("channelID is required")
	}
	if len(msgs) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			bw.End()
			return goerr.New("message is nil", goerr.V(model.ChannelIDKey, channelID))
		}

		key := msg.Key()
		doc := &messageDoc{
			Key:    key.String(),
			ID:     msg.ID,
			Author: msg.Author,
			Body:   msg.Body,
			SentAt: msg.SentAt,
		}
		for _, a := range msg.Attachments {
			doc.Attachments = append(doc.Attachments, attachmentDoc{URL: a.URL, Kind: a.Kind})
		}

		job, err := bw.Set(r.messages(channelID).Doc(docID(key)), doc)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue message", goerr.V(model.ChannelIDKey, channelID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to save message", goerr.V(model.ChannelIDKey, channelID))
		}
	}

	return nil
}

func (r *messageRepository) ListMessages(ctx context.Context, channelID string, dr model.DateRange) ([]*model.Message, error) {
	if channelID == "" {
		return nil, goerr.New("channelID is required")
	}

	iter := r.messages(channelID).
		Where("SentAt", ">=", dr.Start).
		Where("SentAt", "<=", dr.End).
		OrderBy("SentAt", firestore.Asc).
		OrderBy("ID", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	messages := make([]*model.Message, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if status.Code(err) == codes.FailedPrecondition {
			return nil, goerr.Wrap(err, "composite index for messages is missing, run `kioku migrate`", goerr.V(model.ChannelIDKey, channelID))
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V(model.ChannelIDKey, channelID))
		}

		var data messageDoc
		if err := doc.DataTo(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("docID", doc.Ref.ID))
		}

		msg := &model.Message{
			ID:     data.ID,
			Author: data.Author,
			Body:   data.Body,
			SentAt: data.SentAt.UTC(),
		}
		for _, a := range data.Attachments {
			msg.Attachments = append(msg.Attachments, model.Attachment{URL: a.URL, Kind: a.Kind})
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (r *messageRepository) PruneMessages(ctx context.Context, channelID string, before time.Time) (int, error) {
	if channelID != "" {
		return r.pruneChannel(ctx, channelID, before)
	}

	// Parent channel documents are never written, DocumentRefs still lists them
	refs := r.channels().DocumentRefs(ctx)
	total := 0
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return total, goerr.Wrap(err, "failed to list channels")
		}

		n, err := r.pruneChannel(ctx, ref.ID, before)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (r *messageRepository) pruneChannel(ctx context.Context, channelID string, before time.Time) (int, error) {
	iter := r.messages(channelID).Where("SentAt", "<", before).Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to iterate messages for prune", goerr.V(model.ChannelIDKey, channelID))
		}

		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete", goerr.V("docID", doc.Ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete message", goerr.V(model.ChannelIDKey, channelID))
		}
		deleted++
	}

	return deleted, nil
}
