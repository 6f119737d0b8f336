package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/utils/safe"
)

type messageRepository struct {
	db *sql.DB
}

var _ interfaces.MessageRepository = &messageRepository{}

func (r *messageRepository) PutMessages(ctx context.Context, channelID string, msgs []*model.Message) error {
	if channelID == "" {
		return goerr.New("channelID is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (channel_id, msg_key, id, author, body, attachments, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, msg_key) DO UPDATE SET
			id = excluded.id,
			author = excluded.author,
			body = excluded.body,
			attachments = excluded.attachments,
			sent_at = excluded.sent_at`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare insert")
	}
	defer safe.Close(ctx, stmt)

	for _, msg := range msgs {
		if msg == nil {
			return goerr.New("message is nil", goerr.V(model.ChannelIDKey, channelID))
		}

		attachments := msg.Attachments
		if attachments == nil {
			attachments = []model.Attachment{}
		}
		raw, err := json.Marshal(attachments)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal attachments")
		}

		if _, err := stmt.ExecContext(ctx,
			channelID,
			msg.Key().String(),
			msg.ID,
			msg.Author,
			msg.Body,
			string(raw),
			msg.SentAt.UnixMilli(),
		); err != nil {
			return goerr.Wrap(err, "failed to insert message", goerr.V(model.ChannelIDKey, channelID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit messages", goerr.V(model.ChannelIDKey, channelID), goerr.V("count", len(msgs)))
	}
	return nil
}

func (r *messageRepository) ListMessages(ctx context.Context, channelID string, dr model.DateRange) ([]*model.Message, error) {
	if channelID == "" {
		return nil, goerr.New("channelID is required")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, author, body, attachments, sent_at FROM messages
		WHERE channel_id = ? AND sent_at >= ? AND sent_at <= ?
		ORDER BY sent_at ASC, id ASC, body ASC`,
		channelID, dr.Start.UnixMilli(), dr.End.UnixMilli())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query messages", goerr.V(model.ChannelIDKey, channelID))
	}
	defer safe.Close(ctx, rows)

	messages := make([]*model.Message, 0)
	for rows.Next() {
		var (
			msg         model.Message
			attachments string
			sentAt      int64
		)
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Body, &attachments, &sentAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan message")
		}
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal attachments", goerr.V("id", msg.ID))
		}
		if len(msg.Attachments) == 0 {
			msg.Attachments = nil
		}
		msg.SentAt = time.UnixMilli(sentAt).UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate messages")
	}

	return messages, nil
}

func (r *messageRepository) PruneMessages(ctx context.Context, channelID string, before time.Time) (int, error) {
	var (
		res sql.Result
		err error
	)
	if channelID == "" {
		res, err = r.db.ExecContext(ctx, `DELETE FROM messages WHERE sent_at < ?`, before.UnixMilli())
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ? AND sent_at < ?`, channelID, before.UnixMilli())
	}
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prune messages", goerr.V(model.ChannelIDKey, channelID))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count pruned messages")
	}
	return int(n), nil
}
