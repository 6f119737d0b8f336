package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	channel_id TEXT NOT NULL,
	msg_key TEXT NOT NULL,
	id TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL,
	body TEXT NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]',
	sent_at INTEGER NOT NULL,
	PRIMARY KEY (channel_id, msg_key)
);
CREATE INDEX IF NOT EXISTS idx_messages_channel_sent_at ON messages(channel_id, sent_at);
`

// SQLite is a message archive stored in a single SQLite file
type SQLite struct {
	db      *sql.DB
	message *messageRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (or creates) the database at path, ensuring the parent directory exists,
// and applies the schema.
func New(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create db directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite db", goerr.V("path", path))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite db", goerr.V("path", path))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("path", path))
	}

	return &SQLite{
		db:      db,
		message: &messageRepository{db: db},
	}, nil
}

func (s *SQLite) Message() interfaces.MessageRepository {
	return s.message
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite db")
	}
	return nil
}
