package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/cli/config"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/service/intervalcache"
	"github.com/secmon-lab/kioku/pkg/service/source"
	"github.com/secmon-lab/kioku/pkg/usecase"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/secmon-lab/kioku/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var channelID string
	var file string
	var pruneBefore string
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "channel",
			Aliases:     []string{"C"},
			Usage:       "Channel ID the messages belong to",
			Required:    true,
			Destination: &channelID,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Messages to import: a JSON array or JSON lines, '-' for stdin",
			Required:    true,
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "prune-before",
			Usage:       "Delete archived messages of the channel sent before this timestamp after importing",
			Destination: &pruneBefore,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import messages into the message archive",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var cutoff time.Time
			if pruneBefore != "" {
				t, err := model.ParseTimestamp(pruneBefore)
				if err != nil {
					return goerr.Wrap(err, "invalid prune-before")
				}
				cutoff = t
			}

			msgs, err := readMessagesFile(ctx, file)
			if err != nil {
				return err
			}

			if repoCfg.Backend() == config.BackendMemory {
				logging.Default().Warn("Importing into the in-memory archive, messages are lost when the command exits")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			cache, err := intervalcache.New(source.NewArchive(repo.Message()))
			if err != nil {
				return goerr.Wrap(err, "failed to create cache")
			}
			uc := usecase.New(cache, usecase.WithArchive(repo.Message()))

			n, err := uc.Message.ImportMessages(ctx, channelID, msgs)
			if err != nil {
				return err
			}

			if pruneBefore != "" {
				if _, err := uc.Message.PruneArchive(ctx, channelID, cutoff); err != nil {
					return err
				}
			}

			logging.Default().Info("Import completed", "channel_id", channelID, "count", n, "backend", repoCfg.Backend())
			return nil
		},
	}
}

// readMessagesFile decodes a JSON array of messages, or one message per line
func readMessagesFile(ctx context.Context, path string) ([]*model.Message, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		// #nosec G304 - path is provided by CLI argument
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open messages file", goerr.V("path", path))
		}
		defer safe.Close(ctx, f)
		r = f
	}

	return decodeMessages(r)
}

func decodeMessages(r io.Reader) ([]*model.Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read messages")
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var msgs []*model.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message array")
		}
		return msgs, nil
	}

	var msgs []*model.Message
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for dec.More() {
		var msg model.Message
		if err := dec.Decode(&msg); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message line", goerr.V("index", len(msgs)))
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}
