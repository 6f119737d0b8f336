package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/cli/config"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/usecase"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func cmdLoad() *cli.Command {
	var channels []string
	var start, end string
	var appCfg config.App
	var repoCfg config.Repository
	var sourceCfg config.Source
	var cacheCfg config.Cache

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "channel",
			Aliases:     []string{"C"},
			Usage:       "Channel ID to load (repeatable)",
			Required:    true,
			Destination: &channels,
		},
		&cli.StringFlag{
			Name:        "start",
			Usage:       "Range start (YYYY-MM-DD or ISO-8601)",
			Required:    true,
			Destination: &start,
		},
		&cli.StringFlag{
			Name:        "end",
			Usage:       "Range end (YYYY-MM-DD or ISO-8601)",
			Required:    true,
			Destination: &end,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, sourceCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)

	return &cli.Command{
		Name:    "load",
		Aliases: []string{"l"},
		Usage:   "Load messages of channels for a range and print them as JSON",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load app configuration")
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

			src, closeSource, err := sourceCfg.Configure(ctx, repo)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize message source")
			}
			defer closeSource()

			cache, err := cacheCfg.Configure(c, app, src)
			if err != nil {
				return err
			}

			uc := usecase.New(cache)
			result, err := loadChannels(ctx, uc.Message, channels, start, end)
			if err != nil {
				return err
			}

			logging.Default().Debug("load completed", "stats", uc.Message.Stats())
			return writeLoadResult(os.Stdout, result)
		},
	}
}

// loadChannels loads every channel concurrently; any failure aborts the command
func loadChannels(ctx context.Context, uc *usecase.MessageUseCase, channels []string, start, end string) (map[string][]*model.Message, error) {
	var mu sync.Mutex
	result := make(map[string][]*model.Message, len(channels))

	eg, ctx := errgroup.WithContext(ctx)
	for _, channelID := range channels {
		eg.Go(func() error {
			msgs, err := uc.LoadMessages(ctx, channelID, start, end)
			if err != nil {
				return err
			}
			mu.Lock()
			result[channelID] = msgs
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func writeLoadResult(w io.Writer, result map[string][]*model.Message) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return goerr.Wrap(err, "failed to write load result")
	}
	return nil
}
