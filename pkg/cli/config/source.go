package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/service/gcsarchive"
	"github.com/secmon-lab/kioku/pkg/service/httpapi"
	"github.com/secmon-lab/kioku/pkg/service/slack"
	"github.com/secmon-lab/kioku/pkg/service/source"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	SourceSlack   = "slack"
	SourceHTTP    = "http"
	SourceArchive = "archive"
	SourceGCS     = "gcs"
	SourceMock    = "mock"
)

// Source selects and configures the backing source the cache reads through to
type Source struct {
	kind string

	slackToken    string
	slackAPIURL   string
	slackUserTTL  time.Duration
	slackPageSize int

	httpBaseURL string
	httpPath    string
	httpTimeout time.Duration

	gcsBucket string
	gcsPrefix string
}

func (x *Source) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Backing message source (slack, http, archive, gcs, mock)",
			Category:    "Source",
			Value:       SourceMock,
			Destination: &x.kind,
			Sources:     cli.EnvVars("KIOKU_SOURCE"),
		},
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (needs channels:history and users:read)",
			Category:    "Slack",
			Destination: &x.slackToken,
			Sources:     cli.EnvVars("KIOKU_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Slack API endpoint override",
			Category:    "Slack",
			Destination: &x.slackAPIURL,
			Sources:     cli.EnvVars("KIOKU_SLACK_API_URL"),
		},
		&cli.DurationFlag{
			Name:        "slack-user-cache-ttl",
			Usage:       "TTL of resolved Slack user names",
			Category:    "Slack",
			Value:       slack.DefaultCacheTTL,
			Destination: &x.slackUserTTL,
			Sources:     cli.EnvVars("KIOKU_SLACK_USER_CACHE_TTL"),
		},
		&cli.IntFlag{
			Name:        "slack-page-size",
			Usage:       "Messages requested per conversations.history call",
			Category:    "Slack",
			Value:       slack.DefaultPageSize,
			Destination: &x.slackPageSize,
			Sources:     cli.EnvVars("KIOKU_SLACK_PAGE_SIZE"),
		},
		&cli.StringFlag{
			Name:        "api-base-url",
			Usage:       "Base URL of the message HTTP API (http source)",
			Category:    "HTTP API",
			Destination: &x.httpBaseURL,
			Sources:     cli.EnvVars("KIOKU_API_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "api-path",
			Usage:       "Path of the message endpoint",
			Category:    "HTTP API",
			Value:       httpapi.DefaultPath,
			Destination: &x.httpPath,
			Sources:     cli.EnvVars("KIOKU_API_PATH"),
		},
		&cli.DurationFlag{
			Name:        "api-timeout",
			Usage:       "Timeout of each message API request",
			Category:    "HTTP API",
			Value:       httpapi.DefaultTimeout,
			Destination: &x.httpTimeout,
			Sources:     cli.EnvVars("KIOKU_API_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket holding daily JSONL exports (gcs source)",
			Category:    "Cloud Storage",
			Destination: &x.gcsBucket,
			Sources:     cli.EnvVars("KIOKU_GCS_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object prefix of the exports",
			Category:    "Cloud Storage",
			Destination: &x.gcsPrefix,
			Sources:     cli.EnvVars("KIOKU_GCS_PREFIX"),
		},
	}
}

func (x Source) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", x.kind),
		slog.Int("slack-bot-token.len", len(x.slackToken)),
		slog.String("api-base-url", x.httpBaseURL),
		slog.String("gcs-bucket", x.gcsBucket),
	)
}

// Configure builds the backing source. repo is used by the archive source. The returned
// closer releases clients held by the source.
func (x *Source) Configure(ctx context.Context, repo interfaces.Repository) (interfaces.MessageSource, func(), error) {
	noop := func() {}

	switch x.kind {
	case SourceSlack:
		opts := []slack.Option{
			slack.WithCacheTTL(x.slackUserTTL),
			slack.WithPageSize(x.slackPageSize),
		}
		if x.slackAPIURL != "" {
			opts = append(opts, slack.WithAPIURL(x.slackAPIURL))
		}
		client, err := slack.New(x.slackToken, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize slack source")
		}
		logging.Default().Info("Using Slack message source")
		return client, noop, nil

	case SourceHTTP:
		client, err := httpapi.New(x.httpBaseURL,
			httpapi.WithPath(x.httpPath),
			httpapi.WithTimeout(x.httpTimeout),
		)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize http source")
		}
		logging.Default().Info("Using message HTTP API source", "base_url", x.httpBaseURL, "path", x.httpPath)
		return client, noop, nil

	case SourceArchive:
		if repo == nil {
			return nil, nil, goerr.New("archive source requires a repository")
		}
		logging.Default().Info("Using archive message source")
		return source.NewArchive(repo.Message()), noop, nil

	case SourceGCS:
		archive, err := gcsarchive.New(ctx, x.gcsBucket, gcsarchive.WithPrefix(x.gcsPrefix))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize gcs source")
		}
		logging.Default().Info("Using Cloud Storage message source", "bucket", x.gcsBucket, "prefix", x.gcsPrefix)
		return archive, func() {
			if err := archive.Close(); err != nil {
				logging.Default().Error("failed to close gcs source", "error", err)
			}
		}, nil

	case SourceMock:
		logging.Default().Warn("Using mock message source (development only)")
		return source.Mock{}, noop, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid source", goerr.V(FlagKey, "source"), goerr.V("source", x.kind))
	}
}
