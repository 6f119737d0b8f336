package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/domain/types"
	"github.com/secmon-lab/kioku/pkg/service/worker"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the optional application configuration file
type AppConfig struct {
	Cache CacheSection `toml:"cache"`
	Warm  WarmSection  `toml:"warm"`
}

// CacheSection holds cache settings; command line flags take precedence
type CacheSection struct {
	Tolerance string `toml:"tolerance"`
	Order     string `toml:"order"`
}

// WarmSection lists channels kept warm by the background warmer
type WarmSection struct {
	Interval    string        `toml:"interval"`
	Concurrency int           `toml:"concurrency"`
	Channels    []WarmChannel `toml:"channel"`
}

// WarmChannel is one warmed channel and its trailing window
type WarmChannel struct {
	ID     string `toml:"id"`
	Window string `toml:"window"`
}

// DefaultWarmInterval is used when [warm] omits interval
const DefaultWarmInterval = 5 * time.Minute

// Validate checks if the WarmChannel is valid
func (w *WarmChannel) Validate() error {
	if err := types.ChannelID(w.ID).Validate(); err != nil {
		return goerr.Wrap(err, "invalid warm channel ID")
	}
	d, err := time.ParseDuration(w.Window)
	if err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid warm window", goerr.V(ChannelKey, w.ID), goerr.V("window", w.Window))
	}
	if d <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "warm window must be positive", goerr.V(ChannelKey, w.ID), goerr.V("window", w.Window))
	}
	return nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if a.Cache.Tolerance != "" {
		d, err := time.ParseDuration(a.Cache.Tolerance)
		if err != nil || d < 0 {
			return goerr.Wrap(ErrInvalidConfig, "invalid cache tolerance", goerr.V("tolerance", a.Cache.Tolerance))
		}
	}
	if a.Cache.Order != "" && !model.OrderPolicy(a.Cache.Order).Validate() {
		return goerr.Wrap(ErrInvalidConfig, "invalid cache order", goerr.V("order", a.Cache.Order))
	}

	if a.Warm.Interval != "" {
		d, err := time.ParseDuration(a.Warm.Interval)
		if err != nil || d <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "invalid warm interval", goerr.V("interval", a.Warm.Interval))
		}
	}
	if a.Warm.Concurrency < 0 {
		return goerr.Wrap(ErrInvalidConfig, "warm concurrency must not be negative", goerr.V("concurrency", a.Warm.Concurrency))
	}

	// Check channel duplicates
	channelIDs := make(map[string]bool)
	for _, ch := range a.Warm.Channels {
		if err := ch.Validate(); err != nil {
			return goerr.Wrap(err, "invalid warm channel")
		}
		if channelIDs[ch.ID] {
			return goerr.Wrap(ErrInvalidConfig, "duplicate warm channel", goerr.V(ChannelKey, ch.ID))
		}
		channelIDs[ch.ID] = true
	}

	return nil
}

// WarmInterval returns the configured warm interval or DefaultWarmInterval
func (a *AppConfig) WarmInterval() time.Duration {
	if a.Warm.Interval == "" {
		return DefaultWarmInterval
	}
	d, _ := time.ParseDuration(a.Warm.Interval)
	return d
}

// WarmTargets converts [[warm.channel]] into worker targets. Validate must have passed.
func (a *AppConfig) WarmTargets() []worker.WarmTarget {
	targets := make([]worker.WarmTarget, len(a.Warm.Channels))
	for i, ch := range a.Warm.Channels {
		d, _ := time.ParseDuration(ch.Window)
		targets[i] = worker.WarmTarget{ChannelID: ch.ID, Window: d}
	}
	return targets
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// App binds the --config flag
type App struct {
	path string
}

func (x *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to application config file (TOML)",
			Destination: &x.path,
			Sources:     cli.EnvVars("KIOKU_CONFIG"),
		},
	}
}

// Configure loads the config file, or returns an empty AppConfig when --config is not given
func (x *App) Configure() (*AppConfig, error) {
	if x.path == "" {
		return &AppConfig{}, nil
	}
	return LoadAppConfiguration(x.path)
}
