package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/cli/config"
	"github.com/secmon-lab/kioku/pkg/domain/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kioku.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "valid configuration",
			content: `
[cache]
tolerance = "2s"
order = "arrival"

[warm]
interval = "1m"
concurrency = 2

[[warm.channel]]
id = "C0123ABCD"
window = "24h"

[[warm.channel]]
id = "general"
window = "30m"
`,
		},
		{
			name:    "empty configuration",
			content: ``,
		},
		{
			name: "invalid tolerance",
			content: `
[cache]
tolerance = "soon"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "invalid order",
			content: `
[cache]
order = "random"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "invalid interval",
			content: `
[warm]
interval = "0s"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "invalid channel id",
			content: `
[[warm.channel]]
id = "bad channel"
window = "1h"
`,
			wantErr: types.ErrInvalidChannelID,
		},
		{
			name: "negative window",
			content: `
[[warm.channel]]
id = "C1"
window = "-1h"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "duplicate channel",
			content: `
[[warm.channel]]
id = "C1"
window = "1h"

[[warm.channel]]
id = "C1"
window = "2h"
`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadAppConfiguration(writeConfig(t, tt.content))
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, cfg).NotNil()
		})
	}
}

func TestAppConfig_Warm(t *testing.T) {
	cfg, err := config.LoadAppConfiguration(writeConfig(t, `
[warm]
interval = "90s"

[[warm.channel]]
id = "C1"
window = "24h"
`))
	gt.NoError(t, err).Required()

	gt.Value(t, cfg.WarmInterval()).Equal(90 * time.Second)
	targets := cfg.WarmTargets()
	gt.Array(t, targets).Length(1).Required()
	gt.Value(t, targets[0].ChannelID).Equal("C1")
	gt.Value(t, targets[0].Window).Equal(24 * time.Hour)

	empty := &config.AppConfig{}
	gt.Value(t, empty.WarmInterval()).Equal(config.DefaultWarmInterval)
	gt.Array(t, empty.WarmTargets()).Length(0)
}

func TestLoadAppConfiguration_NotFound(t *testing.T) {
	_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "missing.toml"))
	gt.Error(t, err).Is(config.ErrConfigNotFound)
}

func TestLoadAppConfiguration_BrokenTOML(t *testing.T) {
	_, err := config.LoadAppConfiguration(writeConfig(t, "[cache\n"))
	gt.Error(t, err)
}
