package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/cli/config"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
)

func TestLogger_Configure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("json output to file redacts Slack tokens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kioku.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("hello",
			slog.String("channel_id", "C1"),
			slog.String("token", "xoxb-1234-abcd"),
		)
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains(`"msg":"hello"`)
		gt.String(t, string(data)).Contains(`"channel_id":"C1"`)
		gt.String(t, string(data)).NotContains("xoxb-1234-abcd")
	})

	t.Run("console format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kioku.log")
		closer, err := config.NewLoggerForTest("info", "console", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Debug("dropped")
		logging.Default().Info("kept")
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains("kept")
		gt.String(t, string(data)).NotContains("dropped")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
