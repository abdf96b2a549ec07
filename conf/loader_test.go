package conf

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/go-mixed/deadline.v1/logger"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettings(t *testing.T) {
	base := writeFile(t, "base.json", `{"deadline": 2.5, "metrics": {"namespace": "app", "listen": "127.0.0.1:9100"}}`)
	override := writeFile(t, "override.yaml", `
cancel_on_timeout: true
wait_abandoned: 1
logger:
  console_level: warning
`)

	settings := DefaultSettings()
	require.NoError(t, LoadSettings(&settings, base, override))

	assert.Equal(t, 2500*time.Millisecond, settings.DeadlineDuration())
	assert.Equal(t, time.Second, settings.WaitAbandonedDuration())
	assert.True(t, settings.CancelOnTimeout)
	assert.Equal(t, "app", settings.Metrics.Namespace)
	assert.Equal(t, "127.0.0.1:9100", settings.Metrics.Listen)
	assert.Equal(t, "warning", settings.Logger.ConsoleMinLevel)
	assert.Equal(t, "console", settings.Logger.FileEncoder)
}

func TestLoadSettingsInvalid(t *testing.T) {
	settings := DefaultSettings()
	err := LoadSettings(&settings, writeFile(t, "zero.yml", "deadline: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `settings "Settings.deadline" must be greater than 0`)

	settings = DefaultSettings()
	err = LoadSettings(&settings, writeFile(t, "bad.yml", "deadline: 1\nlogger:\n  file_encoder: xml\nmetrics:\n  listen: nowhere\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `settings "Settings.logger.file_encoder" must be one of [console json]`)
	assert.Contains(t, err.Error(), `settings "Settings.metrics.listen" must be host:port`)

	err = LoadSettings(&settings, writeFile(t, "settings.toml", "deadline = 1"))
	assert.Error(t, err)

	err = LoadSettings(&settings, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultSettingsConsoleLevel(t *testing.T) {
	t.Setenv(logger.ZapConsoleLevel, "")
	assert.Equal(t, "warning", DefaultSettings().Logger.ConsoleMinLevel)

	t.Setenv(logger.ZapConsoleLevel, "debug")
	assert.Equal(t, "", DefaultSettings().Logger.ConsoleMinLevel)
}

func TestWriteSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.Deadline = 0.3
	settings.OutputEncoding = "gbk"

	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteSettings(settings, path))

		loaded := Settings{}
		require.NoError(t, LoadSettings(&loaded, path))
		assert.Equal(t, settings, loaded)
	}

	assert.Error(t, WriteSettings(settings, filepath.Join(t.TempDir(), "out.ini")))
}
