package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "http://app:8080", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.GracefulStop)
	assert.Equal(t, "summary.json", cfg.Out)
	assert.Empty(t, cfg.CSV)
	assert.Equal(t, filepath.Join(home, ".prload", "history.db"), cfg.History)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.ConfigFile)
}

func TestPrecedence(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".prload.yaml"), []byte(
		"base_url: http://from-file:9000\ntimeout: 3s\nout: file.json\n"), 0644))
	t.Setenv("PRLOAD_TIMEOUT", "4s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--out", "flag.json"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:9000", cfg.BaseURL, "file beats default")
	assert.Equal(t, 4*time.Second, cfg.Timeout, "env beats file")
	assert.Equal(t, "flag.json", cfg.Out, "flag beats file")
	assert.Equal(t, 30*time.Second, cfg.GracefulStop, "unset flag keeps default")
	assert.NotEmpty(t, cfg.History, "empty flag default does not hide the real default")
}

func TestExplicitFileMustExist(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)

	cases := map[string]string{
		"PRLOAD_BASE_URL":   "app:8080",
		"PRLOAD_TIMEOUT":    "0s",
		"PRLOAD_LOG_FORMAT": "xml",
	}
	for env, val := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			_, err := Load("", nil)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestTrailingSlashTrimmed(t *testing.T) {
	isolate(t)
	t.Setenv("PRLOAD_BASE_URL", "http://localhost:8080/")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}
