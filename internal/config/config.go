// Package config loads prload settings from flags, PRLOAD_* environment
// variables, an optional YAML file and built-in defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRLOAD"

// Keys, and the flag each one is bound to.
const (
	KeyBaseURL      = "base_url"
	KeyTimeout      = "timeout"
	KeyGracefulStop = "graceful_stop"
	KeyOut          = "out"
	KeyCSV          = "csv"
	KeyHistory      = "history"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyInsecure     = "insecure"
	KeyScenario     = "scenario"
)

var flagNames = map[string]string{
	KeyBaseURL:      "base-url",
	KeyTimeout:      "timeout",
	KeyGracefulStop: "graceful-stop",
	KeyOut:          "out",
	KeyCSV:          "csv",
	KeyHistory:      "history",
	KeyLogLevel:     "log-level",
	KeyLogFormat:    "log-format",
	KeyInsecure:     "insecure",
	KeyScenario:     "scenario",
}

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	GracefulStop time.Duration

	// Summary artifact path. Empty disables it.
	Out string
	// Per-request CSV path. Empty disables it.
	CSV string
	// History database path. Empty disables history.
	History string

	LogLevel  string
	LogFormat string
	Insecure  bool

	// Optional YAML scenario overriding the built-in stages.
	Scenario string

	ConfigFile string
}

// ApplyDefaults sets every key's default on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "http://app:8080")
	v.SetDefault(KeyTimeout, 10*time.Second)
	v.SetDefault(KeyGracefulStop, 30*time.Second)
	v.SetDefault(KeyOut, "summary.json")
	v.SetDefault(KeyCSV, "")
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault(KeyHistory, filepath.Join(home, ".prload", "history.db"))
	} else {
		v.SetDefault(KeyHistory, "")
	}
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyInsecure, false)
	v.SetDefault(KeyScenario, "")
}

// Load resolves the configuration. file may be empty, in which case
// $HOME/.prload.yaml is read if present. flags may be nil; only flags the
// set defines are bound.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	ApplyDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".prload")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		BaseURL:      strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		Timeout:      v.GetDuration(KeyTimeout),
		GracefulStop: v.GetDuration(KeyGracefulStop),
		Out:          v.GetString(KeyOut),
		CSV:          v.GetString(KeyCSV),
		History:      v.GetString(KeyHistory),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		Insecure:     v.GetBool(KeyInsecure),
		Scenario:     v.GetString(KeyScenario),
		ConfigFile:   v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url %q must be an absolute http(s) url", ErrInvalid, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	if c.GracefulStop < 0 {
		return fmt.Errorf("%w: graceful stop must not be negative, got %s", ErrInvalid, c.GracefulStop)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format %q is not json or console", ErrInvalid, c.LogFormat)
	}
	return nil
}

// AddFlags registers every configurable flag on fs with its default.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(flagNames[KeyBaseURL], "http://app:8080", "base URL of the service under test")
	fs.Duration(flagNames[KeyTimeout], 10*time.Second, "per-request timeout")
	fs.Duration(flagNames[KeyGracefulStop], 30*time.Second, "time in-flight iterations get to finish after the last stage")
	fs.StringP(flagNames[KeyOut], "o", "summary.json", "summary file (empty to skip)")
	fs.String(flagNames[KeyCSV], "", "write every request to this CSV file")
	fs.String(flagNames[KeyHistory], "", "history database (default $HOME/.prload/history.db)")
	fs.String(flagNames[KeyLogLevel], "info", "debug, info, warn or error")
	fs.String(flagNames[KeyLogFormat], "console", "console or json")
	fs.Bool(flagNames[KeyInsecure], false, "skip TLS certificate verification")
	fs.StringP(flagNames[KeyScenario], "s", "", "YAML scenario file overriding the built-in stages")
}
