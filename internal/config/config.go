// Package config resolves offkit's settings from three layers: built-in
// defaults, an optional YAML config file, and OFFKIT_-prefixed environment
// variables. Environment wins over file, file wins over defaults; command
// line flags are bound on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config and data directories.
	AppName = "offkit"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// EnvPrefix is the environment variable prefix, e.g. OFFKIT_PREFIX.
	EnvPrefix = "OFFKIT"
)

// Settings holds every tunable the CLI reads.
type Settings struct {
	// Prefix is the root directory installs land under.
	Prefix string `mapstructure:"prefix"`
	// Keyring is an OpenPGP keyring file; when set, payload manifests must
	// carry a valid detached signature from one of its keys.
	Keyring string `mapstructure:"keyring"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// Platform overrides host detection with an explicit platform id.
	Platform string `mapstructure:"platform"`
}

// DefaultSettings returns the built-in defaults. The prefix default depends
// on the platform's data directory conventions.
func DefaultSettings() Settings {
	prefix := filepath.Join(".", AppName)
	if dataDir, err := DataDir(); err == nil {
		prefix = dataDir
	}
	return Settings{
		Prefix:   prefix,
		LogLevel: "info",
	}
}

// ConfigDir returns the offkit configuration directory using the platform's
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func ConfigDir() (string, error) {
	base, err := baseDir("APPDATA", "XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// DataDir returns the default install prefix directory: %LOCALAPPDATA% on
// Windows, ~/Library/Application Support on macOS, $XDG_DATA_HOME (default
// ~/.local/share) elsewhere, each with the app name appended.
func DataDir() (string, error) {
	base, err := baseDir("LOCALAPPDATA", "XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

func baseDir(windowsEnv, xdgEnv, homeFallback string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv(windowsEnv); dir != "" {
			return dir, nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if dir := os.Getenv(xdgEnv); dir != "" {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, homeFallback), nil
	}
}

// LoadOptions control where Load looks for its config file.
type LoadOptions struct {
	// ConfigFilePath, when set, is used exclusively; a missing file is then
	// an error instead of a silent fallback to defaults.
	ConfigFilePath string
}

// Load resolves the effective settings. A missing config file is not an
// error unless an explicit path was given.
func Load(opts LoadOptions) (*Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("prefix", defaults.Prefix)
	v.SetDefault("keyring", defaults.Keyring)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("platform", defaults.Platform)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		if cfgDir, err := ConfigDir(); err == nil {
			v.AddConfigPath(cfgDir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field values the type system cannot.
func (s *Settings) Validate() error {
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn, or error)", s.LogLevel)
	}
	return nil
}
