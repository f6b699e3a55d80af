package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/offkit/offkit/internal/config"
	"github.com/offkit/offkit/internal/platform"
	"github.com/offkit/offkit/internal/resolve"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile  string
	logLevel string

	settings *config.Settings
	logger   *log.Logger

	rootCmd = &cobra.Command{
		Use:   "offkit",
		Short: "Verified installer for offline artifact kits",
		Long: `offkit installs artifacts from offline payload kits: every file is
checked against the kit's SHA-256 manifest before anything is written, and
installs land atomically under <prefix>/<kind>/<platform>/<version>.

Exit codes: 0 success (including already-installed), 1 verification or
placement failure, 2 nothing to install for this platform/kind.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir, e.g. ~/.config/offkit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(platformCmd)
}

// setup loads layered settings and builds the logger before any RunE runs.
func setup(cmd *cobra.Command, args []string) error {
	s, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}
	if logLevel != "" {
		s.LogLevel = logLevel
		if err := s.Validate(); err != nil {
			return err
		}
	}
	settings = s

	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "offkit",
		Level:  level,
	})
	return nil
}

// ExitError signals a specific process exit code from a RunE handler
// without calling os.Exit mid-command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command and maps the outcome onto the process exit
// code.
func Execute() {
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(2)
}

// resolvePlatform picks the target platform: explicit flag, then configured
// override, then host detection.
func resolvePlatform(ctx context.Context, flagValue string) (platform.Spec, error) {
	id := flagValue
	if id == "" {
		id = settings.Platform
	}
	if id != "" {
		return platform.ParseID(id)
	}

	host, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return platform.Spec{}, fmt.Errorf("detect host platform: %w", err)
	}
	return host.Spec, nil
}

// newResolver builds the kind resolver for a payload root: the built-in
// catalog, overridden by a catalog.lua shipped with the kit when present.
func newResolver(payloadRoot string, spec platform.Spec) (*resolve.Resolver, error) {
	catalog := resolve.DefaultCatalog()

	luaPath := filepath.Join(payloadRoot, resolve.CatalogFileName)
	if _, err := os.Stat(luaPath); err == nil {
		logger.Debug("loading kit catalog", "path", luaPath)
		override, err := resolve.LoadCatalogFile(luaPath, spec)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", resolve.CatalogFileName, err)
		}
		catalog = catalog.Merge(override)
	}

	return resolve.NewResolver(catalog)
}

// cliLogger adapts the CLI logger to the installer's logging interface.
type cliLogger struct {
	l *log.Logger
}

func (c cliLogger) Debug(msg string, keysAndValues ...interface{}) { c.l.Debug(msg, keysAndValues...) }
func (c cliLogger) Info(msg string, keysAndValues ...interface{})  { c.l.Info(msg, keysAndValues...) }
func (c cliLogger) Warn(msg string, keysAndValues ...interface{})  { c.l.Warn(msg, keysAndValues...) }
func (c cliLogger) Error(msg string, keysAndValues ...interface{}) { c.l.Error(msg, keysAndValues...) }
