// Package cli implements the command-line interface for changelogs.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/core"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	strictMode bool
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Store   store.Store
	Builder *core.Builder
	Logger  *zap.Logger
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// initContext loads the config, opens the entry store and creates a builder.
func initContext() *cmdContext {
	logger, err := newLogger(logLevel, logFormat)
	if err != nil {
		exitError("%v", err)
	}
	c, err := openContext(logger)
	if err != nil {
		exitOnError(err)
	}
	return c
}

func openContext(logger *zap.Logger) (*cmdContext, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if strictMode {
		cfg.Strict = true
	}

	st, err := store.Open(cfg.Store.Driver, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &cmdContext{
		Config:  cfg,
		Store:   st,
		Builder: core.NewBuilder(cfg, st, core.Options{Logger: logger}),
		Logger:  logger,
	}, nil
}

// newLogger builds the process logger from the --log-level and --log-format flags.
func newLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", level)
	}

	var zc zap.Config
	switch format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q (expected console or json)", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "changelogs",
	Short: "Changelog ingestion for documentation sites",
	Long: `changelogs loads release history from GitHub, Gitea, Changesets and
Keep a Changelog files into a local entry store, and expands it into the
static pages, version pickers and sidebar links of a documentation site.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Path to the config file")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	pf.StringVar(&logFormat, "log-format", "console", "Log format (console|json)")
	pf.BoolVar(&strictMode, "strict", false, "Fail the build on network errors instead of keeping stored entries")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(sidebarCmd)
	rootCmd.AddCommand(watchCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(os.Stderr, "error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// exitOnError reports err and exits. User errors print their cause and hint
// on separate lines.
func exitOnError(err error) {
	var ue *models.UserError
	if !errors.As(err, &ue) {
		exitError("%v", err)
	}

	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, ue.Message)
	if ue.Err != nil {
		fmt.Fprintf(os.Stderr, "\n  %v\n", ue.Err)
	}
	if ue.Hint != "" {
		color.New(color.FgYellow).Fprintf(os.Stderr, "\n%s\n", ue.Hint)
	}
	os.Exit(1)
}
