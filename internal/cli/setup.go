package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/actuator/internal/config"
)

// env is what every command needs after flags and config are resolved
type env struct {
	cfg     *config.Config
	cfgPath string // empty when running on defaults
	root    string
	logger  *slog.Logger
}

// setup loads the config named by --config, or the nearest one above the
// working directory, or the defaults. The workspace root comes from --root
// when the command has that flag, else from the config.
func setup(cmd *cobra.Command) (*env, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	root, err := resolveRoot(cmd, cfg, cfgPath)
	if err != nil {
		return nil, err
	}

	if cfgPath != "" {
		logger.Debug("loaded configuration", "path", cfgPath)
	}
	logger.Debug("workspace root", "path", root)

	return &env{cfg: cfg, cfgPath: cfgPath, root: root, logger: logger}, nil
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, configPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	found, err := config.FindInTree(cwd)
	if err != nil {
		return nil, "", err
	}
	if found == "" {
		return config.GenerateDefault(), "", nil
	}

	cfg, err := config.LoadFromFile(found)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, found, nil
}

func resolveRoot(cmd *cobra.Command, cfg *config.Config, cfgPath string) (string, error) {
	if flag := cmd.Flags().Lookup("root"); flag != nil && flag.Value.String() != "" {
		return filepath.Abs(flag.Value.String())
	}
	if cfgPath == "" {
		return os.Getwd()
	}
	return config.WorkspaceRootFor(cfg, cfgPath)
}

// newLogger builds the process logger on stderr. Flags override config.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	levelText, _ := cmd.Flags().GetString("log-level")
	if levelText == "" {
		levelText = cfg.Logging.Level
	}
	level, err := parseLogLevel(levelText)
	if err != nil {
		return nil, err
	}

	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = cfg.Logging.Format
	}

	return buildLogger(cmd.ErrOrStderr(), level, format)
}

func buildLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", format)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", s)
	}
}

// readInput reads a file argument, or stdin for "-"
func readInput(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return string(data), nil
}

// signalContext cancels on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
