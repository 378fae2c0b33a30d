package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pl-listing/lister/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "lister",
		Short: "Product photo classification tool for marketplace listings",
		Long: `Lister groups product photos by management number, classifies each product
with a vision-capable LLM and builds a listing table with review flags.

Photos are expected to carry a 13-digit management number in the filename,
e.g. 1212260021698_front.jpg.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogging(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default lister.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (env LISTER_LOG_LEVEL)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newReviewCmd())

	return cmd
}

func setupLogging(level string) error {
	if level == "" {
		level = os.Getenv("LISTER_LOG_LEVEL")
	}
	logLevel := slog.LevelInfo
	if level != "" {
		if err := logLevel.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads --config, falling back to lister.yaml in the working
// directory when it exists.
func (o *rootOptions) loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	cfg, err := config.Load(path, overrides...)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", "file", path, "provider", cfg.Provider, "model", cfg.ModelName(), "marketplace", cfg.Marketplace)
	return cfg, nil
}
