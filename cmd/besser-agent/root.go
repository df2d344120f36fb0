package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/logging"
)

const (
	defaultConfigPath = "config.ini"
	defaultEnvPath    = ".env"
)

var (
	// Global flags
	configPath string
	envPath    string
	logLevel   string
	logFormat  string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "besser-agent",
	Short: "Run and talk to conversational agents",
	Long: `besser-agent - run state machine agents and chat with them.

Properties are read from an .ini or .yaml file and overridden by
BESSER_<SECTION>_<NAME> environment variables, e.g. BESSER_TELEGRAM_TOKEN.

Examples:
  # Serve the greetings agent on ws://localhost:8765
  besser-agent run greetings

  # Talk to it from another terminal
  besser-agent chat

  # Inspect what happened
  besser-agent monitor transition --limit 20`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "properties file (default: config.ini when present)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "dotenv file (default: .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatPretty, "pretty, json or text")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := loadEnv(envPath); err != nil {
		return err
	}
	l, err := logging.New(logging.Options{Format: logFormat, Level: logLevel, Out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l)
	return nil
}

// loadEnv loads path, or .env when path is empty and the file exists.
// Variables already set in the process win.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvPath); err != nil {
			return nil
		}
		path = defaultEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadProperties reads --config, or config.ini when it exists.
func loadProperties() (*config.Properties, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
			return config.New(), nil
		}
		path = defaultConfigPath
	}
	props, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("properties loaded", slog.String("path", path))
	return props, nil
}
