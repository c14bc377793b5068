// Package cmd provides the command-line interface for anchorage with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, --log-level, etc.) - highest priority
//	2. ANCHORAGE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (ANCHORAGE_SERVER_PORT, etc.)
//	4. Configuration files (.anchorage.yml) - lowest priority
//
// Environment Variables:
//
//	ANCHORAGE_CONFIG_FILE: Path to custom configuration file
//	ANCHORAGE_SERVER_PORT: Override server port
//	ANCHORAGE_WORKSPACE_LAZY_LOAD: Defer workspace scans until requested
//	And more following the ANCHORAGE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anchorage",
	Short: "Index and navigate comment anchors in a workspace",
	Long: `anchorage finds comment anchors such as TODO, FIXME, NOTE and SECTION
regions in source files, keeps an index of them per document and presents
that index as file, workspace and epic views.

Quick Start:
  anchorage scan                  Index the workspace
  anchorage list main.go          Show the anchors of one file
  anchorage list --workspace      Show anchors across the workspace
  anchorage export anchors.csv    Export every anchor
  anchorage serve                 Serve the index with live updates

Command Aliases (for faster typing):
  list (l), scan (s), watch (w), goto (g)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .anchorage.yml, can also use ANCHORAGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. ANCHORAGE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .anchorage.yml in current directory
//
// Every configuration value can also be set from the environment with the
// ANCHORAGE_ prefix (e.g., ANCHORAGE_DISPLAY_PATH_FORMAT=abbreviated).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ANCHORAGE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".anchorage")
	}

	viper.SetEnvPrefix("ANCHORAGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable file leaves the defaults in place
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the merged configuration and builds the logger it asks for.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}
