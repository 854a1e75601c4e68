package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tale/internal/cli"
	"github.com/aretw0/tale/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tale",
	Short: "Tale is a timed interactive-narrative engine",
	Long: `Tale plays branching stories where every decision runs against a countdown.
When time runs out the first choice is taken for you.

Run without a subcommand to play the built-in cave adventure.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("story", "", "Path to a YAML story (default: the built-in cave adventure)")
	flags.Int("countdown", 0, "Seconds to decide on each node")
	flags.Duration("transition-delay", 0, "Simulated processing time after each choice")
	flags.Int("fail-every", 0, "Fail every n-th transition (0 disables)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
}

// loadConfig layers defaults, the config file, TALE_* variables and the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, nil)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("story") {
		cfg.Story, _ = flags.GetString("story")
	}
	if flags.Changed("countdown") {
		cfg.Countdown, _ = flags.GetInt("countdown")
	}
	if flags.Changed("transition-delay") {
		cfg.TransitionDelay, _ = flags.GetDuration("transition-delay")
	}
	if flags.Changed("fail-every") {
		cfg.FailEvery, _ = flags.GetInt("fail-every")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("addr") {
		cfg.HTTPAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("redis") {
		cfg.Redis.Addr, _ = flags.GetString("redis")
	}
	if flags.Changed("max-sessions") {
		cfg.MaxSessions, _ = flags.GetInt("max-sessions")
	}
	return cfg, cfg.Validate()
}

// setup loads the configuration and the Stderr logger.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := cli.NewLogger(cfg, os.Stderr)
	if err != nil {
		return cfg, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
