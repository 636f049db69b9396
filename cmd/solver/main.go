package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamup/answer-agent/internal/config"
)

var (
	// Version information
	version = "0.1.0"

	configFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "solver",
	Short: "Answer Agent - automated quiz answering",
	Long: `Answer Agent drives a browser through an online maths quiz.
It captures each question, answers it from a local cache or an OpenAI model,
types the answer in and moves on. Bookwork checks are answered from the
answers remembered earlier in the session.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "solver v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./config.yaml or $HOME/.answer-agent/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration, letting bind register flag overrides first
func loadConfig(bind func(loader *config.ConfigLoader) error) (*config.Config, *config.ConfigLoader, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, nil, err
	}
	if bind != nil {
		if err := bind(loader); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// setupLogger installs the configured logger as the default
func setupLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closeLog, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeLog, nil
}
