package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ooda/pkg/config"
	"ooda/pkg/models/gemini"
	"ooda/pkg/runner"
	"ooda/pkg/sandbox"
	"ooda/pkg/sandbox/docker"
	"ooda/pkg/toolbox"
	"ooda/pkg/tools"
)

type rootFlags struct {
	configPath string
	model      string
	verbosity  int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "ooda",
		Short:         "An agent that answers questions by looping a model through observe-orient-decide-act steps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(flags.verbosity)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.model, "model", "", "model name, overrides config")
	cmd.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newChatCmd(flags))

	return cmd
}

func setupLogging(verbosity int) {
	level := slog.LevelInfo
	switch {
	case verbosity == 1:
		level = slog.LevelDebug
	case verbosity >= 2:
		level = gemini.LevelTrace
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the effective config with flag overrides applied.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if cfg.APIKey == "" {
		return nil, errors.New("an API key is required; set OODA_API_KEY or GEMINI_API_KEY")
	}
	return cfg, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (*gemini.Provider, error) {
	return gemini.New(ctx, cfg.APIKey)
}

func runnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		Model:            cfg.Model,
		MaxSteps:         cfg.MaxSteps,
		Temperature:      cfg.Temperature,
		ReserveTokens:    cfg.ReserveTokens,
		MaxResponseBytes: cfg.MaxResponseBytes,
	}
}

func duplicatePolicy(cfg *config.Config) tools.DuplicatePolicy {
	if cfg.RejectDuplicateTools {
		return tools.Reject
	}
	return tools.Overwrite
}

// newSandbox starts the docker sandbox manager. A missing docker daemon
// is not fatal; the toolbox simply omits SandboxedPython.
func newSandbox(cfg *config.Config) sandbox.Manager {
	mgr, err := docker.New(cfg.SandboxImage)
	if err != nil {
		slog.Warn("sandbox unavailable, continuing without SandboxedPython", "error", err)
		return nil
	}
	return mgr
}

func registryFactory(cfg *config.Config, sb sandbox.Manager) func(string) (*tools.Registry, error) {
	return func(taskID string) (*tools.Registry, error) {
		return toolbox.New(taskID, toolbox.Config{
			Sandbox:    sb,
			FileAccess: cfg.FileAccess,
			Duplicates: duplicatePolicy(cfg),
		})
	}
}
