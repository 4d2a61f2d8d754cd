package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/config"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

// Version is overridden at build time.
var Version = "dev"

// runtimeEnv is the state every subcommand starts from.
type runtimeEnv struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	env := &runtimeEnv{}
	var configFile string

	root := &cobra.Command{
		Use:   "rankd",
		Short: "leaderboard ranking cache",
		Long: fmt.Sprintf(`rankd (%s)

Scores judged submissions and serves global and per-entity leaderboards
from a Redis-compatible ranking cache. Configuration is read from the file
named by %s and from %s* environment variables.`, Version, config.EnvConfigFile, config.EnvPrefix),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.load(cmd, configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")

	serve := newServeCmd(env)
	root.AddCommand(serve, newResyncCmd(env), newClearCmd(env), newVersionCmd())
	// A bare "rankd" serves.
	root.RunE = serve.RunE
	return root
}

// load reads .env files, the configuration and initializes logging.
func (e *runtimeEnv) load(cmd *cobra.Command, configFile string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	if configFile != "" {
		if err := os.Setenv(config.EnvConfigFile, configFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	e.log = logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		e.log.Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	e.cfg = cfg
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of rankd",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("rankd %s\n", Version)
		},
	}
}
