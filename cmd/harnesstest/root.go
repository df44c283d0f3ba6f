package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/config"
	"github.com/joncooperworks/harnesstest/logging"
)

// app carries state shared by subcommands once the root command has run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	logLevel string
	logDev   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "harnesstest",
		Short: "Build and exercise harness plugin archives",
		Long: `harnesstest packages compiled plugin units into archives, inspects their
plugins.config manifests, manages sandbox directories and runs plugins in an
isolated host.

Settings are read from HARNESSTEST_* environment variables.

Examples:
  harnesstest bundle --source build/units --output plugins.zip org.example.My_Plugin
  harnesstest manifest plugins.zip
  harnesstest run plugins.zip "My Plugin" --args '{"target":"localhost"}'`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (default from HARNESSTEST_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&a.logDev, "log-dev", false, "human readable development logging")

	rootCmd.AddCommand(
		newBundleCmd(a),
		newManifestCmd(),
		newMktempCmd(a),
		newRmtempCmd(a),
		newRunCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-dev") {
		cfg.LogDevelopment = a.logDev
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Development = cfg.LogDevelopment
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	logging.SetLogger(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
