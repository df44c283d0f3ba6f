package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/host"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		args     string
		isolated bool
	)

	cmd := &cobra.Command{
		Use:   "run ARCHIVE NAME",
		Short: "Run a plugin from an archive",
		Long: `Run a plugin declared in an archive's plugins.config.

NAME is either the plugin's display name or its qualified unit name. The
result is printed as JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, positional []string) error {
			archive, name := positional[0], positional[1]
			if !json.Valid([]byte(args)) {
				return fmt.Errorf("--args is not valid JSON: %s", args)
			}

			env, err := host.NewLegacyEnvironmentWithConfig(nil, isolated, a.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := env.Close(); closeErr != nil {
					a.logger.Warn("failed to close environment", zap.Error(closeErr))
				}
			}()

			if err := env.AddPluginArchive(archive); err != nil {
				return err
			}
			result, err := env.Run(cmd.Context(), name, json.RawMessage(args))
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&args, "args", "{}", "JSON arguments passed to the plugin")
	cmd.Flags().BoolVar(&isolated, "isolated", true, "ignore plugins and keys belonging to the user")
	return cmd
}
