package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joncooperworks/harnesstest/sandbox"
)

func newMktempCmd(a *app) *cobra.Command {
	var prefix, suffix, parent string

	cmd := &cobra.Command{
		Use:   "mktemp",
		Short: "Create an empty sandbox directory and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := sandbox.New(sandbox.WithConfig(a.cfg), sandbox.WithLogger(a.logger))
			dir, err := p.Create(prefix, suffix, parent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "harness", "directory name prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "directory name suffix")
	cmd.Flags().StringVar(&parent, "parent", "", "parent directory (default from HARNESSTEST_TEMP_DIR)")
	return cmd
}

func newRmtempCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmtemp DIR",
		Short: "Delete a sandbox directory and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := sandbox.New(sandbox.WithConfig(a.cfg), sandbox.WithLogger(a.logger))
			if !p.Release(args[0]) {
				return fmt.Errorf("failed to release %s", args[0])
			}
			return nil
		},
	}
}
