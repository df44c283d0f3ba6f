package main

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/cobra"

	"github.com/joncooperworks/harnesstest/bundle"
)

func newBundleCmd(a *app) *cobra.Command {
	var (
		source string
		output string
		suffix string
		level  int
	)

	cmd := &cobra.Command{
		Use:   "bundle --source DIR --output FILE UNIT...",
		Short: "Package compiled units into a plugin archive",
		Long: `Package compiled units into a zip archive.

Each UNIT is a dotted name such as org.example.My_Plugin, read from
DIR/org/example/My_Plugin.wasm. Units whose simple name contains an
underscore are listed in the archive's plugins.config.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, units []string) error {
			b := bundle.New(os.DirFS(source),
				bundle.WithSuffix(suffix),
				bundle.WithCompressionLevel(level),
				bundle.WithLogger(a.logger),
			)
			if err := b.Bundle(output, units...); err != nil {
				return err
			}

			plugins := 0
			for _, unit := range units {
				if _, ok := bundle.EntryFor(unit); ok {
					plugins++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d units (%d plugins) to %s\n", len(units), plugins, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", ".", "directory holding compiled units")
	cmd.Flags().StringVar(&output, "output", "", "archive to write (required)")
	cmd.Flags().StringVar(&suffix, "suffix", bundle.DefaultUnitSuffix, "unit file suffix")
	cmd.Flags().IntVar(&level, "level", flate.DefaultCompression, "deflate compression level")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest ARCHIVE",
		Short: "List the plugins declared by an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := bundle.ReadManifest(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No plugins found in archive")
				return nil
			}
			fmt.Fprintf(out, "Plugins in %s (%d):\n", args[0], len(entries))
			for _, entry := range entries {
				fmt.Fprintf(out, "  - %s\n", entry)
			}
			return nil
		},
	}
}
