package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type runOptions struct {
	internationalOnly bool
	maxLinks          int
	withStates        bool
	manifestDir       string
	envFiles          []string
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:           "geo-migrate",
		Short:         "Migrate legacy site locations into the geography graph and link locations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, commandRun, opts)
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.manifestDir, "manifest-dir", "", "Directory for the run manifest (overrides MANIFEST_DIR)")
	cmd.Flags().BoolVar(&opts.internationalOnly, "international-only", false, "Only link locations outside TARGET_COUNTRY_ISO (overrides INTERNATIONAL_ONLY)")
	cmd.Flags().IntVar(&opts.maxLinks, "max-links", 0, "Maximum links inserted per run (overrides LINK_INSERT_CAP)")
	cmd.Flags().BoolVar(&opts.withStates, "with-states", false, "Run the state variant after the child pass (overrides ENABLE_STATE_VARIANT)")

	cmd.AddCommand(newStatesCmd(&opts))
	cmd.AddCommand(newCheckCmd(&opts))
	return cmd
}

func newStatesCmd(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "Place the children of the state root under its geography with state codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, commandStates, *opts)
		},
	}
}

func newCheckCmd(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to both stores and print the legacy inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, commandCheck, *opts)
		},
	}
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
