package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/config"
)

// newRootCmd builds the command tree. Commands that touch the database read
// DATABASE_URL lazily so that offline commands work without it.
func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "inkctl [command]",
		Short:         "Inkpost administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	logger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newMigrateCmd(config.LoadCLI, logger),
		newUserCmd(config.LoadCLI, logger),
		newSecretCmd(),
		newVersionCmd(),
	)
	return root
}

type cliConfigLoader func() (*config.CLIConfig, error)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the inkctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inkctl %s\n", version)
		},
	}
}
