package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/migrations"
)

func newMigrateCmd(load cliConfigLoader, logger func() *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	openRunner := func() (*migrations.Runner, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		return migrations.New(cfg.DatabaseURL, logger())
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner()
			if err != nil {
				return err
			}
			defer runner.Close()

			if err := runner.Up(); err != nil {
				return err
			}
			return printVersion(cmd, runner)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			runner, err := openRunner()
			if err != nil {
				return err
			}
			defer runner.Close()

			if err := runner.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, runner)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := openRunner()
			if err != nil {
				return err
			}
			defer runner.Close()
			return printVersion(cmd, runner)
		},
	}

	cmd.AddCommand(up, down, versionCmd)
	return cmd
}

func printVersion(cmd *cobra.Command, runner *migrations.Runner) error {
	v, dirty, err := runner.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
