package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/auth"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate secrets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a random TOKEN_SECRET value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateTokenKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	})
	return cmd
}
