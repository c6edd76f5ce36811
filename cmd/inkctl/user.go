package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/repository"
	"github.com/inkpost/inkpost/internal/service"
)

func newUserCmd(load cliConfigLoader, logger func() *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var name, email string
	var passwordStdin bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a password",
		Long: "Create an account with a password. The password is read from the first\n" +
			"line of stdin when --password-stdin is set, so it never appears in shell history.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return errors.New("--password-stdin is required")
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}

			repo, err := repository.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()

			svc := service.NewAuthService(repo, auth.NewBcryptHasher(cfg.BcryptCost), nil, nil, nil, logger())
			out, err := svc.Signup(cmd.Context(), service.SignupInput{
				Name:     name,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: user %d\n", out.Message, out.UserID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
