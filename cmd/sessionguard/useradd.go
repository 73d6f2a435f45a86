package main

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionguard/internal/config"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/spf13/cobra"
)

func newUserAddCommand(envFile *string) *cobra.Command {
	var email, name, pw string
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an active user in the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || pw == "" {
				return errors.New("--email and --password are required")
			}
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}

			ec := cfg.EngineConfig()
			hasher, err := password.NewHasher(password.Config{
				Memory:      ec.Password.Memory,
				Time:        ec.Password.Time,
				Parallelism: ec.Password.Parallelism,
				SaltLength:  ec.Password.SaltLength,
				KeyLength:   ec.Password.KeyLength,
			})
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(pw)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			users, err := openUserStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = users.Close() }()

			u, err := users.CreateUser(cmd.Context(), email, name, hash)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&pw, "password", "", "initial password")
	return cmd
}
