package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"billtracker/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := auth.NewJWTManager(a.cfg.JWTSecret, a.cfg.JWTTTL).Generate(userID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner id placed in the token subject")
	cmd.Flags().StringVar(&name, "name", "", "Display name claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
