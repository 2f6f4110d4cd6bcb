package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/ceyewan/bfametrics/auth"
)

func tokenCmd(a *app) *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a JWT for the intake API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticator, err := auth.New(&a.cfg.Auth, auth.WithLogger(a.logger))
			if err != nil {
				return err
			}
			claims := &auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: args[0]},
				Roles:            roles,
			}
			if ttl > 0 {
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
			}
			token, err := authenticator.GenerateToken(cmd.Context(), claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&roles, "role", "r", []string{auth.RoleReporter}, "granted role, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.access_token_ttl")
	return cmd
}
