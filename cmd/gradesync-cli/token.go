package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gradesync-api/internal/models"
	"github.com/noah-isme/gradesync-api/internal/service"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token with the configured JWT secret",
		Long: `Signs an HS256 access token accepted by the grading endpoints.
Intended for local development and smoke tests; production tokens come from the application server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			auth := service.NewAuthService(nil, service.AuthConfig{
				AccessTokenSecret: c.cfg.JWT.Secret,
				Issuer:            c.cfg.JWT.Issuer,
			})
			token, err := auth.IssueToken(userID, models.UserRole(strings.ToUpper(role)), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTeacher), "role carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
