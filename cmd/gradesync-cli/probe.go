package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gradesync-api/internal/repository"
)

func newProbeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Run one health probe against the grade API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := repository.NewGradeAPIClient(repository.GradeAPIClientConfig{
				BaseURL:   c.cfg.GradeAPI.BaseURL,
				Token:     c.cfg.GradeAPI.Token,
				Timeout:   c.cfg.GradeAPI.Timeout,
				HealthURL: c.cfg.GradeAPI.HealthURL,
			}, nil, nil, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.GradeAPI.Timeout)
			defer cancel()
			result, err := client.Ping(ctx)
			if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil {
				return writeErr
			}
			return err
		},
	}
}
