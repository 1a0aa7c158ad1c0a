package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gradesync-api/internal/repository"
	"github.com/noah-isme/gradesync-api/pkg/config"
	"github.com/noah-isme/gradesync-api/pkg/database"
)

func newQueueCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the persisted offline queue",
	}

	var countOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List grades waiting for the grade API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.OfflineQueue.Backend != config.QueueBackendPostgres {
				return fmt.Errorf("offline queue backend is %q; only the postgres backend outlives the server", c.cfg.OfflineQueue.Backend)
			}
			db, err := database.NewPostgres(cmd.Context(), c.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			store := repository.NewOfflineQueueRepository(db, nil)
			if countOnly {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	list.Flags().BoolVar(&countOnly, "count", false, "print only the number of queued grades")

	cmd.AddCommand(list)
	return cmd
}
