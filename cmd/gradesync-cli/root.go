package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gradesync-api/pkg/config"
)

// cli holds state shared by the subcommands.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "gradesync-cli",
		Short:         "Operator tools for the GradeSync API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.AddCommand(newTokenCmd(c))
	root.AddCommand(newProbeCmd(c))
	root.AddCommand(newQueueCmd(c))
	return root
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
