package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewResolveCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a post as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, v)
			if err != nil {
				return err
			}
			defer c.ShutDown()

			resolved, err := c.ResolvePost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", resolved.ID, resolved.Status)
			return err
		},
	}

	flags := cmd.Flags()
	addServerFlag(flags, v)
	addTokenFlag(flags, v)

	return cmd
}
