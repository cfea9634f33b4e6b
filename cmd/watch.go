package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/foomo/helpboard/client"
	"github.com/foomo/helpboard/post"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewWatchCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewHTTPClient(serverFlag(v))
			if err != nil {
				return err
			}
			defer c.ShutDown()

			filter, err := post.NewFilter(categoryFlag(v))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return c.Watch(cmd.Context(), filter.String(), func(s *post.Snapshot) {
				zap.L().Debug("snapshot received", zap.Uint64("version", s.Version))
				if err := printSnapshot(out, s, time.Now()); err != nil {
					zap.L().Warn("could not print snapshot", zap.Error(err))
				}
			})
		},
	}

	flags := cmd.Flags()
	addServerFlag(flags, v)
	addCategoryFlag(flags, v, post.FilterAll, "Only show posts of this category")

	return cmd
}

func printSnapshot(w io.Writer, s *post.Snapshot, now time.Time) error {
	stats := s.Stats()
	if _, err := fmt.Fprintf(w, "--- %s: %s posts, %s open, %s resolved in %s cities\n",
		s.Category,
		humanize.Comma(int64(stats.Total)),
		humanize.Comma(int64(stats.Open)),
		humanize.Comma(int64(stats.Resolved)),
		humanize.Comma(int64(stats.Cities)),
	); err != nil {
		return err
	}
	for _, p := range s.Posts {
		if _, err := fmt.Fprintf(w, "%-6s %-6s %-10s %-12s %-14s %s: %s\n",
			p.Status, p.Type, p.Category, p.City, p.Age(now), p.Name, p.Description,
		); err != nil {
			return err
		}
	}
	return nil
}
