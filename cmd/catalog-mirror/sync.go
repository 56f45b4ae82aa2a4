package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Sternrassler/catalog-mirror/internal/lock"
	"github.com/Sternrassler/catalog-mirror/internal/mirror"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass",
		Long: `Run one sync pass over the configured games and categories. Ctrl-C
finishes the mod in progress, commits and exits; the next run resumes from
the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := a.syncOnce(ctx)
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

// syncOnce runs a single pass under the process lock. An interrupted pass is
// not an error.
func (a *app) syncOnce(ctx context.Context) (summary mirror.Summary, err error) {
	release, err := a.prepare()
	if err != nil {
		return summary, err
	}
	defer func() { err = multierr.Append(err, release()) }()

	s, err := mirror.Open(ctx, a.cfg)
	if err != nil {
		return summary, err
	}

	summary, err = s.Run(ctx)
	if errors.Is(err, mirror.ErrInterrupted) {
		err = nil
	}
	return summary, multierr.Append(err, s.Shutdown())
}

// prepare validates the configuration and takes the lock. Dry runs write
// nothing and skip the lock.
func (a *app) prepare() (release func() error, err error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.cfg.DryRun {
		log.Info().Msg("Dry run: nothing will be kept")
		return func() error { return nil }, nil
	}

	pid, err := lock.Acquire(a.cfg.Lock.Path)
	if err != nil {
		return nil, err
	}
	return pid.Release, nil
}

func renderSummary(out io.Writer, s mirror.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Sync", "Count"})
	t.AppendRows([]table.Row{
		{"Pages", s.Pages},
		{"Games", s.Games},
		{"Categories", s.Categories},
		{"Mods new", s.ModsNew},
		{"Mods updated", s.ModsUpdated},
		{"Mods unchanged", s.ModsSkipped},
		{"Mods failed", s.ModsFailed},
		{"Files", s.Files},
		{"Assets", s.Assets},
		{"Listing failures", s.ListingFailures},
		{"Early stops", s.EarlyStops},
	})
	t.AppendFooter(table.Row{"Duration", s.Duration.Round(time.Millisecond).String()})
	t.Render()
}
