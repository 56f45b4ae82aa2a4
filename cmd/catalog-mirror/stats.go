package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Sternrassler/catalog-mirror/internal/mirror"
	"github.com/Sternrassler/catalog-mirror/internal/store"
)

var errNoDatabase = errors.New("no catalog database")

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the local mirror holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.stats(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) stats(ctx context.Context, out io.Writer) (err error) {
	path := a.cfg.Database.Path
	if store.IsMemory(path) {
		return fmt.Errorf("%w: dry runs keep nothing", errNoDatabase)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w at %s: %w", errNoDatabase, path, err)
	}

	db, err := store.Open(store.Config{Path: path})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.CloseDB(db)) }()

	st, err := store.CollectStats(ctx, store.StaticConn(db))
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(path)
	t.AppendHeader(table.Row{"Table", "Rows"})
	t.AppendRows([]table.Row{
		{"Games", st.Games},
		{"Categories", st.Categories},
		{"Mods", st.Mods},
		{"Files", st.Files},
		{"Cached requests", st.Requests},
	})

	if _, statErr := os.Stat(a.cfg.Bucket.Path); statErr == nil && !store.IsMemory(a.cfg.Bucket.Path) {
		if err := a.appendBucketStats(ctx, t); err != nil {
			return err
		}
	}

	t.Render()
	return nil
}

func (a *app) appendBucketStats(ctx context.Context, t table.Writer) (err error) {
	b, closeBucket, err := mirror.OpenBucket(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeBucket()) }()

	bs, err := b.Stats(ctx)
	if err != nil {
		return err
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Blobs", bs.Blobs},
		{"Provenance", bs.Provenance},
		{"Blob bytes", bs.Bytes},
	})
	return nil
}
