package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Sternrassler/catalog-mirror/internal/mirror"
	"github.com/Sternrassler/catalog-mirror/pkg/metrics"
)

var errLastSyncFailed = errors.New("last sync failed")

// cronParser accepts five-field expressions and descriptors such as @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func newScheduleCmd(a *app) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Sync repeatedly on a cron schedule",
		Long: `Keep the process running and start a sync pass on every tick of the
configured cron spec. A tick that arrives while a pass is still running is
skipped. Metrics are served when a metrics address is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.schedule(ctx, runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "run a pass immediately before the first tick")
	return cmd
}

func (a *app) schedule(ctx context.Context, runNow bool) (err error) {
	if _, err := cronParser.Parse(a.cfg.Schedule.Spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule.Spec, err)
	}

	release, err := a.prepare()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, release()) }()

	s, err := mirror.Open(ctx, a.cfg)
	if err != nil {
		return err
	}

	logger := log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}

	var failed atomic.Bool
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(a.cfg.Schedule.Spec, func() {
		_, err := s.Run(ctx)
		failed.Store(err != nil && !errors.Is(err, mirror.ErrInterrupted))
	})
	if err != nil {
		return multierr.Append(fmt.Errorf("schedule sync: %w", err), s.Shutdown())
	}

	serverErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Address; addr != "" {
		srv := metrics.NewServer(addr, func() error {
			if failed.Load() {
				return errLastSyncFailed
			}
			return nil
		})
		go func() { serverErr <- srv.Run(ctx) }()
	}

	c.Start()
	logger.Info().
		Str("spec", a.cfg.Schedule.Spec).
		Time("next", c.Entry(id).Next).
		Msg("Scheduler started")

	if runNow {
		c.Entry(id).WrappedJob.Run()
	}

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("metrics server: %w", err)
		}
	}

	logger.Info().Msg("Stopping scheduler")
	<-c.Stop().Done()
	return multierr.Append(err, s.Shutdown())
}

// cronLogger routes cron's logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
