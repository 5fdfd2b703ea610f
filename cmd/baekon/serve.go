package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"baekon/internal/config"
	"baekon/internal/ics"
	appLog "baekon/internal/log"
	"baekon/internal/planner"
	"baekon/internal/subscribe"
	"baekon/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen string
		once   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the subscription refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.setup(true)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return runServe(cmd.Context(), cfg, once, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&once, "once", false, "refresh subscriptions once, print a summary and exit")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, once bool, out io.Writer) error {
	loc, ok := cfg.Location()
	if !ok {
		appLog.Warn("unknown timezone; using local", "timezone", cfg.Timezone)
	}

	appLog.Info("baekon starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"refresh", cfg.RefreshCron,
		"subscriptions", len(cfg.Subscriptions),
		"once", once,
	)

	store := planner.NewStore()
	svc := planner.NewService(store, planner.Options{
		Location:        loc,
		DefaultHour:     cfg.DefaultEventHour,
		DefaultDuration: time.Duration(cfg.DefaultEventMinutes) * time.Minute,
	})

	var refresher *subscribe.Refresher
	if len(cfg.Subscriptions) > 0 {
		refresher = subscribe.New(ics.NewFetcher(cfg.CacheDir), store, cfg.Subscriptions)
	}

	if once {
		return refreshOnce(ctx, refresher, out)
	}

	srv, err := web.NewServer(cfg, svc, refresher)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.StartServer(gctx, cfg, srv.Handler())
	})
	if refresher != nil {
		g.Go(func() error {
			return refresher.Run(gctx, cfg.RefreshCron, loc)
		})
	}

	err = g.Wait()
	appLog.Info("baekon exiting")
	return err
}

func refreshOnce(ctx context.Context, refresher *subscribe.Refresher, out io.Writer) error {
	if refresher == nil {
		fmt.Fprintln(out, "no subscriptions configured")
		return nil
	}
	st, err := refresher.RunOnce(ctx)

	ids := make([]string, 0, len(st.Imported))
	for id := range st.Imported {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "%-20s %d events\n", id, st.Imported[id])
	}
	for _, e := range st.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
	return err
}
