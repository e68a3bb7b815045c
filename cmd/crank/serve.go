package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/aocrank/internal/api"
	"github.com/zulandar/aocrank/internal/monitor"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		noPoll     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the monitor poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, noPoll)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "serve the API without polling monitored processes")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, noPoll bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, gormDB, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	registry := monitor.NewRegistry(gormDB, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(ctx, api.StartOpts{
			Traces:   comps.recorder,
			Monitors: registry,
			Cranker:  comps.service,
			Port:     cfg.HTTP.Port,
			Logger:   logger,
			Out:      cmd.OutOrStdout(),
		})
	})
	if !noPoll {
		poller := newPoller(cfg, gormDB, comps, logger)
		g.Go(func() error {
			return poller.Run(ctx, cfg.Monitor.Schedule)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Polling monitored processes (%s)\n", cfg.Monitor.Schedule)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
