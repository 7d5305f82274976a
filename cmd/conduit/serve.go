package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"conduit/internal/logging"
	"conduit/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(cli *CLI) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cli.config.Server.Addr = addr
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return cli.serve(ctx, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func (cli *CLI) serve(ctx context.Context, cmd *cobra.Command) error {
	logger := logging.NewComponentLogger("server")
	hub := server.NewEventHub(logger)

	a, err := newApp(ctx, cli.config, hub)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := server.New(server.Deps{
		Runner:  a.runner,
		Store:   a.store,
		Metrics: a.metrics.Handler(),
		Events:  hub,
		Logger:  logger,
	}, cli.config.Server)
	if err != nil {
		return err
	}

	cmd.Printf("%s listening on %s\n", bold("conduit"), cli.config.Server.Addr)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return nil
	})
	return g.Wait()
}
