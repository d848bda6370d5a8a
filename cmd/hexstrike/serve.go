package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hexstrike/hexstrike/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API daemon",
	Long: `Start the JSON API with server-sent event streaming for runs.
Shutdown on SIGINT/SIGTERM drains in this order: listener, running
subprocesses, cache.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := buildCore()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, c.coord, c.prof, c.engine, c.catalog, c.cache, c.orch, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		c.close()
		return err
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	c.close()
	return nil
}
