package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"benchtree/internal/api"
	"benchtree/internal/inspect"

	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	l, err := openLedger(p)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Address
	}

	s := api.NewServer(p, api.Options{
		Ledger:  l,
		Solver:  cfg.Solver,
		LogRoot: cfg.Logs.Root,
		LogOpts: inspect.DiscoverOptions{Marker: cfg.Logs.Marker, Suffix: cfg.Logs.Suffix},
	}, logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving job tree", "addr", addr, "folder", p.Root())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
