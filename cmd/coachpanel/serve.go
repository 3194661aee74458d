package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coachpanel/backend/internal/config"
	"github.com/coachpanel/backend/internal/handler"
	"github.com/coachpanel/backend/internal/logger"
	"github.com/coachpanel/backend/internal/repository"
	"github.com/coachpanel/backend/internal/router"
	"github.com/coachpanel/backend/internal/server"
	"github.com/coachpanel/backend/internal/service"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, &log, loggerService)
	if err != nil {
		loggerService.Shutdown()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	repos := repository.NewRepositories(srv)

	services, err := service.NewServices(srv, repos)
	if err != nil {
		return errors.Join(fmt.Errorf("could not create services: %w", err), srv.Shutdown(context.Background()))
	}

	if err := srv.Job.Start(); err != nil {
		return errors.Join(fmt.Errorf("failed to start background jobs: %w", err), srv.Shutdown(context.Background()))
	}

	handlers := handler.NewHandlers(srv, services)
	srv.SetupHTTPServer(router.NewRouter(srv, handlers, services))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err = <-serveErr:
		log.Error().Err(err).Msg("server stopped unexpectedly")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("server forced to shutdown")
		err = errors.Join(err, shutdownErr)
	}

	log.Info().Msg("server exited")
	return err
}
