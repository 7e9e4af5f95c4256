package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bhuvesh-solnce/backend/internal/application/services"
	"github.com/bhuvesh-solnce/backend/internal/infrastructure/database"
	"github.com/bhuvesh-solnce/backend/internal/interfaces/middleware"
	"github.com/bhuvesh-solnce/backend/internal/interfaces/rest"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with the outbox worker and cleanup schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if migrateFirst {
				if err := database.Migrate(cfg.Database); err != nil {
					return err
				}
				logger.Info("Migrations applied")
			}
			return runServer()
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServer() error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.WithField("db", cfg.Database.Name).Info("Database connection established")

	svcMgr, err := services.NewServiceManager(db, cfg.Outbox)
	if err != nil {
		return err
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rest.HideInternalErrors(cfg.App.IsProduction())

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Cors())
	rest.RegisterRoutes(router, rest.Handlers{
		Health:    rest.NewHealthHandler(svcMgr),
		Workflows: rest.NewWorkflowHandler(svcMgr.Workflows, svcMgr.Execution),
		Projects:  rest.NewProjectHandler(svcMgr.Projects),
	}, middleware.RequireAuth(cfg.Auth))

	svcMgr.StartBackground()
	logger.WithFields(logrus.Fields{
		"poll_interval":    cfg.Outbox.PollInterval.String(),
		"cleanup_schedule": cfg.Outbox.CleanupSchedule,
		"next_cleanup":     svcMgr.Maintenance.NextRun(),
	}).Info("Background workers started")

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.App.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		svcMgr.StopBackground()
		return err
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	svcMgr.StopBackground()
	logger.Info("Server exiting")
	return nil
}
