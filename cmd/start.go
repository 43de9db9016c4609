/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/docqa/handler"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP server",
	Long:  `Starts a server that ingests uploaded PDFs and answers questions about them`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfgFile)
		if err != nil {
			return err
		}

		if a.cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := handler.SetupRouter(a.sessions, a.files, handler.RouterConfig{
			AllowOrigins:  a.cfg.AllowOrigins,
			MaxUploadSize: a.cfg.Ingest.MaxUploadSize,
		}, a.logger)

		srv := &http.Server{
			Addr:              a.cfg.Address(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			a.logger.Info("Starting server",
				zap.String("address", a.cfg.Address()),
				zap.String("provider", a.cfg.Provider),
				zap.String("index_backend", a.cfg.IndexBackend),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-serverErr:
			if err != nil {
				a.logger.Error("Failed to start server", zap.Error(err))
				a.close(context.Background())
				return err
			}
		}

		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server forced to shutdown", zap.Error(err))
		}
		a.close(shutdownCtx)
		a.logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
