package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/poshstock/poshstock/app"
	"github.com/poshstock/poshstock/database"
	"github.com/poshstock/poshstock/models"
)

const sessionPruneInterval = time.Hour

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  c.runServe,
	}
	cmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	migrate, _ := cmd.Flags().GetBool("migrate")

	c.log.Info("starting poshstock server",
		"version", version,
		"address", c.cfg.Addr(),
		"log_level", c.cfg.Log.Level,
	)

	db, err := database.Open(c.cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			c.log.Warn("failed to close database", "error", err)
		}
	}()

	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	handler, err := app.NewRouter(c.cfg, db, c.log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         c.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  time.Duration(c.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.cfg.Server.WriteTimeout) * time.Second,
	}

	go pruneSessions(ctx, c, models.NewUsersRepository(db))

	errCh := make(chan error, 1)
	go func() {
		c.log.Info("server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(c.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	c.log.Info("server stopped gracefully")
	return nil
}

func pruneSessions(ctx context.Context, c *cli, users *models.UsersRepository) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := users.DeleteExpiredSessions(ctx, now)
			if err != nil {
				c.log.Warn("failed to prune sessions", "error", err)
				continue
			}
			if n > 0 {
				c.log.Debug("pruned expired sessions", "count", n)
			}
		}
	}
}
