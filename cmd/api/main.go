// @title           Task Manager API
// @version         1.0
// @description     Ownership-scoped task CRUD with JWT and cookie-session authentication.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name session_id
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"taskmanager/internal/app"
	"taskmanager/internal/config"

	_ "taskmanager/docs"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	slog.SetDefault(log)
	if cfg.App.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("config loaded", "env", cfg.App.Env, "store", cfg.Store.Driver, "redis", cfg.Redis.Enabled())

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// http-server is stopped before the stores it reads from are closed
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.HTTP.ShutdownTimeout.Duration(),
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info("graceful shutdown initiated")
				if err := server.Shutdown(ctx); err != nil {
					return err
				}
				return application.Close(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Info("application exited", "code", exitCode)
	os.Exit(exitCode)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
