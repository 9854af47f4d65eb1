package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"duet-backup/core/loader"
	"duet-backup/core/logger"
	"duet-backup/core/middleware/auth"
	"duet-backup/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// NewApp builds the Fiber app: ray id and request logging first, a public
// /health route, then the API key check in front of every loaded feature.
func NewApp(cfg Config, mgr *loader.Manager, log *zap.Logger) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We will log our own startup message
	})

	// RayID must be first to trace everything
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(log, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	names, err := mgr.LoadAll(app)
	if err != nil {
		return nil, err
	}
	log.Debug("Features loaded", zap.Strings("features", names))

	return app, nil
}

// Serve listens on the configured port until ctx is done, then shuts the
// app down.
func Serve(ctx context.Context, app *fiber.App, cfg Config, log *zap.Logger) error {
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Port))
		errc <- app.Listener(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return <-errc
}
