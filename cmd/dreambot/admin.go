package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dreambot/dreambot/firehose"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

type HealthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Connected bool   `json:"connected"`
	LastSeq   int64  `json:"lastSeq"`
}

type streamStatus interface {
	Connected() bool
	LastSeq() int64
}

var _ streamStatus = (*firehose.Consumer)(nil)

func newAdminServer(logger *slog.Logger, stream streamStatus) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger.With("system", "admin")))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("dreambot"))

	e.GET("/_health", func(c echo.Context) error {
		// a reconnecting stream is not unhealthy; it is reported, not failed
		return c.JSON(http.StatusOK, HealthStatus{
			Status:    "ok",
			Version:   versioninfo.Short(),
			Connected: stream.Connected(),
			LastSeq:   stream.LastSeq(),
		})
	})
	e.GET("/metrics", echoprometheus.NewHandler())
	return e
}

// runs until the context is cancelled, then shuts the server down
func runAdminServer(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting admin server", "bind", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
