package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/bookrec/config"
	agentcore "github.com/mohammad-safakhou/bookrec/internal/agent/core"
	agenttele "github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
)

// NewRouter builds the HTTP surface around rec.
func NewRouter(cfg *config.Config, rec agentcore.Recommender, tele *agenttele.Telemetry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if cfg.Server.MaxQueryBody > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Server.MaxQueryBody, 10)))
	}
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		path := cfg.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(tele.Handler()))
	}

	api := e.Group("/api")
	rh := &RecommendHandler{
		Orch:       rec,
		RunTimeout: cfg.Server.RunTimeout,
		logger:     baseLogger,
	}
	rh.Register(api)
	api.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, tele.GetMetrics())
	})
	return e
}

// Run builds the orchestrator from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	tele := agenttele.NewTelemetry(cfg.Telemetry)
	defer tele.Shutdown()

	orch, closeFn, err := agentcore.Build(ctx, cfg, tele)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	e := NewRouter(cfg, orch, tele)
	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10001"
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
