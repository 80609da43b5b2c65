package server

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/correlation"
	apperrors "github.com/cryptomx1/truth-unveiled-dao-sub001/internal/errors"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	s.echo.Use(apperrors.Middleware(s.metrics.ErrorsTotal))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled: true,
		ContentSecurityPolicy: "default-src 'none'; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))
	s.echo.Use(s.metrics.Middleware())

	api := s.echo.Group("/api")

	// Target IDs contain slashes, so target-keyed routes use a wildcard
	// and read the remainder through c.Param("*").
	api.POST("/submissions", s.handleSubmit, newRateLimiter(s.config.IntakeRatePerSecond, s.config.IntakeBurst))
	api.GET("/deltas/*", s.handleGetDelta)
	api.GET("/snapshots/*", s.handleGetSnapshots)
	api.GET("/alerts", s.handleListAlerts)
	api.GET("/rewards", s.handleListRewards)
	api.GET("/fusion/summary", s.handleFusionSummary)
	api.GET("/export", s.handleExport)

	admin := api.Group("/admin")
	admin.POST("/rewards/:id/processed", s.handleMarkRewardProcessed)
	admin.POST("/alerts/:id/ack", s.handleAcknowledgeAlert)
	admin.GET("/config", s.handleGetConfig)
	admin.PATCH("/config", s.handleUpdateConfig)
	admin.DELETE("/targets/*", s.handlePurgeTarget)
	admin.PUT("/fusion/impact/:category", s.handleSetImpactWeight)

	s.echo.GET("/ws/federation", s.handleFederationSocket)

	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || strings.HasPrefix(path, "/healthz/")
		},
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
