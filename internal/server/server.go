package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/app"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/config"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	apperrors "github.com/cryptomx1/truth-unveiled-dao-sub001/internal/errors"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/gateway"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

type appService interface {
	Admit(ctx context.Context, sub domain.Submission) (gateway.Admission, error)
	Delta(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error)
	Snapshots(ctx context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error)
	Alerts(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error)
	AcknowledgeBroadcast(ctx context.Context, alertID string) error
	Signals(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error)
	MarkRewardProcessed(ctx context.Context, signalID string) error
	FusionSummary(ctx context.Context) (domain.FusionSummary, error)
	SetImpactWeight(category string, weight float64) error
	ImpactWeights() map[string]float64
	PurgeTarget(ctx context.Context, target domain.TargetID) error
	Settings() app.Settings
	UpdateConfig(u app.ConfigUpdate) (app.Settings, error)
	Export(ctx context.Context) (*app.Export, error)
}

type federationHub interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
	ClientCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app appService
	hub federationHub

	metrics  *metrics.HTTPMetrics
	registry *prometheus.Registry

	connLimits   *ConnectionLimits
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app appService, hub federationHub, m *metrics.HTTPMetrics, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		hub:          hub,
		metrics:      m,
		registry:     registry,
		connLimits:   NewConnectionLimits(cfg.MaxFederationClients),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// requestValidator adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound request DTOs.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return apperrors.ValidationError("request validation failed").WithContext("details", err.Error())
	}
	return nil
}
