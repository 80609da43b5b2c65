package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/app"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/config"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/gateway"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// --- Mock implementations ---

type mockAppService struct {
	admitFn           func(ctx context.Context, sub domain.Submission) (gateway.Admission, error)
	deltaFn           func(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error)
	snapshotsFn       func(ctx context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error)
	alertsFn          func(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error)
	acknowledgeFn     func(ctx context.Context, alertID string) error
	signalsFn         func(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error)
	markProcessedFn   func(ctx context.Context, signalID string) error
	fusionSummaryFn   func(ctx context.Context) (domain.FusionSummary, error)
	setImpactWeightFn func(category string, weight float64) error
	impactWeightsFn   func() map[string]float64
	purgeTargetFn     func(ctx context.Context, target domain.TargetID) error
	settingsFn        func() app.Settings
	updateConfigFn    func(u app.ConfigUpdate) (app.Settings, error)
	exportFn          func(ctx context.Context) (*app.Export, error)
}

func (m *mockAppService) Admit(ctx context.Context, sub domain.Submission) (gateway.Admission, error) {
	if m.admitFn != nil {
		return m.admitFn(ctx, sub)
	}
	return gateway.Admission{}, errors.New("not implemented")
}

func (m *mockAppService) Delta(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	if m.deltaFn != nil {
		return m.deltaFn(ctx, target)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Snapshots(ctx context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error) {
	if m.snapshotsFn != nil {
		return m.snapshotsFn(ctx, target, n)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Alerts(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error) {
	if m.alertsFn != nil {
		return m.alertsFn(ctx, severity, since)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) AcknowledgeBroadcast(ctx context.Context, alertID string) error {
	if m.acknowledgeFn != nil {
		return m.acknowledgeFn(ctx, alertID)
	}
	return errors.New("not implemented")
}

func (m *mockAppService) Signals(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error) {
	if m.signalsFn != nil {
		return m.signalsFn(ctx, processed, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) MarkRewardProcessed(ctx context.Context, signalID string) error {
	if m.markProcessedFn != nil {
		return m.markProcessedFn(ctx, signalID)
	}
	return errors.New("not implemented")
}

func (m *mockAppService) FusionSummary(ctx context.Context) (domain.FusionSummary, error) {
	if m.fusionSummaryFn != nil {
		return m.fusionSummaryFn(ctx)
	}
	return domain.FusionSummary{}, errors.New("not implemented")
}

func (m *mockAppService) SetImpactWeight(category string, weight float64) error {
	if m.setImpactWeightFn != nil {
		return m.setImpactWeightFn(category, weight)
	}
	return nil
}

func (m *mockAppService) ImpactWeights() map[string]float64 {
	if m.impactWeightsFn != nil {
		return m.impactWeightsFn()
	}
	return map[string]float64{}
}

func (m *mockAppService) PurgeTarget(ctx context.Context, target domain.TargetID) error {
	if m.purgeTargetFn != nil {
		return m.purgeTargetFn(ctx, target)
	}
	return errors.New("not implemented")
}

func (m *mockAppService) Settings() app.Settings {
	if m.settingsFn != nil {
		return m.settingsFn()
	}
	return app.Settings{}
}

func (m *mockAppService) UpdateConfig(u app.ConfigUpdate) (app.Settings, error) {
	if m.updateConfigFn != nil {
		return m.updateConfigFn(u)
	}
	return app.Settings{}, errors.New("not implemented")
}

func (m *mockAppService) Export(ctx context.Context) (*app.Export, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx)
	}
	return nil, errors.New("not implemented")
}

type hubStub struct {
	registerFn   func(conn *websocket.Conn) error
	unregisterFn func(conn *websocket.Conn)
	clientCount  int
}

func (h *hubStub) Register(conn *websocket.Conn) error {
	if h.registerFn != nil {
		return h.registerFn(conn)
	}
	return nil
}

func (h *hubStub) Unregister(conn *websocket.Conn) {
	if h.unregisterFn != nil {
		h.unregisterFn(conn)
	}
}

func (h *hubStub) ClientCount() int {
	return h.clientCount
}

// --- Test helpers ---

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	registry := prometheus.NewRegistry()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	srv := &Server{
		echo: e,
		config: &config.Config{
			Port:                 "8080",
			IntakeRatePerSecond:  1000,
			IntakeBurst:          1000,
			MaxFederationClients: 16,
		},
		app:        app,
		hub:        &hubStub{},
		metrics:    metrics.NewHTTPMetrics(registry),
		registry:   registry,
		connLimits: NewConnectionLimits(16),
		startTime:  time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHub(h federationHub) func(*Server) {
	return func(s *Server) {
		s.hub = h
	}
}

func withConnLimits(l *ConnectionLimits) func(*Server) {
	return func(s *Server) {
		s.connLimits = l
	}
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withIntakeLimit(ratePerSecond float64, burst int) func(*Server) {
	return func(s *Server) {
		s.config.IntakeRatePerSecond = ratePerSecond
		s.config.IntakeBurst = burst
	}
}

// doJSON drives a request through the full middleware chain.
func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
