package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	apperrors "github.com/cryptomx1/truth-unveiled-dao-sub001/internal/errors"
)

const (
	defaultSnapshotLimit = 10
	maxSnapshotLimit     = 100
	defaultAlertWindow   = 24 * time.Hour
	defaultSignalLimit   = 100
)

func (s *Server) handleGetDelta(c echo.Context) error {
	target, err := targetParam(c)
	if err != nil {
		return err
	}

	delta, err := s.app.Delta(c.Request().Context(), target)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	return c.JSON(http.StatusOK, deltaFromDomain(delta))
}

func (s *Server) handleGetSnapshots(c echo.Context) error {
	target, err := targetParam(c)
	if err != nil {
		return err
	}
	limit, err := limitQuery(c, defaultSnapshotLimit, maxSnapshotLimit)
	if err != nil {
		return err
	}

	snapshots, err := s.app.Snapshots(c.Request().Context(), target, limit)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	out := make([]snapshotResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, snapshotFromDomain(snap))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListAlerts(c echo.Context) error {
	var severity *domain.AlertSeverity
	if raw := c.QueryParam("severity"); raw != "" {
		parsed, ok := domain.ParseSeverity(raw)
		if !ok {
			return apperrors.ValidationError("unknown severity").WithContext("severity", raw)
		}
		severity = &parsed
	}

	window := defaultAlertWindow
	if raw := c.QueryParam("since_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 {
			return apperrors.ValidationError("since_hours must be a positive integer").WithContext("since_hours", raw)
		}
		window = time.Duration(hours) * time.Hour
	}

	alerts, err := s.app.Alerts(c.Request().Context(), severity, time.Now().Add(-window))
	if err != nil {
		return apperrors.FromDomain(err)
	}

	out := make([]alertResponse, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, alertFromDomain(alert))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListRewards(c echo.Context) error {
	var processed *bool
	if raw := c.QueryParam("processed"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.ValidationError("processed must be true or false").WithContext("processed", raw)
		}
		processed = &value
	}
	limit, err := limitQuery(c, defaultSignalLimit, 0)
	if err != nil {
		return err
	}

	signals, err := s.app.Signals(c.Request().Context(), processed, limit)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	out := make([]signalResponse, 0, len(signals))
	for _, sig := range signals {
		out = append(out, signalFromDomain(sig))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleFusionSummary(c echo.Context) error {
	summary, err := s.app.FusionSummary(c.Request().Context())
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, fusionSummaryFromDomain(summary))
}

func (s *Server) handleExport(c echo.Context) error {
	export, err := s.app.Export(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to assemble export", err)
	}
	return c.JSON(http.StatusOK, exportFromApp(export))
}

func targetParam(c echo.Context) (domain.TargetID, error) {
	target, err := domain.ParseTargetID(c.Param("*"))
	if err != nil {
		return domain.TargetID{}, apperrors.ValidationError("invalid target id").
			WithContext("target", c.Param("*")).
			WithContext("details", err.Error())
	}
	return target, nil
}

func limitQuery(c echo.Context, def, max int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.ValidationError("limit must be a positive integer").WithContext("limit", raw)
	}
	if max > 0 && limit > max {
		return 0, apperrors.ValidationError(fmt.Sprintf("limit must not exceed %d", max)).WithContext("limit", raw)
	}
	return limit, nil
}
