package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/cryptomx1/truth-unveiled-dao-sub001/internal/errors"
)

func (s *Server) handleMarkRewardProcessed(c echo.Context) error {
	if err := s.app.MarkRewardProcessed(c.Request().Context(), c.Param("id")); err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleAcknowledgeAlert(c echo.Context) error {
	if err := s.app.AcknowledgeBroadcast(c.Request().Context(), c.Param("id")); err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleGetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, settingsFromApp(s.app.Settings()))
}

func (s *Server) handleUpdateConfig(c echo.Context) error {
	var req configUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	settings, err := s.app.UpdateConfig(req.toUpdate())
	if err != nil {
		return apperrors.ValidationError(err.Error())
	}

	return c.JSON(http.StatusOK, settingsFromApp(settings))
}

func (s *Server) handlePurgeTarget(c echo.Context) error {
	target, err := targetParam(c)
	if err != nil {
		return err
	}

	if err := s.app.PurgeTarget(c.Request().Context(), target); err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleSetImpactWeight(c echo.Context) error {
	category := c.Param("category")
	if category == "" {
		return apperrors.ValidationError("category is required")
	}

	var req impactWeightRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := s.app.SetImpactWeight(category, req.Weight); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	return c.JSON(http.StatusOK, impactWeightsResponse{Weights: s.app.ImpactWeights()})
}
