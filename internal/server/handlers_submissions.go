package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	apperrors "github.com/cryptomx1/truth-unveiled-dao-sub001/internal/errors"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/gateway"
)

func (s *Server) handleSubmit(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sub, err := req.toDomain()
	if err != nil {
		return apperrors.ValidationError(err.Error())
	}

	admission, err := s.app.Admit(c.Request().Context(), sub)
	if err != nil {
		return submitError(err)
	}

	return c.JSON(http.StatusAccepted, admissionResponse{
		DeltaID:          admission.DeltaID.String(),
		ProofDigest:      admission.ProofDigest,
		Duplicate:        admission.Duplicate,
		ProcessingTimeMS: float64(admission.ProcessingTime.Microseconds()) / 1000,
	})
}

// submitError translates gateway rejections into structured API errors.
// Rate limits carry the window state so clients can back off precisely;
// integrity and drift rejections share the taxonomy reason.
func submitError(err error) error {
	var rejection *gateway.Rejection
	if errors.As(err, &rejection) {
		switch rejection.Reason {
		case domain.ReasonRateLimited:
			return apperrors.RateLimitedError("submission quota exhausted for this window", time.Until(rejection.ResetTime)).
				WithContext("reason", rejection.Reason.String()).
				WithContext("remaining", rejection.Remaining).
				WithContext("reset_time", rejection.ResetTime.UTC().Format(time.RFC3339))
		case domain.ReasonTimestampDrift:
			return apperrors.ValidationError("submission timestamp outside accepted drift").
				WithContext("reason", rejection.Reason.String())
		default:
			return apperrors.UnauthorizedError("integrity proof verification failed").
				WithContext("reason", rejection.Reason.String())
		}
	}
	if errors.Is(err, domain.ErrMalformedSubmission) {
		return apperrors.ValidationError(err.Error())
	}
	return apperrors.InternalError("failed to admit submission", err)
}
