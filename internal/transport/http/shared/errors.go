package shared

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"hrims/internal/client/backendapi"
	"hrims/internal/domain/auth"
	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
	"hrims/internal/domain/notifications"
	"hrims/internal/domain/reports"
	"hrims/internal/transport/http/api"
)

// WriteError maps domain and backend errors onto the response envelope.
// Workflow sentinels are checked before backend errors so a 409 from the
// backend still reads as an invalid transition.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error, requestID string) {
	var verr *leave.ValidationError
	var apiErr *backendapi.APIError
	switch {
	case errors.As(err, &verr):
		FailValidation(w, requestID, []ValidationIssue{{Field: verr.Field, Reason: verr.Message}})
	case errors.Is(err, leave.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, leave.ErrOutOfScope):
		api.Fail(w, http.StatusForbidden, "out_of_scope", err.Error(), requestID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
	case errors.Is(err, leave.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, leave.ErrInsufficientCredits):
		api.Fail(w, http.StatusBadRequest, "insufficient_credits", err.Error(), requestID)
	case errors.Is(err, leave.ErrNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, notifications.ErrNotFound),
		errors.Is(err, reports.ErrJobRunNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", requestID)
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", requestID)
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", err.Error(), requestID)
	case errors.Is(err, auth.ErrMFANotSetUp):
		api.Fail(w, http.StatusBadRequest, "mfa_missing", err.Error(), requestID)
	case errors.As(err, &apiErr):
		log.Warn().Err(err).Int("backend_status", apiErr.StatusCode).Str("request_id", requestID).Msg("backend call failed")
		api.Fail(w, http.StatusBadGateway, "backend_error", apiErr.Message, requestID)
	default:
		log.Error().Err(err).Str("request_id", requestID).Msg("request failed")
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
