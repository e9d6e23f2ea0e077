package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// mapError maps a service-layer error to an echo.HTTPError, mirroring the
// teacher's mapServiceError dispatch table, generalized from
// services.ValidationError/ErrNotFound/ErrNotCancellable/ErrAlreadyExists
// to store.ErrNotFound/ErrConflict and apperrors.Kind (every façade and
// pipeline failure here is a *apperrors.Error or a store sentinel).
func mapError(err error) *echo.HTTPError {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, store.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "conflicting update")
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(statusForKind(appErr.Kind), appErr.Error())
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// statusForKind maps an apperrors.Kind to an HTTP status, the same
// dispatch table pkg/facade/httpfacade uses for worker façade responses.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.NoConvergence, apperrors.ExtractionFailed:
		return http.StatusUnprocessableEntity
	case apperrors.TransientIO:
		return http.StatusBadGateway
	case apperrors.PermanentIO:
		return http.StatusBadRequest
	case apperrors.QuotaExceeded:
		return http.StatusTooManyRequests
	case apperrors.Cancelled:
		return http.StatusRequestTimeout
	case apperrors.Invariant:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
