// Package httpfacade holds the HTTP plumbing shared by every worker
// façade in pkg/facade/{memory,researcher,verifier,transformer,exporter,retriever}:
// decoding an orchestrator.StageRequest, encoding an
// orchestrator.StageResponse, and mapping apperrors.Kind to HTTP status
// codes. Grounded on the teacher's pkg/api/errors.go ("mapServiceError"
// dispatch table from service error to echo.HTTPError), generalized from
// service errors to apperrors.Kind since every façade's failure mode is a
// *apperrors.Error returned by pkg/maker.
package httpfacade

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
)

// Decode reads an orchestrator.StageRequest from the request body.
func Decode(r *http.Request) (orchestrator.StageRequest, error) {
	var req orchestrator.StageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return orchestrator.StageRequest{}, apperrors.Wrap(apperrors.Invariant, "decoding stage request", err)
	}
	return req, nil
}

// WriteResult encodes a successful orchestrator.StageResponse as JSON.
func WriteResult(w http.ResponseWriter, resp orchestrator.StageResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("httpfacade: failed to encode stage response", "error", err)
	}
}

// WriteError maps err's apperrors.Kind to an HTTP status and writes it as
// the response body, mirroring the teacher's mapServiceError dispatch.
func WriteError(w http.ResponseWriter, err error) {
	status := statusFor(apperrors.KindOf(err))
	slog.Error("facade call failed", "kind", apperrors.KindOf(err), "error", err)
	http.Error(w, err.Error(), status)
}

func statusFor(kind apperrors.Kind) int {
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
