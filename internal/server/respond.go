package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mlstudio/internal/analytics"
	"mlstudio/internal/dataset"
	"mlstudio/internal/engine"
	"mlstudio/internal/ml"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrDuplicateID),
		errors.Is(err, ml.ErrDuplicateModel),
		errors.Is(err, ml.ErrTrainingInProgress),
		errors.Is(err, ml.ErrNoPreviousModel):
		return http.StatusConflict
	case errors.Is(err, dataset.ErrUnknownDataset),
		errors.Is(err, ml.ErrUnknownModel),
		errors.Is(err, analytics.ErrUnknownFeature),
		errors.Is(err, engine.ErrArchiveDisabled):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrNoActiveDataset),
		errors.Is(err, ml.ErrNoActiveModel),
		errors.Is(err, engine.ErrNoMetrics):
		return http.StatusPreconditionFailed
	case errors.Is(err, ml.ErrInvalidConfig),
		errors.Is(err, analytics.ErrNonNumericValue),
		errors.Is(err, analytics.ErrDegenerateDomain):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, StatusFor(err), err)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	event := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("Request failed")

	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// requestLogger attaches a request-scoped logger carrying a request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().Dur("duration", time.Since(start)).Msg("Request served")
	})
}
