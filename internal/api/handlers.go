package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// statusClientClosedRequest is reported when the caller went away mid-request
const statusClientClosedRequest = 499

type ApiResponse struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string                `json:"status"`
	Version   string                `json:"version"`
	Timestamp string                `json:"timestamp"`
	Storage   string                `json:"storage"`
	Relay     *circuitbreaker.Stats `json:"relay,omitempty"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   "0.1.0",
		Timestamp: time.Now().Format(time.RFC3339),
		Storage:   s.config.StorageDriver,
	}

	if s.postgres != nil {
		if err := s.postgres.Ping(r.Context()); err != nil {
			s.logger.Warn("Storage ping failed", "error", err)
			health.Status = "degraded"
		}
	}

	if s.relayBreaker != nil {
		stats := s.relayBreaker.Stats()
		health.Relay = &stats
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// notificationsHandler returns the toasts raised since the last call
func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	notes := s.toasts.Drain()
	if notes == nil {
		notes = []notify.Notification{}
	}

	s.respondWithData(w, http.StatusOK, notes)
}

// decodeBody reads a JSON request body into v
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewInvalidInputError("Invalid request payload")
	}
	return nil
}

// pageParam reads ?page=N, zero when absent
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.NewValidationError("invalid page", map[string][]string{
			"page": {"Enter a page number of 1 or more."},
		})
	}
	return n, nil
}

// statusFor maps an error to the HTTP status the shell answers with
func statusFor(err error) int {
	var appErr *apperrors.AppError

	switch {
	case apperrors.IsCancelled(err):
		return statusClientClosedRequest
	case errors.As(err, &appErr) && appErr.StatusCode != 0:
		return appErr.StatusCode
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrNoAddress),
		errors.Is(err, apperrors.ErrNoAddressSelected),
		errors.Is(err, apperrors.ErrInvalidPIN),
		errors.Is(err, apperrors.ErrNoCourierSelected),
		errors.Is(err, apperrors.ErrNotPayable),
		errors.Is(err, apperrors.ErrTooFewPackages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError translates err into the response envelope
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()

	var appErr *apperrors.AppError
	if status == http.StatusInternalServerError && !errors.As(err, &appErr) {
		s.logger.Error("Unhandled error", "error", err)
		message = "Internal server error"
	}

	s.respondWithJSON(w, status, ApiResponse{
		Success: false,
		Error:   message,
		Fields:  apperrors.FieldErrors(err),
	})
}

func (s *Server) respondWithData(w http.ResponseWriter, code int, data interface{}) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: true,
		Data:    data,
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
