// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielhkuo/clubvote/auth"
	"github.com/danielhkuo/clubvote/models"
)

const (
	AdminKeyHeader   = "X-Admin-Key"
	VoterTokenHeader = "X-Voter-Token"
)

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logging wrapper
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Log request
		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		// Log completion
		duration := time.Since(start)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// RequireAdmin rejects requests without a valid admin key header
func RequireAdmin(adminKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.ValidateAdminKey(r.Header.Get(AdminKeyHeader), adminKey); err != nil {
			ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
			return
		}
		next(w, r)
	}
}

// IsAdmin reports whether the request carries a valid admin key
func IsAdmin(r *http.Request, adminKey string) bool {
	return auth.ValidateAdminKey(r.Header.Get(AdminKeyHeader), adminKey) == nil
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// RejectionStatus maps a rejection kind to its HTTP status
func RejectionStatus(kind models.ErrorKind) int {
	switch kind {
	case models.KindElectionNotFound, models.KindCandidateNotFound:
		return http.StatusNotFound
	case models.KindInvalidTransition, models.KindElectionNotEditable, models.KindElectionNotOpen,
		models.KindDuplicateBallot, models.KindCandidateHasVotes:
		return http.StatusConflict
	case models.KindInvalidSelection, models.KindIncompleteBallot:
		return http.StatusUnprocessableEntity
	case models.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusBadRequest
}

// WriteError renders a domain error. Rejections keep their kind and message;
// infrastructure failures become 503 so clients know they may retry.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, err, "")
}

// WriteErrorMessage is WriteError with a caller-chosen message for rejections
func WriteErrorMessage(w http.ResponseWriter, err error, message string) {
	if r, ok := models.AsRejection(err); ok {
		if message == "" {
			message = r.Message
		}
		status := RejectionStatus(r.Kind)
		JSONResponse(w, status, models.ErrorResponse{
			Error:     http.StatusText(status),
			Code:      string(r.Kind),
			Message:   message,
			Invariant: r.Invariant,
		})
		return
	}

	if errors.Is(err, models.ErrInfrastructure) {
		JSONResponse(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   http.StatusText(http.StatusServiceUnavailable),
			Code:    "infrastructure_failure",
			Message: "Service temporarily unavailable, please retry",
		})
		return
	}

	slog.Error("unhandled error", "error", err)
	ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// CORS middleware allows cross-origin requests from the frontend
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AdminKeyHeader+", "+VoterTokenHeader)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP address
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For (load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take first IP in chain
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' || xff[i] == ' ' {
				return xff[:i]
			}
		}
		return xff
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
