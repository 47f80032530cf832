// Package gateway provides HTTP handlers and middleware.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type httpErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware runs the admission step of the pipeline. The
// downstream dependency is never called for a rejected request.
func (t *HTTPTransport) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admission, err := t.pipeline.Admit(r.Context(), ClientKey(r))
		if err != nil {
			if CodeOf(err) == CodeStoreUnavailable {
				writeJSON(w, http.StatusServiceUnavailable, httpErrorResponse{Error: "limiter unavailable"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, httpErrorResponse{Error: "internal error"})
			return
		}
		if admission.Degraded {
			w.Header().Set("X-Gateway-Degraded", "true")
			next.ServeHTTP(w, r)
			return
		}

		decision := admission.Decision
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			if t.pipeline.Algorithm() == AlgorithmFixed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(decision.RetryAfter.Round(time.Second)/time.Second), 10))
			}
			writeJSON(w, http.StatusTooManyRequests, httpErrorResponse{
				Error:      ErrRateLimited.Message,
				RetryAfter: decision.RetryAfter.Milliseconds(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleForward proxies the admitted request through the breaker-gated
// resilient caller.
func (t *HTTPTransport) handleForward(w http.ResponseWriter, r *http.Request) {
	result, err := t.pipeline.Forward(r.Context(), r.URL.Path, r.URL.RawQuery)
	if err != nil {
		t.writeForwardError(w, r, err)
		return
	}
	for key, values := range result.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

func (t *HTTPTransport) writeForwardError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}
	var status int
	var body httpErrorResponse
	switch CodeOf(err) {
	case CodeCircuitOpen:
		status = http.StatusServiceUnavailable
		body = httpErrorResponse{Error: ErrCircuitOpen.Message}
	case CodeUpstreamTimeout, CodeUpstreamTransient:
		status = http.StatusGatewayTimeout
		body = httpErrorResponse{Error: "upstream failure"}
	case CodeUpstreamPermanent:
		status = http.StatusBadGateway
		body = httpErrorResponse{Error: "upstream failure"}
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
			body = httpErrorResponse{Error: "upstream failure"}
			break
		}
		status = http.StatusInternalServerError
		body = httpErrorResponse{Error: "internal error"}
	}
	if t.logger != nil {
		t.logger.Error("forward failed", map[string]any{
			"path":       r.URL.Path,
			"status":     status,
			"error":      err.Error(),
			"request_id": w.Header().Get(requestIDHeader),
		})
	}
	writeJSON(w, status, body)
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Liveness only: no limiter or breaker consulted.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *HTTPTransport) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
