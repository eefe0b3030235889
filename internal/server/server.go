// Package server exposes the visitor counter over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"go.uber.org/zap"
)

// CountPath is the single counter route.
const CountPath = "/api/get_visitor_count"

const failureMessage = "An error occurred while processing your request."

type Counter interface {
	IncrementAndGetCount(ctx context.Context) (counter.Result, error)
}

type countResponse struct {
	Count int64 `json:"count"`
}

type Handler struct {
	counter Counter
	logger  *zap.SugaredLogger
}

func NewHandler(c Counter, logger *zap.SugaredLogger) *Handler {
	return &Handler{counter: c, logger: logger}
}

// ServeHTTP accepts any method; no body or query is read.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.counter.IncrementAndGetCount(r.Context())
	if err != nil {
		h.logger.With(zap.String("requestID", RequestID(r.Context()))).Errorf("IncrementAndGetCount: %v", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(failureMessage))
		return
	}

	b, err := json.Marshal(countResponse{Count: res.Count})
	if err != nil {
		h.logger.Errorf("json.Marshal: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// NewMux routes the counter and the health check, wrapped in access logging.
// Browsers on allowedOrigins may read the count cross-origin; preflight
// requests are answered without touching the counter.
func NewMux(c Counter, logger *zap.SugaredLogger, allowedOrigins ...string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(CountPath, NewHandler(c, logger))
	mux.HandleFunc("/health", health)

	var h http.Handler = mux
	if len(allowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}).Handler(mux)
	}
	return AccessLog(logger)(h)
}
