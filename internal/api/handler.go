// Package api serves the options-chain document over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/provider"
	"optionsproxy/internal/upstream"
)

// Edge cache bounds, in seconds.
const (
	DefaultMaxAge               = 300
	DefaultStaleWhileRevalidate = 600
	minMaxAge, maxMaxAge        = 60, 300
	minSWR, maxSWR              = 300, 600
)

// Handler answers GET /api/options[?date=...] from one provider.
type Handler struct {
	provider     provider.Provider
	cacheControl string
	log          *logger.Entry
}

type HandlerOption func(*Handler)

// WithCacheControl sets the s-maxage and stale-while-revalidate advertised
// on successful responses. Values are clamped to 60..300 and 300..600.
func WithCacheControl(maxAge, staleWhileRevalidate int) HandlerOption {
	return func(h *Handler) { h.cacheControl = CacheControl(maxAge, staleWhileRevalidate) }
}

func WithLogger(l *logger.Log) HandlerOption {
	return func(h *Handler) { h.log = l.WithComponent("api") }
}

func NewHandler(p provider.Provider, opts ...HandlerOption) *Handler {
	h := &Handler{
		provider:     p,
		cacheControl: CacheControl(DefaultMaxAge, DefaultStaleWhileRevalidate),
		log:          logger.GetLogger().WithComponent("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, OPTIONS")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	q := provider.Query{Date: r.URL.Query().Get("date")}
	res, err := h.provider.Fetch(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(res.Body)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the upstream failure taxonomy to a status and JSON body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		he *upstream.HTTPError
		ae *upstream.AuthAcquisitionError
	)
	status, msg, detail := http.StatusInternalServerError, err.Error(), ""
	switch {
	case errors.As(err, &he):
		status, msg, detail = he.Status, he.Error(), he.Detail
	case errors.As(err, &ae):
		status = http.StatusBadGateway
	}

	h.log.WithFields(logger.Fields{
		"request_id": r.Header.Get(RequestIDHeader),
		"status":     status,
		"outcome":    provider.Outcome(err),
	}).WithError(err).Warn("options request failed")

	writeJSONError(w, status, msg, detail)
}

func writeJSONError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(errorBody{Error: msg, Detail: detail})
}

// CacheControl renders the shared-cache directive for successful responses.
func CacheControl(maxAge, staleWhileRevalidate int) string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		clamp(maxAge, minMaxAge, maxMaxAge), clamp(staleWhileRevalidate, minSWR, maxSWR))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// NewRouter mounts the handler with health and metrics endpoints behind the
// standard middleware chain. /metrics bypasses gzip since promhttp
// negotiates its own encoding.
func NewRouter(h *Handler, m *metrics.Metrics, log *logger.Log) http.Handler {
	api := http.NewServeMux()
	api.Handle("/api/options", h)
	api.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"ok"`))
	})
	api.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found", r.URL.Path)
	})

	entry := log.WithComponent("http")
	root := http.NewServeMux()
	root.Handle("/metrics", m.Handler())
	root.Handle("/", withJSONHeaders(withGzip(recoverPanic(entry)(api))))
	return withRequestID(withAccessLog(entry)(root))
}
