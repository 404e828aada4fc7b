package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kalrey/gamegate/pkg/cache"
	"github.com/kalrey/gamegate/pkg/gateway"
	"github.com/kalrey/gamegate/pkg/logging"
	"github.com/kalrey/gamegate/pkg/upstream"
)

// RefreshHeader forces a cache-bypassing fetch when set to "force".
const RefreshHeader = "X-Gamegate-Refresh"

// server holds the daemon's HTTP surface. Handlers stay thin: they build
// cache keys and map outcomes to status codes, nothing more.
type server struct {
	gateway *gateway.Gateway
	invoker *upstream.Invoker
	redis   *redis.Client
	clients *clientLimiter
	logger  zerolog.Logger
}

func newServer(core *gateway.Gateway, invoker *upstream.Invoker, redisClient *redis.Client, clients *clientLimiter) *server {
	return &server{
		gateway: core,
		invoker: invoker,
		redis:   redisClient,
		clients: clients,
		logger:  logging.NewLogger("http"),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.clients.middleware)

		r.Delete("/cache", s.handleInvalidate)
		r.Put("/processed/{id}", s.handleMarkProcessed)
		r.Get("/processed/{id}", s.handleIsProcessed)
		r.Get("/{resource}", s.handleFetch)
		r.Get("/{resource}/*", s.handleFetch)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the daemon can serve: Redis must answer.
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleFetch proxies GET /api/{resource}[/...] through the gateway. The
// cache key derives from the path remainder plus the query string, so
// equal requests share one entry.
func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	rest := chi.URLParam(r, "*")

	path := "/" + resource
	if rest != "" {
		path += "/" + rest
	}

	params := make(map[string]string)
	if rest != "" {
		params["path"] = rest
	}
	for name, values := range r.URL.Query() {
		params[name] = strings.Join(values, ",")
	}

	key := cache.Key{Resource: resource, Params: params}
	build := s.invoker.NewGetRequest(path, r.URL.Query())

	var (
		payload []byte
		err     error
	)
	if r.Header.Get(RefreshHeader) == "force" {
		payload, err = s.gateway.ForceRefresh(r.Context(), key, build)
	} else {
		payload, err = s.gateway.Fetch(r.Context(), key, build)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Debug().Err(err).Msg("Client went away mid-response")
	}
}

// handleInvalidate drops every cached entry of one resource type. The
// resource name is scoped through the key prefix helper, so the delete
// can never reach keys outside the cache namespace.
func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		writeErrorEnvelope(w, http.StatusBadRequest, "missing resource parameter")
		return
	}

	removed, err := s.gateway.Invalidate(r.Context(), cache.Prefix(resource))
	if err != nil {
		s.logger.Error().Err(err).Str("resource", resource).Msg("Invalidation failed")
		writeErrorEnvelope(w, http.StatusInternalServerError, "invalidation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resource": resource,
		"removed":  removed,
	})
}

func (s *server) handleMarkProcessed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inserted, err := s.gateway.MarkProcessed(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Marking processed failed")
		writeErrorEnvelope(w, http.StatusInternalServerError, "marking failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"inserted": inserted,
	})
}

func (s *server) handleIsProcessed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	processed, err := s.gateway.IsProcessed(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("Processed lookup failed")
		writeErrorEnvelope(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"processed": processed,
	})
}

// writeError maps a gateway error onto the HTTP response. Upstream
// outcomes pass through with their own status code and verbatim message;
// waits that outran the request deadline become 504.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// The client disconnected; there is nobody to answer.
		s.logger.Debug().Str("path", r.URL.Path).Msg("Request cancelled by client")
		return
	}

	var ue *upstream.Error
	if !errors.As(err, &ue) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Fetch failed")
		writeErrorEnvelope(w, http.StatusInternalServerError, "internal error")
		return
	}

	if ue.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(ue.RetryAfter.Seconds())))
	}
	writeErrorEnvelope(w, statusFor(ue), ue.Message)
}

// statusFor picks the response status: the upstream's own code when it
// answered, otherwise one derived from the outcome kind.
func statusFor(ue *upstream.Error) int {
	if ue.StatusCode >= 400 {
		return ue.StatusCode
	}

	switch ue.Kind {
	case upstream.KindTimeout:
		return http.StatusGatewayTimeout
	case upstream.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// errorEnvelope mirrors the upstream's error body shape, so clients parse
// one format no matter where the error arose.
type errorEnvelope struct {
	Status errorStatus `json:"status"`
}

type errorStatus struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func writeErrorEnvelope(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{
		Status: errorStatus{StatusCode: status, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Encode failures past this point only mean the client went away.
	_ = json.NewEncoder(w).Encode(body)
}
