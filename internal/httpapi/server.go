package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keyvisor/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListCounters() []types.Counter
	AddCounter(req types.AddCounterRequest) (types.Counter, error)
	RemoveCounter(id string) error
	ListUploads() []types.Upload
	AddUpload(req types.AddUploadRequest) (types.Upload, error)
	RemoveUpload(id string) error
	Status() types.StatusResponse
	Ready() bool
	EventSource
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints; text/event-stream is left alone.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/counters", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.CountersResponse{Counters: svc.ListCounters()})
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.AddCounterRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			c, err := svc.AddCounter(req)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, c)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.RemoveCounter(chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.UploadsResponse{Uploads: svc.ListUploads()})
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.AddUploadRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Path) == "" {
				writeJSONError(w, http.StatusBadRequest, "path is required")
				return
			}
			u, err := svc.AddUpload(req)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusAccepted, u)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.RemoveUpload(chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/events", eventsHandler(svc))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit and decodes the body
// into dst. On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// Oversized bodies are reported the same way to avoid leaking the limit.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
