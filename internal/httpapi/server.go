package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokenizerd/internal/tokenizer"
	"tokenizerd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	// Lookup never fails; names that are not resident get the default tokenizer.
	Lookup(model string) tokenizer.Tokenizer
	ListActive() []string
	Status() types.RegistryStatus
	Ready() bool
}

const errModelRequired = badRequest("Field 'model' is required")

// NewMux builds the router for svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ServiceInfo{Service: serviceName, Version: serviceVersion, Status: "running"})
	})

	r.Post("/tokenizers/count", countHandler(svc))

	r.Get("/tokenizers/list", func(w http.ResponseWriter, r *http.Request) {
		active := svc.ListActive()
		activeTokenizers.Set(float64(len(active)))
		writeJSON(w, types.ListResponse{ActiveTokenizers: active})
	})

	r.Get("/tokenizers/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	r.Get("/health", health)
	r.Get("/healthz", health)

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// countHandler serves POST /tokenizers/count.
//
// @Summary      Count tokens
// @Description  Counts tokens of text with the model's tokenizer. Models that are not loaded yet are counted with the default tokenizer while they load in the background; model and tokenizer in the response name the tokenizer actually used.
// @Tags         tokenizers
// @Accept       json
// @Produce      json
// @Param        request  body      types.CountRequest  true  "Text and model"
// @Success      200      {object}  types.CountResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Router       /tokenizers/count [post]
func countHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.CountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, badRequest("invalid JSON body"))
			return
		}
		if req.Model == "" {
			status := writeError(w, errModelRequired)
			requestEvent(r, LevelError).Int("status", status).Msg("count rejected: model missing")
			return
		}

		start := time.Now()
		tk := svc.Lookup(req.Model)
		var res tokenizer.Result
		if req.Text == "" {
			res = tokenizer.Result{Model: tk.Model(), Tokenizer: tk.Family()}
		} else {
			if c, ok := tk.(tokenizer.TextChecker); ok {
				if err := c.CheckText(req.Text); err != nil {
					status := writeError(w, badRequest(err.Error()))
					requestEvent(r, LevelError).Str("model", tk.Model()).Int("status", status).Err(err).Msg("count rejected")
					return
				}
			}
			res = tk.CountTokens(req.Text)
		}
		dur := time.Since(start)
		observeCount(res.Model, req.Model, res.TokenCount, dur)

		requestEvent(r, LevelInfo).
			Str("input_model", req.Model).
			Str("model", res.Model).
			Str("tokenizer", string(res.Tokenizer)).
			Int("token_count", res.TokenCount).
			Bool("fallback", res.Model != req.Model).
			Dur("dur", dur).
			Msg("count")

		writeJSON(w, types.CountResponse{
			TokenCount: res.TokenCount,
			Model:      res.Model,
			Tokenizer:  string(res.Tokenizer),
		})
	}
}
