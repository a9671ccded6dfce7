package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/metrics"
	"github.com/vasiliy-maslov/megano/internal/session"
)

// RouteRegistrar is implemented by every handler in this package.
type RouteRegistrar interface {
	RegisterRoutes(router chi.Router)
}

type RouterConfig struct {
	Sessions       session.Store
	SessionOptions session.Options
	// MediaRoot, when set, is served under MediaURL.
	MediaRoot string
	MediaURL  string
}

func NewRouter(cfg RouterConfig, handlers ...RouteRegistrar) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Handle("/metrics", metrics.Handler())

	if cfg.MediaRoot != "" {
		prefix := cfg.MediaURL
		if prefix == "" {
			prefix = "/media"
		}
		router.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.MediaRoot))))
	}

	router.Group(func(r chi.Router) {
		r.Use(session.Middleware(cfg.Sessions, cfg.SessionOptions))
		for _, h := range handlers {
			h.RegisterRoutes(r)
		}
	})

	return router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Msg("request")
	})
}
