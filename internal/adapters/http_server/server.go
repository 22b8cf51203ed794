package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New builds the router. All middlewares are registered before any routes;
// CORS sits early so preflights never reach the handlers.
func New(allowedOrigins []string) *Server {
	m := chi.NewRouter()

	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(15 * time.Second))
	m.Use(cors.Handler(cors.Options{
		AllowOriginFunc: originPolicy(allowedOrigins),
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:  []string{"Accept", "Content-Type", "X-Admin-Pin"},
		MaxAge:          300,
	}))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g. /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}

// originPolicy implements the caller allow-list: an empty list reflects any
// origin, a configured list matches exactly (or `*`), and hosts under
// .vercel.app are always allowed so preview deployments keep working.
func originPolicy(allowed []string) func(r *http.Request, origin string) bool {
	return func(r *http.Request, origin string) bool {
		if len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		if u, err := url.Parse(origin); err == nil && strings.HasSuffix(u.Hostname(), ".vercel.app") {
			return true
		}
		return false
	}
}
