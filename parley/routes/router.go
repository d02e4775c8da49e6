package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parley/parley/config"
	"parley/parley/controllers"
	"parley/parley/middlewares"
	"parley/parley/services/auth"
	httputils "parley/parley/utils/http"
)

type Handlers struct {
	Auth   *controllers.AuthController
	Chat   *controllers.ChatController
	Health *controllers.HealthController
	Tokens *auth.TokenManager
}

func NewRouter(cfg config.Config, h Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httputils.WriteJSON(w, http.StatusTooManyRequests, httputils.ErrorResponse{Error: "Too many requests"})
		}),
	))
	r.Use(middleware.RequestSize(cfg.MaxBodyBytes))

	r.Mount("/health", HealthRoutes(h.Health))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/auth", AuthRoutes(h.Auth))
	r.Mount("/api/chatbot", ChatRoutes(h.Chat, h.Tokens))
	return r
}
