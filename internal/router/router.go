package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appMiddleware "github.com/FACorreiaa/go-complaint-auth/app/middleware"
	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/api/auth"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler            auth.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	// CSRF is nil when CSRF protection is disabled.
	CSRF           *appMiddleware.CSRF
	AllowedOrigins []string
	// Sensitive endpoints (login, verification, password recovery) are limited
	// to RateLimitRequests per RateLimitWindow and client IP.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (like logger, requestID, recoverer) are expected
// to be applied *before* mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.CSRFHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
		limit = httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests, please try again later")
			}),
		)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.CSRF != nil {
			r.Use(cfg.CSRF.Protect)
			r.Get("/csrf-token", cfg.CSRF.IssueToken)
		}

		r.Route("/auth", func(r chi.Router) {
			// --- Public Auth Routes ---
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			r.Post("/logout", cfg.AuthHandler.Logout)
			r.Get("/verify-email/{token}", cfg.AuthHandler.VerifyEmailLink)

			// --- Rate limited ---
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/verify-email", cfg.AuthHandler.VerifyEmail)
				r.Post("/resend-verification", cfg.AuthHandler.ResendVerification)
				r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
				r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
			})

			// --- Protected Routes ---
			r.Group(func(r chi.Router) {
				r.Use(cfg.AuthenticateMiddleware)
				r.Get("/me", cfg.AuthHandler.Me)
				r.Post("/change-password", cfg.AuthHandler.ChangePassword)
			})
		})
	})

	return r
}
