package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommiddleware "github.com/mmeshcher/fincalc/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(h.sessions.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/calculate", h.Calculate)
		r.Get("/session", h.GetSession)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireAuth)

			r.Get("/history", h.GetHistory)
			r.Get("/history/events", h.HistoryEvents)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.SignIn)
		r.Get("/callback", h.SignInCallback)
		r.Post("/logout", h.SignOut)
	})

	setupFallbacks(r)

	return r
}

// SetupEngineRouter настраивает маршруты автономного сервиса расчёта.
func SetupEngineRouter(logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(logger))

	r.Post("/api/calculate", EngineCalculate)

	setupFallbacks(r)

	return r
}

func setupFallbacks(r *chi.Mux) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
}
