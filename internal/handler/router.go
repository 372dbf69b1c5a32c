package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mmeshcher/playhouse/internal/metrics"
	custommiddleware "github.com/mmeshcher/playhouse/internal/middleware"
)

// RouterOptions содержит настройки маршрутизатора.
type RouterOptions struct {
	// AllowedOrigins перечисляет адреса фронтенда для CORS. Пустой список запрещает кросс-доменные запросы.
	AllowedOrigins []string
	Metrics        *metrics.Metrics
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Cache-Control", "Pragma", "Expires", "X-Requested-With", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.Metrics(opts.Metrics))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", opts.Metrics.Handler())

	staff := custommiddleware.RequireRole(custommiddleware.RoleStaff, custommiddleware.RoleAdmin)
	admin := custommiddleware.RequireRole(custommiddleware.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("playhouse backend is running"))
		})
		r.Get("/health", h.Health)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Get("/scan/{token}", h.Scan)
			r.Get("/by-code/{code}", h.GetSessionByCode)
			r.Get("/qr/{qr}", h.GetSessionByQR)
			r.Get("/history/{token}", h.HistoryByToken)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}/checkout", h.Checkout)
			r.Put("/{id}/extend", h.Extend)
			r.Post("/{id}/reprint", h.Reprint)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.With(staff).Delete("/{id}", h.DeleteSession)
				r.With(admin).Delete("/", h.DeleteAllSessions)
			})
		})

		r.Get("/reports/daily", h.DailyReport)
		r.Get("/system/stats", h.Stats)

		r.Route("/jetons", func(r chi.Router) {
			r.Get("/", h.ListJetons)
			r.Get("/{id}", h.GetJeton)
			r.Post("/validate", h.ValidateJeton)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.With(staff).Post("/", h.CreateJeton)
				r.With(staff).Put("/{id}", h.UpdateJeton)
				r.With(staff).Delete("/{id}", h.DeleteJeton)
				r.With(admin).Delete("/", h.DeleteAllJetons)
			})
		})

		r.NotFound(h.NotFound)
		r.MethodNotAllowed(h.MethodNotAllowed)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
