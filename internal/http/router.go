package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(h *Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/variant-types", h.ListVariantTypes)
		r.Post("/variant-types", h.RegisterVariantType)

		r.Post("/products", h.CreateProduct)
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Post("/values", h.DefineValue)
			r.Post("/combinations/resolve", h.ResolveCombination)
			r.Get("/combinations", h.ListCombinations)
		})

		r.Route("/combinations/{id}", func(r chi.Router) {
			r.Get("/", h.GetCombination)
			r.Patch("/price", h.SetPriceDelta)
			r.Delete("/", h.ArchiveCombination)
			r.Get("/stock", h.GetStock)
			r.Get("/movements", h.ListMovements)
			r.Post("/movements", h.RecordMovement)
		})

		r.Post("/reservations", h.Reserve)
		r.Route("/reservations/{lineId}", func(r chi.Router) {
			r.Get("/", h.GetReservation)
			r.Post("/release", h.Release)
			r.Post("/fulfill", h.Fulfill)
		})
	})

	return r
}

// requestLogger writes one structured line per request once the handler returns.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := timeNow()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", timeNow().Sub(start)).
				Msg("request completed")
		})
	}
}
