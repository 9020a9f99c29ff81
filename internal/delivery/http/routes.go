package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flopap/backend/internal/middleware"
)

func NewRouter(handler *Handler, factory *FactoryHandler, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Feed routes
			r.Get("/feed", handler.GetFeed)
			r.Post("/feed/feedback", handler.PostFeedback)

			// Paper artifact routes
			r.Route("/paper/{id}", func(r chi.Router) {
				r.Get("/translation", handler.GetTranslation)
				r.Get("/interpretation", handler.GetInterpretation)
				r.Get("/infographic", handler.GetInfographic)
				r.Get("/visual", handler.GetVisual)
				r.Get("/tts", handler.GetTTSAudioByPath)
				r.Get("/content-status", handler.GetContentStatus)
				r.Post("/infographic", handler.SaveInfographic)
				r.Post("/visual", handler.SaveVisual)
			})

			// TTS routes
			r.Get("/tts/audio/{paperId}", handler.GetTTSAudio)
			r.Get("/tts/file/{filename}", handler.StreamTTSFile)

			// Pool settings routes
			r.Route("/pool-settings", func(r chi.Router) {
				r.Get("/", handler.ListPoolSettings)
				r.Get("/{sourceKey}", handler.GetPoolSettings)
				r.Put("/{sourceKey}", handler.PutPoolSettings)
			})

			// Source enumeration
			r.Get("/data-sources", handler.GetDataSources)
			r.Get("/available-conferences", factory.AvailableConferences)

			// Factory routes, admin only
			r.Route("/factory", func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)
				r.Post("/fetch-arxiv", factory.FetchArxiv)
				r.Post("/candidate-pool", factory.BuildCandidatePool)
				r.Post("/recommendation", factory.GenerateRecommendations)
				r.Post("/content-gen", factory.GenerateContent)
				r.Route("/conference/{confId}", func(r chi.Router) {
					r.Post("/import", factory.ImportConference)
					r.Post("/pool", factory.BuildConferencePool)
					r.Post("/content", factory.GenerateConferenceContent)
				})
				r.Get("/status", factory.Status)
			})
		})
	})

	return r
}
