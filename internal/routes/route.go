package routes

import (
	"net/http"

	"visitagent/internal/config"
	"visitagent/internal/handlers"
	"visitagent/internal/logger"
	mdlwr "visitagent/internal/middleware"
	"visitagent/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps carries the wired services the router exposes to the UI shell.
type Deps struct {
	Resolver *services.TargetResolver
	Workflow *services.VisitWorkflow
	Capture  *services.CapturePipeline
	Location *services.LocationService
}

func NewRouter(deps Deps, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Device-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	deviceAuth := mdlwr.NewDeviceAuth(cfg.DeviceToken, logr.Logger)

	targetHandler := handlers.NewTargetHandler(deps.Resolver, deps.Workflow, logr.Logger)
	visitHandler := handlers.NewVisitHandler(deps.Workflow, deps.Capture, deps.Location, deps.Resolver, logr.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deviceAuth.Require)

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", targetHandler.List)
			r.Post("/mode", targetHandler.SetMode)
			r.Post("/search", targetHandler.SetSearch)
			r.Post("/select", targetHandler.Select)
			r.Post("/refresh", targetHandler.Refresh)
			r.Get("/geofence", targetHandler.Geofence)
		})

		r.Route("/flow", func(r chi.Router) {
			r.Post("/", visitHandler.Begin)
			r.Get("/status", visitHandler.Status)
			r.Post("/locate", visitHandler.Locate)
			r.Post("/advance", visitHandler.Advance)
			r.Post("/back", visitHandler.Back)
			r.Post("/reset", visitHandler.Reset)

			r.Post("/capture/prepare", visitHandler.PrepareCapture)
			r.Post("/capture", visitHandler.Capture)

			r.Post("/checkin", visitHandler.CheckIn)
			r.Post("/checkout", visitHandler.CheckOut)
		})
	})

	return r
}
