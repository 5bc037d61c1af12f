package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"aspos-sync/internal/handler"
	"aspos-sync/internal/middleware"
	"aspos-sync/internal/model"
	"aspos-sync/pkg/apierror"
	"aspos-sync/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	SyncHandler     *handler.SyncHandler
	QueueHandler    *handler.QueueHandler
	DataHandler     *handler.DataHandler
	LogHandler      *handler.LogHandler
	SettingsHandler *handler.SettingsHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  func(http.Handler) http.Handler
	Logger          logrus.FieldLogger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound(""))
	})

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
			}

			if cfg.SyncHandler != nil {
				r.Route("/sync", func(r chi.Router) {
					for _, kind := range model.PipelineOrder {
						r.Post("/"+string(kind), cfg.SyncHandler.Stage(kind))
					}
					r.Post("/all", cfg.SyncHandler.All)
				})
			}

			if cfg.QueueHandler != nil {
				r.Route("/queue", func(r chi.Router) {
					r.Get("/", cfg.QueueHandler.List)
					r.Post("/", cfg.QueueHandler.Enqueue)
					r.Post("/process", cfg.QueueHandler.Process)
				})
			}

			if cfg.DataHandler != nil {
				r.Get("/stores", cfg.DataHandler.Stores)
				r.Get("/inventory", cfg.DataHandler.Inventory)
			}

			if cfg.LogHandler != nil {
				r.Get("/logs", cfg.LogHandler.Tail)
				r.Delete("/logs", cfg.LogHandler.Clear)
			}

			if cfg.SettingsHandler != nil {
				r.Get("/settings/check", cfg.SettingsHandler.Check)
			}

			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	return r
}
