package handlers

import (
	"log/slog"
	"net/http"

	"ecoleta/middleware"
	"ecoleta/utils/errors"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	AllowedOrigins []string
	// JWTSecret guards POST /points when set
	JWTSecret  string
	UploadsDir string
	Logger     *slog.Logger
}

// NewRouter wires the Ecoleta HTTP surface.
func NewRouter(items *ItemHandler, points *PointHandler, health *HealthHandler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, errors.ErrNotFound)
	})
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.HandleFunc("/health", health.Health).Methods("GET")

	// Catalog
	r.HandleFunc("/items", items.ListItems).Methods("GET", "OPTIONS")

	// Points
	createPoint := middleware.JWTMiddleware(cfg.JWTSecret)(http.HandlerFunc(points.CreatePoint))
	r.Handle("/points", createPoint).Methods("POST", "OPTIONS")
	r.HandleFunc("/points", points.ListPoints).Methods("GET")
	r.HandleFunc("/points/{id}", points.GetPoint).Methods("GET", "OPTIONS")

	if cfg.UploadsDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	return r
}
