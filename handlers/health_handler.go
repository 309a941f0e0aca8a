package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoleta/storage"

	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	store storage.Store
	redis *redis.Client
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Cache  string `json:"cache"`
	Error  string `json:"error,omitempty"`
}

// NewHealthHandler reports on store and, when non-nil, Redis.
func NewHealthHandler(store storage.Store, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{store: store, redis: redisClient}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "ok", Store: "up", Cache: "disabled"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		response.Status = "error"
		response.Store = "down"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		response.Cache = "up"
		// a Redis outage reports degraded but keeps 200
		if err := h.redis.Ping(ctx).Err(); err != nil {
			response.Cache = "down"
			if response.Status == "ok" {
				response.Status = "degraded"
			}
		}
	}

	writeJSON(w, status, response)
}
