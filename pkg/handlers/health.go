package handlers

import (
	"context"
	"net/http"
	"time"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/store"
	"resqnet-web/pkg/utils"
)

// HealthHandler 健康检查
type HealthHandler struct {
	config *config.Config
	store  store.Store
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(cfg *config.Config, st store.Store) *HealthHandler {
	return &HealthHandler{config: cfg, store: st}
}

// HealthCheck reports the session store's health. An unhealthy store
// answers 503 so load balancers take the instance out.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, storeStatus, code := "healthy", "healthy", http.StatusOK
	if err := h.store.HealthCheck(ctx); err != nil {
		status, storeStatus, code = "degraded", "unhealthy: "+err.Error(), http.StatusServiceUnavailable
	}

	utils.WriteJSONResponse(w, code, map[string]interface{}{
		"service":       "resqnet-web",
		"version":       "1.0.0",
		"environment":   h.config.Environment,
		"session_store": h.config.SessionStore,
		"store_status":  storeStatus,
		"api_base_url":  h.config.APIBaseURL,
		"timestamp":     time.Now().Unix(),
		"status":        status,
	})
}

// StoreStats exposes session store pool stats (development only).
func (h *HealthHandler) StoreStats(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, store.Stats())
}
