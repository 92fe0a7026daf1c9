package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relaycrm/sync-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(auth *handlers.AuthHandler, syncHandler *handlers.SyncHandler, auditHandler *handlers.AuditHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Authenticated API endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/sync/run", syncHandler.RunPass).Methods(http.MethodPost)
	api.HandleFunc("/sync/jobs", syncHandler.EnqueueJob).Methods(http.MethodPost)
	api.HandleFunc("/sync/jobs/stats", syncHandler.QueueStats).Methods(http.MethodGet)
	api.HandleFunc("/sync/audit", auditHandler.ListRecent).Methods(http.MethodGet)

	return router
}
