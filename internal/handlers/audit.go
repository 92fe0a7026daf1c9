package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/repository"
)

type AuditHandler struct {
	repo repository.AuditRepository
}

func NewAuditHandler(repo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

func (h *AuditHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		http.Error(w, "org_id query parameter is required", http.StatusBadRequest)
		return
	}
	limit := 25
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	entries, err := h.repo.ListRecent(r.Context(), orgID, limit)
	if err != nil {
		http.Error(w, "Failed to list audit entries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
