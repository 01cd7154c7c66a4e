package handlers

import (
	"net/http"

	"github.com/adivish/quickmeet/internal/models"
)

type candidatesResponse struct {
	Candidates []models.Candidate `json:"candidates"`
}

// Candidates backs the dashboard view: the visit makes the user available
// and returns a shortlist of other available users. An empty list means
// "no users available right now", not a failure.
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	candidates, err := h.presence.RefreshDashboard(r.Context(), claims.UserID, claims.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load available users")
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}

	respondJSON(w, http.StatusOK, candidatesResponse{Candidates: candidates})
}
