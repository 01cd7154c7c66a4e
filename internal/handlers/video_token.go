package handlers

import (
	"errors"
	"net/http"

	"github.com/adivish/quickmeet/internal/videosdk"
)

type videoTokenResponse struct {
	Token string `json:"token"`
}

// VideoToken mints a fresh short-lived provider credential for the session.
// Nothing is cached; every request signs a new token.
func (h *Handler) VideoToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.provider.MintToken()
	if errors.Is(err, videosdk.ErrNotConfigured) {
		respondError(w, http.StatusInternalServerError, "Missing VideoSDK configuration")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, videoTokenResponse{Token: token})
}
