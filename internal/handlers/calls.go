package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/services"
	"github.com/adivish/quickmeet/internal/videosdk"
	"github.com/google/uuid"
)

type startCallRequest struct {
	TargetID string `json:"target_id,omitempty"`
}

func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req startCallRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var targetID *uuid.UUID
	if req.TargetID != "" {
		id, err := uuid.Parse(req.TargetID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid target id")
			return
		}
		if id == claims.UserID {
			respondError(w, http.StatusBadRequest, "cannot call yourself")
			return
		}
		targetID = &id
	}

	session, err := h.calls.StartCall(r.Context(), claims.UserID, claims.Email, targetID)
	if err != nil {
		respondError(w, http.StatusBadGateway, callErrorMessage(err))
		return
	}

	// The room is allocated, so the caller is in the call from here on. The
	// directory stays the source of truth; this only steers the signal stream.
	if err := h.lifecycles.For(claims.UserID).EnterCall(); err != nil {
		log.Printf("call state for %s out of step on start: %v", claims.UserID, err)
	}

	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) AcceptCall(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	session, err := h.calls.AcceptCall(r.Context(), claims.UserID, claims.Email)
	if errors.Is(err, services.ErrNoPendingCall) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, callErrorMessage(err))
		return
	}

	if err := h.lifecycles.For(claims.UserID).EnterCall(); err != nil {
		log.Printf("call state for %s out of step on accept: %v", claims.UserID, err)
	}

	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) DeclineCall(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	if err := h.calls.DeclineCall(r.Context(), claims.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to decline call")
		return
	}

	if err := h.lifecycles.For(claims.UserID).ClearRing(); err != nil {
		log.Printf("call state for %s out of step on decline: %v", claims.UserID, err)
	}

	respondJSON(w, http.StatusOK, nil)
}

// LeaveCall clears the session's call state and hands back a refreshed
// candidate list, the same thing a dashboard revisit would produce.
func (h *Handler) LeaveCall(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	if err := h.calls.Leave(r.Context(), claims.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to leave call")
		return
	}
	h.lifecycles.For(claims.UserID).Leave()

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

func callErrorMessage(err error) string {
	switch {
	case errors.Is(err, videosdk.ErrNotConfigured):
		return "video provider is not configured"
	case errors.Is(err, videosdk.ErrRoomCreation):
		return err.Error()
	default:
		return "failed to start call"
	}
}
