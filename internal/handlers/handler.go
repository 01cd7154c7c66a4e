package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/adivish/quickmeet/internal/services"
	"github.com/adivish/quickmeet/internal/videosdk"
)

// Handler bundles the HTTP surface over the auth, presence, and call
// services plus the directory subscription the signal stream needs.
type Handler struct {
	auth         *services.AuthService
	presence     *services.PresenceService
	calls        *services.CallService
	presenceRepo repositories.PresenceRepository
	provider     *videosdk.Client
	lifecycles   *services.LifecycleRegistry
}

func New(
	auth *services.AuthService,
	presence *services.PresenceService,
	calls *services.CallService,
	presenceRepo repositories.PresenceRepository,
	provider *videosdk.Client,
) *Handler {
	return &Handler{
		auth:         auth,
		presence:     presence,
		calls:        calls,
		presenceRepo: presenceRepo,
		provider:     provider,
		lifecycles:   services.NewLifecycleRegistry(),
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "quickmeet",
		Timestamp: time.Now(),
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
