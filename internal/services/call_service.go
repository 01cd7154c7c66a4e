package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adivish/quickmeet/internal/metrics"
	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/adivish/quickmeet/internal/videosdk"
	"github.com/google/uuid"
)

var ErrNoPendingCall = errors.New("no pending incoming call")

// CallSession is what the caller's (or callee's) own session needs to enter
// a room: the room id, the short-lived credential, and the iframe URL built
// from both.
type CallSession struct {
	RoomID   string `json:"room_id"`
	Token    string `json:"token"`
	EmbedURL string `json:"embed_url"`
}

// CallService drives the signaling handshake: room allocation, writing the
// invitation onto the callee's record, and the accept/decline/leave paths.
type CallService struct {
	presenceRepo repositories.PresenceRepository
	provider     *videosdk.Client
	dashboardURL string

	// now is swappable so staleness can be tested at exact offsets.
	now func() time.Time
}

func NewCallService(presenceRepo repositories.PresenceRepository, provider *videosdk.Client, dashboardURL string) *CallService {
	return &CallService{
		presenceRepo: presenceRepo,
		provider:     provider,
		dashboardURL: dashboardURL,
		now:          time.Now,
	}
}

// StartCall mints a fresh provider token, allocates a room, and, when a
// target is given, parks the invitation on the target's record. The signal
// write is best-effort: the caller still enters the room when it fails.
func (s *CallService) StartCall(ctx context.Context, selfID uuid.UUID, selfEmail string, targetID *uuid.UUID) (*CallSession, error) {
	token, err := s.provider.MintToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get video token: %w", err)
	}

	room, err := s.provider.CreateRoom(ctx, token)
	if err != nil {
		return nil, err
	}

	callerName := models.DisplayName(selfEmail, selfID)

	if targetID != nil {
		call := &models.IncomingCall{
			CallerID:   selfID,
			CallerName: callerName,
			RoomID:     room.RoomID,
			Timestamp:  s.now().UnixMilli(),
		}
		if err := s.presenceRepo.SetIncomingCall(ctx, *targetID, call); err != nil {
			// Non-fatal: the caller keeps the room either way.
			log.Printf("failed to signal call to %s: %v", targetID, err)
			metrics.SignalWriteFailures.Inc()
		}
	}

	// The caller is in a call now, so off the dashboard.
	if err := s.presenceRepo.SetAvailability(ctx, selfID, false); err != nil {
		log.Printf("failed to mark caller %s unavailable: %v", selfID, err)
	}

	metrics.CallsStarted.Inc()

	return &CallSession{
		RoomID:   room.RoomID,
		Token:    token,
		EmbedURL: s.provider.EmbedURL(callerName, room.RoomID, token, s.dashboardURL),
	}, nil
}

// AcceptCall joins the announced room. The invitation flag is cleared even
// when the join fails, so the callee never sticks in a ringing state.
func (s *CallService) AcceptCall(ctx context.Context, selfID uuid.UUID, selfEmail string) (*CallSession, error) {
	record, err := s.presenceRepo.Get(ctx, selfID)
	if err == repositories.ErrNotFound {
		return nil, ErrNoPendingCall
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read own record: %w", err)
	}

	invite := record.IncomingCall
	if invite == nil {
		return nil, ErrNoPendingCall
	}
	if invite.Stale(s.now()) {
		s.clearInvite(ctx, selfID)
		metrics.StaleInvitesCleared.Inc()
		return nil, ErrNoPendingCall
	}

	token, tokenErr := s.provider.MintToken()

	// Clear the flag regardless of whether the join succeeds.
	s.clearInvite(ctx, selfID)

	if tokenErr != nil {
		return nil, fmt.Errorf("failed to get video token: %w", tokenErr)
	}

	if err := s.presenceRepo.SetAvailability(ctx, selfID, false); err != nil {
		log.Printf("failed to mark callee %s unavailable: %v", selfID, err)
	}

	metrics.CallsAccepted.Inc()

	return &CallSession{
		RoomID:   invite.RoomID,
		Token:    token,
		EmbedURL: s.provider.EmbedURL(models.DisplayName(selfEmail, selfID), invite.RoomID, token, s.dashboardURL),
	}, nil
}

// DeclineCall clears the invitation. No credential is requested and no room
// is joined.
func (s *CallService) DeclineCall(ctx context.Context, selfID uuid.UUID) error {
	if err := s.presenceRepo.ClearIncomingCall(ctx, selfID); err != nil {
		return fmt.Errorf("failed to decline call: %w", err)
	}
	metrics.CallsDeclined.Inc()
	return nil
}

// Leave ends the session's own call state and defensively clears any
// invitation that lingered on its record while it was in the room. The
// dashboard refresh that follows is the caller's responsibility.
func (s *CallService) Leave(ctx context.Context, selfID uuid.UUID) error {
	if err := s.presenceRepo.ClearIncomingCall(ctx, selfID); err != nil {
		return fmt.Errorf("failed to clear call state: %w", err)
	}
	return nil
}

// EvaluateSignal applies the staleness rule to a record observed by the
// signal listener. A fresh invitation is returned; a stale one is cleared
// server-side and reported as absent.
func (s *CallService) EvaluateSignal(ctx context.Context, record *models.PresenceRecord) *models.IncomingCall {
	invite := record.IncomingCall
	if invite == nil {
		return nil
	}
	if invite.Stale(s.now()) {
		s.clearInvite(ctx, record.ID)
		metrics.StaleInvitesCleared.Inc()
		return nil
	}
	return invite
}

func (s *CallService) clearInvite(ctx context.Context, userID uuid.UUID) {
	if err := s.presenceRepo.ClearIncomingCall(ctx, userID); err != nil {
		log.Printf("failed to clear incoming call for %s: %v", userID, err)
	}
}
