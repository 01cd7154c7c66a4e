package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteExpiry is how long a pending invitation stays valid before any
// reader must treat it as absent and clear it.
const InviteExpiry = 60 * time.Second

// PresenceRecord is the per-user directory document. It mirrors the durable
// account with the ephemeral state the matchmaking dashboard needs: whether
// the user can be called right now, and the invitation a caller may have
// parked on it.
type PresenceRecord struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	Gender       string        `json:"gender"`
	IsAvailable  bool          `json:"is_available"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	IncomingCall *IncomingCall `json:"incoming_call,omitempty"`
}

// IncomingCall is the ephemeral signaling record a caller writes onto the
// callee's presence document. It lives only for the handshake window.
type IncomingCall struct {
	CallerID   uuid.UUID `json:"caller_id"`
	CallerName string    `json:"caller_name"`
	RoomID     string    `json:"room_id"`
	Timestamp  int64     `json:"timestamp"` // milliseconds since epoch
}

// Stale reports whether the invitation is older than InviteExpiry as seen
// from the reader's wall clock. Stale invitations must be treated as absent.
func (c *IncomingCall) Stale(now time.Time) bool {
	return now.UnixMilli()-c.Timestamp > InviteExpiry.Milliseconds()
}

// ProfileDefaults carries the fields applied when a presence record is
// created for the first time. Unset fields on an existing record are
// preserved; only these are overlaid.
type ProfileDefaults struct {
	Email       string
	Gender      string
	IsAvailable bool
}
