package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/services"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The session token already gates this endpoint.
		return true
	},
}

type signalEvent struct {
	Type  string               `json:"type"` // "incoming_call" or "call_cleared"
	State services.CallState   `json:"state"`
	Call  *models.IncomingCall `json:"call,omitempty"`
}

// Signals is the live listener for one session: a standing subscription on
// the session's own presence record, pushed over a WebSocket. Fresh
// invitations ring, stale ones are cleared server-side, and the subscription
// is torn down when the socket closes.
func (h *Handler) Signals(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade signal socket: %v", err)
		return
	}
	defer conn.Close()

	sub, err := h.presenceRepo.Subscribe(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("failed to subscribe to presence updates for %s: %v", claims.UserID, err)
		return
	}
	defer sub.Close()

	// Reader goroutine: its only job is to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Shared with the call handlers: an accept over HTTP moves this session
	// to IN_CALL, and a listener that reconnects mid-ring resumes from the
	// state it left rather than restarting at idle.
	lifecycle := h.lifecycles.For(claims.UserID)
	var lastInvite *models.IncomingCall

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case record, ok := <-sub.Updates():
			if !ok {
				return
			}

			invite := h.calls.EvaluateSignal(r.Context(), record)

			if invite != nil {
				if sameInvite(invite, lastInvite) {
					continue
				}
				if err := lifecycle.Ring(); err != nil {
					// Already in a call; the invitation stays parked until
					// this session leaves or it goes stale.
					continue
				}
				lastInvite = invite
				if !writeEvent(conn, signalEvent{Type: "incoming_call", State: lifecycle.State(), Call: invite}) {
					return
				}
				continue
			}

			if lastInvite != nil {
				lastInvite = nil
				if err := lifecycle.ClearRing(); err == nil {
					if !writeEvent(conn, signalEvent{Type: "call_cleared", State: lifecycle.State()}) {
						return
					}
				}
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event signalEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("failed to push signal event: %v", err)
		return false
	}
	return true
}

func sameInvite(a, b *models.IncomingCall) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.CallerID == b.CallerID && a.RoomID == b.RoomID && a.Timestamp == b.Timestamp
}
