package models

import "time"

// Room is the provider-allocated session for the external video transport,
// as returned by the room-creation API.
type Room struct {
	RoomID       string    `json:"roomId"`
	CustomRoomID string    `json:"customRoomId,omitempty"`
	UserID       string    `json:"userId"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Candidate is one entry in the dashboard's available-users list.
type Candidate struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	IsAvailable bool   `json:"is_available"`
}
