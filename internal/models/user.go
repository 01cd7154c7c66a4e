package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Gender       string     `json:"gender"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// DisplayName derives the name shown to other users from the email
// local-part, falling back to a generated placeholder.
func DisplayName(email string, id uuid.UUID) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "user_" + id.String()[:8]
}
