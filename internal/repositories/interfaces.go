package repositories

import (
	"context"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// PresenceSubscription is a standing watch on one user's presence record.
// Updates delivers the record after every write until Close is called or the
// subscribing context is cancelled; the channel is closed on teardown.
type PresenceSubscription interface {
	Updates() <-chan *models.PresenceRecord
	Close() error
}

// PresenceRepository is the directory of per-user presence documents: keyed
// get/write operations, a filtered availability query, and a live
// subscription on a single record.
type PresenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
	EnsureProfile(ctx context.Context, userID uuid.UUID, defaults models.ProfileDefaults) (*models.PresenceRecord, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error
	SetIncomingCall(ctx context.Context, targetID uuid.UUID, call *models.IncomingCall) error
	ClearIncomingCall(ctx context.Context, userID uuid.UUID) error
	ListAvailable(ctx context.Context, limit int) ([]*models.PresenceRecord, error)
	Subscribe(ctx context.Context, userID uuid.UUID) (PresenceSubscription, error)
}
