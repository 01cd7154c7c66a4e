package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/google/uuid"
)

const (
	// Over-fetch more records than the dashboard shows, then shuffle in
	// process, so the presentation order carries no query-order bias.
	candidateOverFetch = 20

	// How many candidates the dashboard surfaces at once.
	DashboardCandidates = 5
)

type PresenceService struct {
	presenceRepo repositories.PresenceRepository
}

func NewPresenceService(presenceRepo repositories.PresenceRepository) *PresenceService {
	return &PresenceService{presenceRepo: presenceRepo}
}

func (s *PresenceService) EnsureProfile(ctx context.Context, userID uuid.UUID, defaults models.ProfileDefaults) (*models.PresenceRecord, error) {
	record, err := s.presenceRepo.EnsureProfile(ctx, userID, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return record, nil
}

func (s *PresenceService) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	if err := s.presenceRepo.SetAvailability(ctx, userID, available); err != nil {
		return fmt.Errorf("failed to set availability: %w", err)
	}
	return nil
}

// MarkUnavailable is the teardown variant of SetAvailability: a directory
// failure is logged and swallowed so it never blocks the caller's exit path.
func (s *PresenceService) MarkUnavailable(ctx context.Context, userID uuid.UUID) {
	if err := s.presenceRepo.SetAvailability(ctx, userID, false); err != nil {
		log.Printf("failed to mark %s unavailable: %v", userID, err)
	}
}

// RefreshDashboard is what a dashboard visit does: make sure the visitor's
// profile exists, flip them available, and return a randomized shortlist of
// other available users. An empty list is a valid "no users available" state.
func (s *PresenceService) RefreshDashboard(ctx context.Context, userID uuid.UUID, email string) ([]models.Candidate, error) {
	_, err := s.presenceRepo.EnsureProfile(ctx, userID, models.ProfileDefaults{Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	if err := s.presenceRepo.SetAvailability(ctx, userID, true); err != nil {
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}

	return s.ListAvailableCandidates(ctx, userID, DashboardCandidates)
}

// ListAvailableCandidates returns up to limit available users excluding the
// requester, in randomized order. Read-only and safe to call repeatedly.
func (s *PresenceService) ListAvailableCandidates(ctx context.Context, selfID uuid.UUID, limit int) ([]models.Candidate, error) {
	records, err := s.presenceRepo.ListAvailable(ctx, candidateOverFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to list available users: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(records))
	for _, record := range records {
		if record.ID == selfID {
			continue
		}
		candidates = append(candidates, models.Candidate{
			ID:          record.ID.String(),
			Username:    models.DisplayName(record.Email, record.ID),
			Email:       record.Email,
			Gender:      record.Gender,
			IsAvailable: record.IsAvailable,
		})
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
