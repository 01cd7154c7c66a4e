package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix     = "presence:"
	presenceChannelPrefix = "presence:updates:"
	availableSetKey       = "available_users"
)

// RedisPresenceRepository is the shared directory of presence documents.
// Each record is a JSON document under "presence:{id}"; the availability
// index is a plain set; every write is republished on the owner's channel so
// live subscribers see it without polling.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) Get(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	data, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence record: %w", err)
	}

	var record models.PresenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
	}
	return &record, nil
}

// EnsureProfile creates the record if it does not exist yet, otherwise
// overlays only the fields the defaults carry. Existing fields survive a
// repeat signup or dashboard visit untouched.
func (r *RedisPresenceRepository) EnsureProfile(ctx context.Context, userID uuid.UUID, defaults models.ProfileDefaults) (*models.PresenceRecord, error) {
	return r.update(ctx, userID, true, func(record *models.PresenceRecord, created bool) bool {
		if created {
			record.Email = defaults.Email
			record.Gender = defaults.Gender
			record.IsAvailable = defaults.IsAvailable
			return true
		}
		// Merge semantics: overlay what the caller specified, keep the rest.
		if defaults.Email != "" {
			record.Email = defaults.Email
		}
		if defaults.Gender != "" {
			record.Gender = defaults.Gender
		}
		return true
	})
}

// SetAvailability upserts the availability flag. A missing record is created
// on the spot so the flag never fails for a never-seen user.
func (r *RedisPresenceRepository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	_, err := r.update(ctx, userID, true, func(record *models.PresenceRecord, _ bool) bool {
		record.IsAvailable = available
		return true
	})
	return err
}

// SetIncomingCall parks an invitation on the target's record. The caller's
// session is the only writer allowed to touch another user's document, and
// only this field. Last write wins if two callers race.
func (r *RedisPresenceRepository) SetIncomingCall(ctx context.Context, targetID uuid.UUID, call *models.IncomingCall) error {
	_, err := r.update(ctx, targetID, false, func(record *models.PresenceRecord, _ bool) bool {
		record.IncomingCall = call
		return true
	})
	return err
}

// ClearIncomingCall removes any pending invitation. Clearing an absent
// invitation, or an absent record, is a no-op.
func (r *RedisPresenceRepository) ClearIncomingCall(ctx context.Context, userID uuid.UUID) error {
	_, err := r.update(ctx, userID, false, func(record *models.PresenceRecord, _ bool) bool {
		if record.IncomingCall == nil {
			return false
		}
		record.IncomingCall = nil
		return true
	})
	if err == ErrNotFound {
		return nil
	}
	return err
}

// ListAvailable returns up to limit records whose availability flag is set.
// The index set may lag behind the documents, so entries are re-checked
// against the record itself and dead index entries pruned along the way.
func (r *RedisPresenceRepository) ListAvailable(ctx context.Context, limit int) ([]*models.PresenceRecord, error) {
	ids, err := r.client.SMembers(ctx, availableSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read availability index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = presenceKeyPrefix + id
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence records: %w", err)
	}

	var records []*models.PresenceRecord
	var deadEntries []interface{}

	for i, result := range results {
		if result == nil {
			deadEntries = append(deadEntries, ids[i])
			continue
		}
		data, ok := result.(string)
		if !ok {
			continue
		}

		var record models.PresenceRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			deadEntries = append(deadEntries, ids[i])
			continue
		}
		if !record.IsAvailable {
			deadEntries = append(deadEntries, ids[i])
			continue
		}

		records = append(records, &record)
		if len(records) == limit {
			break
		}
	}

	if len(deadEntries) > 0 {
		if err := r.client.SRem(ctx, availableSetKey, deadEntries...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune availability index: %w", err)
		}
	}

	return records, nil
}

const maxUpdateAttempts = 5

// update applies mutate to one record under WATCH so a concurrent writer to a
// different field of the same document is never clobbered; on a conflict the
// read-modify-write is retried against the fresh document. mutate returns
// false to leave the record as it is. The committed write carries the document,
// the availability index entry, and the publish on the owner's channel in one
// transaction.
func (r *RedisPresenceRepository) update(ctx context.Context, userID uuid.UUID, createIfMissing bool, mutate func(record *models.PresenceRecord, created bool) bool) (*models.PresenceRecord, error) {
	key := presenceKey(userID)

	var out *models.PresenceRecord
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			now := time.Now()

			record := &models.PresenceRecord{}
			created := false
			data, err := tx.Get(ctx, key).Result()
			switch {
			case err == redis.Nil:
				if !createIfMissing {
					return ErrNotFound
				}
				record.ID = userID
				record.CreatedAt = now
				created = true
			case err != nil:
				return fmt.Errorf("failed to get presence record: %w", err)
			default:
				if err := json.Unmarshal([]byte(data), record); err != nil {
					return fmt.Errorf("failed to unmarshal presence record: %w", err)
				}
			}

			if !mutate(record, created) {
				out = record
				return nil
			}
			record.UpdatedAt = now

			payload, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal presence record: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				if record.IsAvailable {
					pipe.SAdd(ctx, availableSetKey, record.ID.String())
				} else {
					pipe.SRem(ctx, availableSetKey, record.ID.String())
				}
				pipe.Publish(ctx, presenceChannel(record.ID), payload)
				return nil
			})
			if err == redis.TxFailedErr {
				return err
			}
			if err != nil {
				return fmt.Errorf("failed to write presence record: %w", err)
			}
			out = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("presence record for %s kept changing underneath the write", userID)
}

// redisSubscription adapts a Redis pub/sub stream to PresenceSubscription.
type redisSubscription struct {
	pubsub  *redis.PubSub
	updates chan *models.PresenceRecord
	cancel  context.CancelFunc
}

func (s *redisSubscription) Updates() <-chan *models.PresenceRecord {
	return s.updates
}

func (s *redisSubscription) Close() error {
	s.cancel()
	return s.pubsub.Close()
}

// Subscribe opens a standing watch on one user's record. The current state,
// if any, is delivered first so subscribers do not miss an invitation written
// just before they attached. The watch ends when Close is called or ctx is
// cancelled.
func (r *RedisPresenceRepository) Subscribe(ctx context.Context, userID uuid.UUID) (PresenceSubscription, error) {
	pubsub := r.client.Subscribe(ctx, presenceChannel(userID))

	// Force the SUBSCRIBE onto the wire before we read the snapshot, so no
	// write can slip between snapshot and stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to presence updates: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		pubsub:  pubsub,
		updates: make(chan *models.PresenceRecord, 8),
		cancel:  cancel,
	}

	snapshot, err := r.Get(ctx, userID)
	if err != nil && err != ErrNotFound {
		sub.Close()
		return nil, err
	}

	go func() {
		defer close(sub.updates)

		if snapshot != nil {
			select {
			case sub.updates <- snapshot:
			case <-ctx.Done():
				return
			}
		}

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var record models.PresenceRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					continue
				}
				select {
				case sub.updates <- &record:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// Helpers: Redis keys for one user's document and update channel
func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}

func presenceChannel(userID uuid.UUID) string {
	return presenceChannelPrefix + userID.String()
}
