package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

// stateKeyPrefix namespaces conversation state keys in Redis.
const stateKeyPrefix = "convstate:"

// StateRepository implements domain.StateRepository on Redis. State is
// hot and small; the TTL matches the retention window so stale
// conversations age out on their own even if the sweep misses them.
type StateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateRepository creates a new StateRepository. A non-positive ttl
// disables expiry.
func NewStateRepository(client *redis.Client, ttl time.Duration) *StateRepository {
	return &StateRepository{client: client, ttl: ttl}
}

func stateKey(userID string) string {
	return stateKeyPrefix + userID
}

// Get retrieves conversation state by canonical user id.
func (s *StateRepository) Get(ctx context.Context, userID string) (*domain.ConversationState, error) {
	data, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("repository.StateRepository.Get", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.DatabaseError("repository.StateRepository.Get",
			fmt.Errorf("corrupt state for %s: %w", userID, err))
	}
	return &state, nil
}

// Save stores conversation state, refreshing its TTL.
func (s *StateRepository) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(state.UserID), data, s.ttl).Err(); err != nil {
		return apperrors.DatabaseError("repository.StateRepository.Save", err)
	}
	return nil
}

// Delete removes conversation state. Deleting missing state is not an error.
func (s *StateRepository) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return apperrors.DatabaseError("repository.StateRepository.Delete", err)
	}
	return nil
}
