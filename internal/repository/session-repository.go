package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hatshop/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionRepository keeps per-chat checkout sessions in Redis. Every write
// refreshes the TTL, so an abandoned checkout disappears on its own instead
// of dangling forever.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("checkout:%d", chatID)
}

// Get returns the chat's session, or (nil, nil) when the chat is idle.
func (r *SessionRepository) Get(ctx context.Context, chatID int64) (*domain.CheckoutState, error) {
	data, err := r.client.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state domain.CheckoutState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *SessionRepository) Save(ctx context.Context, chatID int64, state *domain.CheckoutState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(chatID), data, r.ttl).Err()
}

func (r *SessionRepository) Delete(ctx context.Context, chatID int64) error {
	return r.client.Del(ctx, sessionKey(chatID)).Err()
}
