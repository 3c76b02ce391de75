package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"token-gate-backend/internal/features/connect/models"
	"token-gate-backend/internal/features/connect/repository"
	redisp "token-gate-backend/internal/platform/redis"
)

const (
	keyPrefixPayload  = "connect_payload:"
	payloadExpiration = 15 * time.Minute
)

type Repository struct {
	client *redisp.Client
}

func NewRepository(client *redisp.Client) repository.Repository {
	return &Repository{client: client}
}

func (r *Repository) GeneratePayload(ctx context.Context, userID int64) (*models.ConnectPayload, error) {
	payload := &models.ConnectPayload{
		UserID:    userID,
		Payload:   uuid.New().String(),
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	key := fmt.Sprintf("%s%d", keyPrefixPayload, userID)
	if err := r.client.Set(ctx, key, data, payloadExpiration).Err(); err != nil {
		return nil, fmt.Errorf("failed to save payload: %w", err)
	}

	return payload, nil
}

func (r *Repository) GetPayload(ctx context.Context, userID int64) (*models.ConnectPayload, error) {
	key := fmt.Sprintf("%s%d", keyPrefixPayload, userID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}

	var payload models.ConnectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &payload, nil
}

func (r *Repository) DeletePayload(ctx context.Context, userID int64) error {
	key := fmt.Sprintf("%s%d", keyPrefixPayload, userID)
	return r.client.Del(ctx, key).Err()
}
