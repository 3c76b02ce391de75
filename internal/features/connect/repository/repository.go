package repository

import (
	"context"

	"token-gate-backend/internal/features/connect/models"
)

// Repository stores short-lived connect challenges keyed by Telegram user.
type Repository interface {
	GeneratePayload(ctx context.Context, userID int64) (*models.ConnectPayload, error)
	GetPayload(ctx context.Context, userID int64) (*models.ConnectPayload, error)
	DeletePayload(ctx context.Context, userID int64) error
}
