package repository

import (
	"context"
	"errors"

	"token-gate-backend/internal/features/membership/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines persistence for users and their audit history.
// Update commits the user row and the optional history entry in a single
// transaction so a partially persisted transition is never observable.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (int64, error)
	GetByTelegramID(ctx context.Context, tgUserID int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User, entry *models.HistoryEntry) error
}
