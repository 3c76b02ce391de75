package postgres

import (
	"context"
	"database/sql"

	apperrors "token-gate-backend/internal/common/errors"
	"token-gate-backend/internal/features/membership/models"
	"token-gate-backend/internal/features/membership/repository"

	_ "github.com/lib/pq"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.UserRepository {
	return &postgresRepository{db: db}
}

// Create вставляет нового пользователя
func (r *postgresRepository) Create(ctx context.Context, user *models.User) (int64, error) {
	query := `
		INSERT INTO users (tg_user_id, username, wallet, balance, entry_balance, og, state, invite_link, channel_invite_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		user.TelegramID, user.Username, user.Wallet, user.Balance, user.EntryBalance,
		user.OG, user.State, user.InviteLink, user.ChannelInviteLink).Scan(&id)
	if err != nil {
		return 0, apperrors.NewDatabaseError("create user", err).WithUserID(user.TelegramID)
	}

	user.ID = id
	return id, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *postgresRepository) GetByTelegramID(ctx context.Context, tgUserID int64) (*models.User, error) {
	query := `
		SELECT id, tg_user_id, username, wallet, balance, entry_balance, og, state,
		       invite_link, channel_invite_link, created_at, updated_at
		FROM users
		WHERE tg_user_id = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, tgUserID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrUserNotFound
		}
		return nil, apperrors.NewDatabaseError("get user", err).WithUserID(tgUserID)
	}

	return user, nil
}

// List возвращает всех пользователей
func (r *postgresRepository) List(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, tg_user_id, username, wallet, balance, entry_balance, og, state,
		       invite_link, channel_invite_link, created_at, updated_at
		FROM users
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan user", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate users", err)
	}

	return users, nil
}

// Update обновляет пользователя и пишет запись истории в одной транзакции
func (r *postgresRepository) Update(ctx context.Context, user *models.User, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransactionFailed, "begin transaction")
	}
	defer tx.Rollback()

	query := `
		UPDATE users
		SET username = $2, wallet = $3, balance = $4, og = $5, state = $6,
		    invite_link = $7, channel_invite_link = $8, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query,
		user.ID, user.Username, user.Wallet, user.Balance, user.OG, user.State,
		user.InviteLink, user.ChannelInviteLink)
	if err != nil {
		return apperrors.NewDatabaseError("update user", err).WithUserID(user.TelegramID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("rows affected", err)
	}
	if rowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	if entry != nil {
		historyQuery := `
			INSERT INTO history (user_id, balance_delta, price, wallet)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.ExecContext(ctx, historyQuery,
			entry.UserID, entry.BalanceDelta, entry.Price, entry.Wallet); err != nil {
			return apperrors.NewDatabaseError("insert history entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransactionFailed, "commit transaction")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var inviteLink, channelInviteLink sql.NullString

	err := row.Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.Wallet,
		&user.Balance, &user.EntryBalance, &user.OG, &user.State,
		&inviteLink, &channelInviteLink, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if inviteLink.Valid {
		user.InviteLink = &inviteLink.String
	}
	if channelInviteLink.Valid {
		user.ChannelInviteLink = &channelInviteLink.String
	}

	return &user, nil
}
