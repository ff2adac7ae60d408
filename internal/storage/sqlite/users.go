package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/storage"
)

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.WalletAddress, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

const userColumns = "id, telegram_id, username, first_name, wallet_address, created_at"

// UpsertUser creates or refreshes a user keyed by Telegram ID, then links
// any unresolved participants carrying the same Telegram identity.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The wallet address is deliberately not overwritten on login.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, username, first_name, wallet_address, created_at)
		 VALUES (?, ?, ?, ?, '', ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET
		   username = excluded.username,
		   first_name = excluded.first_name`,
		user.ID, user.TelegramID, user.Username, user.FirstName, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	// Re-read to pick up the canonical row on conflict.
	row := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, user.TelegramID)
	persisted, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("failed to re-read user: %w", err)
	}
	*user = *persisted

	// Late identity resolution: adopt participants added by Telegram ID
	// or username before this person first logged in.
	_, err = tx.ExecContext(ctx,
		`UPDATE participants SET user_id = ?
		 WHERE user_id IS NULL
		   AND (telegram_user_id = ?
		        OR (telegram_username != '' AND telegram_username = ?))`,
		user.ID, user.TelegramID, user.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUser retrieves a user by internal ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID retrieves a user by Telegram account ID.
func (s *SQLiteStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("telegram user %d: %w", telegramID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id: %w", err)
	}
	return u, nil
}

// SetWalletAddress records a user's receiving wallet address.
func (s *SQLiteStore) SetWalletAddress(ctx context.Context, userID, address string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET wallet_address = ? WHERE id = ?", address, userID)
	if err != nil {
		return fmt.Errorf("failed to set wallet address: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}
