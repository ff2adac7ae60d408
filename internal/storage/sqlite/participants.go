package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/storage"
)

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	p := &models.Participant{}
	var userID, paymentID sql.NullString
	var share, status string
	var isPayer int
	err := row.Scan(&p.ID, &p.BillID, &userID, &p.TelegramUserID, &p.TelegramUsername,
		&p.Name, &share, &status, &isPayer, &paymentID)
	if err != nil {
		return nil, err
	}
	p.UserID = userID.String
	p.PaymentID = paymentID.String
	p.PaymentStatus = models.PaymentStatus(status)
	p.IsPayer = isPayer != 0
	if p.ShareAmount, err = parseAmount(share); err != nil {
		return nil, err
	}
	return p, nil
}

const participantColumns = `id, bill_id, user_id, telegram_user_id, telegram_username, name,
	share_amount, payment_status, is_payer, payment_id`

// GetParticipant retrieves a participant by ID.
func (s *SQLiteStore) GetParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, participantID)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("participant %s: %w", participantID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// FindParticipantByUser locates the bill participant resolved to a user.
func (s *SQLiteStore) FindParticipantByUser(ctx context.Context, billID, userID string) (*models.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE bill_id = ? AND user_id = ?`,
		billID, userID)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("participant of bill %s for user %s: %w", billID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

// SetParticipantPayment updates payment status and current intent pointer.
func (s *SQLiteStore) SetParticipantPayment(ctx context.Context, participantID string, status models.PaymentStatus, paymentID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE participants SET payment_status = ?, payment_id = ? WHERE id = ?",
		string(status), nullable(paymentID), participantID)
	if err != nil {
		return fmt.Errorf("failed to update participant payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("participant %s: %w", participantID, storage.ErrNotFound)
	}
	return nil
}
