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

const intentColumns = `id, bill_id, participant_id, provider, amount, deeplink,
	external_id, status, created_at, completed_at`

func scanIntent(row rowScanner) (*models.PaymentIntent, error) {
	in := &models.PaymentIntent{}
	var provider, amount, status string
	err := row.Scan(&in.ID, &in.BillID, &in.ParticipantID, &provider, &amount,
		&in.Deeplink, &in.ExternalID, &status, &in.CreatedAt, &in.CompletedAt)
	if err != nil {
		return nil, err
	}
	in.Provider = models.Currency(provider)
	in.Status = models.IntentStatus(status)
	if in.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return in, nil
}

// CreateIntent persists a new payment intent. The partial unique index on
// open intents turns a duplicate-create race into ErrOpenIntentExists.
func (s *SQLiteStore) CreateIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.ExternalID == "" {
		intent.ExternalID = uuid.New().String()
	}
	if intent.CreatedAt == 0 {
		intent.CreatedAt = time.Now().Unix()
	}
	if intent.Status == "" {
		intent.Status = models.IntentCreated
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_intents
		 (id, bill_id, participant_id, provider, amount, deeplink, external_id, status, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID, intent.BillID, intent.ParticipantID, string(intent.Provider),
		intent.Amount.String(), intent.Deeplink, intent.ExternalID,
		string(intent.Status), intent.CreatedAt, intent.CompletedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("participant %s: %w", intent.ParticipantID, storage.ErrOpenIntentExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert intent: %w", err)
	}
	return nil
}

// GetIntent retrieves an intent by ID.
func (s *SQLiteStore) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = ?`, intentID)
	in, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return in, nil
}

// GetIntentByExternalID retrieves an intent by correlation token.
func (s *SQLiteStore) GetIntentByExternalID(ctx context.Context, externalID string) (*models.PaymentIntent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE external_id = ?`, externalID)
	in, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("intent with external id %s: %w", externalID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent by external id: %w", err)
	}
	return in, nil
}

func (s *SQLiteStore) listIntents(ctx context.Context, query string, args ...any) ([]models.PaymentIntent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer rows.Close()

	var intents []models.PaymentIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intents: %w", err)
	}
	return intents, nil
}

// ListOpenIntents returns every non-terminal intent, oldest first.
func (s *SQLiteStore) ListOpenIntents(ctx context.Context) ([]models.PaymentIntent, error) {
	return s.listIntents(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		 WHERE status IN ('CREATED', 'PENDING') ORDER BY created_at`)
}

// ListStaleIntents returns open intents created at or before cutoff.
func (s *SQLiteStore) ListStaleIntents(ctx context.Context, cutoff int64) ([]models.PaymentIntent, error) {
	return s.listIntents(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		 WHERE status IN ('CREATED', 'PENDING') AND created_at <= ? ORDER BY created_at`,
		cutoff)
}

// resolveIntent transitions an open intent and its participant to the
// given terminal states in one transaction. The status guard in the
// UPDATE makes the operation idempotent: a second call (or a concurrent
// webhook/poll race) finds no open row and reports false.
func (s *SQLiteStore) resolveIntent(ctx context.Context, intentID string, intentStatus models.IntentStatus, participantStatus models.PaymentStatus, completedAt int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents SET status = ?, completed_at = ?
		 WHERE id = ? AND status IN ('CREATED', 'PENDING')`,
		string(intentStatus), completedAt, intentID)
	if err != nil {
		return false, fmt.Errorf("failed to update intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE participants SET payment_status = ?
		 WHERE id = (SELECT participant_id FROM payment_intents WHERE id = ?)`,
		string(participantStatus), intentID)
	if err != nil {
		return false, fmt.Errorf("failed to update participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ConfirmIntent marks an open intent CONFIRMED and its participant PAID.
func (s *SQLiteStore) ConfirmIntent(ctx context.Context, intentID string, completedAt int64) (bool, error) {
	return s.resolveIntent(ctx, intentID, models.IntentConfirmed, models.PaymentPaid, completedAt)
}

// FailIntent marks an open intent FAILED and its participant FAILED.
func (s *SQLiteStore) FailIntent(ctx context.Context, intentID string) (bool, error) {
	return s.resolveIntent(ctx, intentID, models.IntentFailed, models.PaymentFailed, 0)
}

// DeleteStaleIntent removes a still-open intent and resets its
// participant to PENDING with no current intent pointer.
func (s *SQLiteStore) DeleteStaleIntent(ctx context.Context, intentID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE participants SET payment_status = 'PENDING', payment_id = NULL
		 WHERE id = (SELECT participant_id FROM payment_intents
		             WHERE id = ? AND status IN ('CREATED', 'PENDING'))`,
		intentID)
	if err != nil {
		return false, fmt.Errorf("failed to reset participant: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM payment_intents WHERE id = ? AND status IN ('CREATED', 'PENDING')`,
		intentID)
	if err != nil {
		return false, fmt.Errorf("failed to delete intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}
