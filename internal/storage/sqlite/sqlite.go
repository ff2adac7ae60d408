// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// parseAmount converts a stored decimal string back to a Decimal.
func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt amount %q in database: %w", raw, err)
	}
	return d, nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure. modernc.org/sqlite does not export a typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateBill persists a bill and its participants in one transaction.
func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if len(bill.Participants) == 0 {
		return fmt.Errorf("bill must have at least one participant")
	}
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.CreatedAt == 0 {
		bill.CreatedAt = time.Now().Unix()
	}
	if bill.Status == "" {
		bill.Status = models.BillOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bills (id, title, creator_id, total_amount, currency, split_mode, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.Title, bill.CreatorID, bill.TotalAmount.String(),
		string(bill.Currency), string(bill.SplitMode), string(bill.Status), bill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	for i := range bill.Participants {
		p := &bill.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.BillID = bill.ID
		if p.PaymentStatus == "" {
			p.PaymentStatus = models.PaymentPending
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO participants
			 (id, bill_id, user_id, telegram_user_id, telegram_username, name, share_amount, payment_status, is_payer, payment_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			p.ID, p.BillID, nullable(p.UserID), p.TelegramUserID, p.TelegramUsername,
			p.Name, p.ShareAmount.String(), string(p.PaymentStatus), boolToInt(p.IsPayer),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	// Resolve participants whose Telegram identity already has an
	// account. The same linking runs again at login for everyone else.
	_, err = tx.ExecContext(ctx,
		`UPDATE participants SET user_id = (
		    SELECT u.id FROM users u
		    WHERE (participants.telegram_user_id != 0 AND u.telegram_id = participants.telegram_user_id)
		       OR (participants.telegram_username != '' AND u.username = participants.telegram_username)
		    LIMIT 1)
		 WHERE bill_id = ? AND user_id IS NULL`, bill.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID, including all participants.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	bill := &models.Bill{}
	var total, currency, mode, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, creator_id, total_amount, currency, split_mode, status, created_at
		 FROM bills WHERE id = ?`, billID,
	).Scan(&bill.ID, &bill.Title, &bill.CreatorID, &total, &currency, &mode, &status, &bill.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	if bill.TotalAmount, err = parseAmount(total); err != nil {
		return nil, err
	}
	bill.Currency = models.Currency(currency)
	bill.SplitMode = models.SplitMode(mode)
	bill.Status = models.BillStatus(status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bill_id, user_id, telegram_user_id, telegram_username, name,
		        share_amount, payment_status, is_payer, payment_id
		 FROM participants WHERE bill_id = ? ORDER BY id`, billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		bill.Participants = append(bill.Participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return bill, nil
}

// UpdateBillStatus sets a bill's lifecycle status.
func (s *SQLiteStore) UpdateBillStatus(ctx context.Context, billID string, status models.BillStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bills SET status = ? WHERE id = ?", string(status), billID)
	if err != nil {
		return fmt.Errorf("failed to update bill status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	return nil
}

// DeleteBill removes a bill; participants and intents cascade.
func (s *SQLiteStore) DeleteBill(ctx context.Context, billID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", billID)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
