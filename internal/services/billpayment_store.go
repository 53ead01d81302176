package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/billvault/backend/internal/models"
	"github.com/google/uuid"
)

// BillPaymentStore persists the kind-specific detail records attached 1:1
// to non-funding transactions. Statuses here only move in lockstep with
// the owning transaction.
type BillPaymentStore struct {
	db *sql.DB
}

func NewBillPaymentStore(db *sql.DB) *BillPaymentStore {
	return &BillPaymentStore{db: db}
}

// Create inserts a bill-payment detail record. The unique index on
// transaction_id enforces the 1:1 link.
func (s *BillPaymentStore) Create(ctx context.Context, bp *models.BillPayment) error {
	if bp.ID == "" {
		bp.ID = uuid.NewString()
	}
	if bp.ResponseData == nil {
		bp.ResponseData = models.Metadata{}
	}
	bp.CreatedAt = time.Now()
	bp.UpdatedAt = bp.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bill_payments (id, transaction_id, user_id, type, customer_id, provider, amount, status, reference, response_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, bp.ID, bp.TransactionID, bp.UserID, bp.Type, bp.CustomerID, bp.Provider,
		bp.Amount, bp.Status, bp.Reference, bp.ResponseData, bp.CreatedAt, bp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create bill payment: %w", err)
	}
	return nil
}

const billColumns = `id, transaction_id, user_id, type, customer_id, provider, amount, status, reference, response_data, created_at, updated_at`

func scanBillPayment(row *sql.Row) (*models.BillPayment, error) {
	bp := &models.BillPayment{}
	err := row.Scan(&bp.ID, &bp.TransactionID, &bp.UserID, &bp.Type, &bp.CustomerID,
		&bp.Provider, &bp.Amount, &bp.Status, &bp.Reference, &bp.ResponseData,
		&bp.CreatedAt, &bp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bill payment: %w", err)
	}
	return bp, nil
}

// FindByTransaction fetches the detail record for a transaction.
func (s *BillPaymentStore) FindByTransaction(ctx context.Context, transactionID string) (*models.BillPayment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+billColumns+` FROM bill_payments WHERE transaction_id = $1
	`, transactionID)
	return scanBillPayment(row)
}

// SetStatus moves the detail record in lockstep with its transaction.
func (s *BillPaymentStore) SetStatus(ctx context.Context, transactionID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bill_payments SET status = $1, updated_at = $2 WHERE transaction_id = $3
	`, status, time.Now(), transactionID)
	if err != nil {
		return fmt.Errorf("update bill payment status: %w", err)
	}
	return nil
}

// ListByUser returns a page of a user's bill payments, newest first,
// optionally filtered by kind.
func (s *BillPaymentStore) ListByUser(ctx context.Context, userID int, kind string, page, limit int) ([]models.BillPayment, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := `SELECT ` + billColumns + ` FROM bill_payments WHERE user_id = $1`
	countQuery := `SELECT COUNT(*) FROM bill_payments WHERE user_id = $1`
	args := []any{userID}

	if kind != "" {
		query += ` AND type = $2`
		countQuery += ` AND type = $2`
		args = append(args, kind)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bill payments: %w", err)
	}
	defer rows.Close()

	bills := []models.BillPayment{}
	for rows.Next() {
		bp := models.BillPayment{}
		err := rows.Scan(&bp.ID, &bp.TransactionID, &bp.UserID, &bp.Type, &bp.CustomerID,
			&bp.Provider, &bp.Amount, &bp.Status, &bp.Reference, &bp.ResponseData,
			&bp.CreatedAt, &bp.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("list bill payments: %w", err)
		}
		bills = append(bills, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bill payments: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bill payments: %w", err)
	}

	return bills, total, nil
}
