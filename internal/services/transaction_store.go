package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/billvault/backend/internal/models"
	"github.com/google/uuid"
)

// TransactionStore is the append-mostly log of every money-movement
// attempt. Records are never deleted; state transitions are guarded by
// conditional updates keyed on the expected current state.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// NewReference generates a draft reference used to correlate with the
// processor before its own reference is known, e.g. airtime_9f86d081..._1712345678901.
func NewReference(kind string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s_%d", kind, hex.EncodeToString(id[:8]), time.Now().UnixMilli())
}

// Open creates a pending transaction linked to a caller-supplied draft
// reference. The unique index on reference rejects duplicates.
func (s *TransactionStore) Open(ctx context.Context, userID int, kind string, amount int64, reference string) (*models.Transaction, error) {
	if amount < 1 {
		return nil, ErrInvalidAmount
	}

	tx := &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Amount:    amount,
		Status:    models.StatusPending,
		Reference: reference,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, status, reference, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Status, tx.Reference, models.Metadata{}, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("open transaction: %w", err)
	}

	return tx, nil
}

// MarkSuccessful transitions pending -> successful, stores the processor's
// final reference (overwriting the draft when it differs) and merges
// metadata. Fails with ErrInvalidTransition when the transaction is not
// pending, which is how concurrent verify/webhook races are decided: only
// one caller wins this update.
func (s *TransactionStore) MarkSuccessful(ctx context.Context, id, finalReference string, metadata models.Metadata) error {
	if metadata == nil {
		metadata = models.Metadata{}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, reference = $2, metadata = metadata || $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, models.StatusSuccessful, finalReference, metadata, time.Now(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark successful: %w", err)
	}

	return s.checkTransition(result)
}

// MarkFailed transitions pending -> failed and merges metadata.
func (s *TransactionStore) MarkFailed(ctx context.Context, id string, metadata models.Metadata) error {
	if metadata == nil {
		metadata = models.Metadata{}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, metadata = metadata || $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, models.StatusFailed, metadata, time.Now(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	return s.checkTransition(result)
}

// ReopenForRetry transitions failed -> pending. It does not re-invoke the
// processor and does not reverse any compensation that already ran when
// the transaction first failed.
func (s *TransactionStore) ReopenForRetry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.StatusPending, time.Now(), id, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("reopen transaction: %w", err)
	}

	return s.checkTransition(result)
}

func (s *TransactionStore) checkTransition(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition check: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

const transactionColumns = `id, user_id, type, amount, status, reference, metadata, created_at, updated_at`

func scanTransaction(row *sql.Row) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
		&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return tx, nil
}

// FindByID fetches one transaction.
func (s *TransactionStore) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1
	`, id)
	return scanTransaction(row)
}

// FindByReference fetches one transaction by its external reference.
func (s *TransactionStore) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE reference = $1
	`, reference)
	return scanTransaction(row)
}

// FindFundingByReference fetches a funding transaction belonging to one
// user, as the explicit verify path requires.
func (s *TransactionStore) FindFundingByReference(ctx context.Context, userID int, reference string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE reference = $1 AND user_id = $2 AND type = $3
	`, reference, userID, models.KindFunding)
	return scanTransaction(row)
}

// FindPendingFundingByReference is the webhook lookup: reference plus
// kind=funding plus state=pending. A miss means already settled or unknown
// and is a no-op for the caller.
func (s *TransactionStore) FindPendingFundingByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE reference = $1 AND type = $2 AND status = $3
	`, reference, models.KindFunding, models.StatusPending)
	return scanTransaction(row)
}

// UpdateReference swaps the draft reference for the processor-issued one
// and merges initialization metadata, while the transaction is pending.
func (s *TransactionStore) UpdateReference(ctx context.Context, id, reference string, metadata models.Metadata) error {
	if metadata == nil {
		metadata = models.Metadata{}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET reference = $1, metadata = metadata || $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, reference, metadata, time.Now(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("update reference: %w", err)
	}

	return s.checkTransition(result)
}

// ListByUser returns a page of a user's transactions, newest first,
// optionally filtered by kind, plus the total count for pagination.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int, kind string, page, limit int) ([]models.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`
	args := []any{userID}

	if kind != "" {
		query += ` AND type = $2`
		countQuery += ` AND type = $2`
		args = append(args, kind)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx := models.Transaction{}
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
			&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("list transactions: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	return transactions, total, nil
}
