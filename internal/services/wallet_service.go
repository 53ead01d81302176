package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/billvault/backend/internal/models"
)

// WalletService owns wallet balances. All mutation goes through Credit and
// Debit; no other component touches the balance column.
type WalletService struct {
	db *sql.DB
}

func NewWalletService(db *sql.DB) *WalletService {
	return &WalletService{db: db}
}

// GetBalance returns the wallet balance in kobo for a user.
func (s *WalletService) GetBalance(ctx context.Context, userID int) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM wallets WHERE user_id = $1
	`, userID).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("balance lookup: %w", err)
	}
	return balance, nil
}

// GetWallet returns the full wallet record for a user.
func (s *WalletService) GetWallet(ctx context.Context, userID int) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}
	return w, nil
}

// Credit increases the balance by amount. Not idempotent: calling it twice
// credits twice. Callers guard against double-crediting by consulting the
// transaction state first.
func (s *WalletService) Credit(ctx context.Context, userID int, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = $2
		WHERE user_id = $3
	`, amount, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	log.Printf("[WALLET] Credited user %d with %d", userID, amount)
	return nil
}

// Debit decreases the balance by amount. The balance check and decrement
// are a single conditional update, so two concurrent debits on the same
// wallet cannot both pass on funds only one of them can cover.
func (s *WalletService) Debit(ctx context.Context, userID int, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
	`, amount, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if rowsAffected == 0 {
		// Zero rows means either no wallet or not enough balance.
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)
		`, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientFunds
	}

	log.Printf("[WALLET] Debited user %d by %d", userID, amount)
	return nil
}

// HasSufficientFunds is advisory only: the balance can change between this
// check and a later debit. The authoritative check is inside Debit.
func (s *WalletService) HasSufficientFunds(ctx context.Context, userID int, amount int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// CreateWalletTx provisions a zero-balance wallet inside the caller's
// database transaction, alongside user creation.
func (s *WalletService) CreateWalletTx(tx *sql.Tx, userID int) error {
	_, err := tx.Exec(`
		INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
	`, userID)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}
