package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestWalletService_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)
	ctx := context.Background()

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets").
			WithArgs(int64(5000), sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Credit(ctx, 1, 5000)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		err := service.Credit(ctx, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		err := service.Credit(ctx, 1, -100)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("missing wallet", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets").
			WithArgs(int64(5000), sqlmock.AnyArg(), 42).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.Credit(ctx, 42, 5000)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletService_Debit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)
	ctx := context.Background()

	t.Run("successful debit", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets").
			WithArgs(int64(2000), sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Debit(ctx, 1, 2000)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds leaves balance untouched", func(t *testing.T) {
		// The conditional update matches no rows, then the existence
		// probe distinguishes empty wallet from missing wallet.
		mock.ExpectExec("UPDATE wallets").
			WithArgs(int64(999999), sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := service.Debit(ctx, 1, 999999)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing wallet", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets").
			WithArgs(int64(2000), sqlmock.AnyArg(), 42).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := service.Debit(ctx, 42, 2000)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		err := service.Debit(ctx, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestWalletService_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)
	ctx := context.Background()

	t.Run("returns balance", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM wallets").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(75000)))

		balance, err := service.GetBalance(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(75000), balance)
	})

	t.Run("missing wallet", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM wallets").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		_, err := service.GetBalance(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWalletService_HasSufficientFunds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(10000)))

	ok, err := service.HasSufficientFunds(ctx, 1, 5000)
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(10000)))

	ok, err = service.HasSufficientFunds(ctx, 1, 10001)
	assert.NoError(t, err)
	assert.False(t, ok)
}
