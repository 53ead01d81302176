package services

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/billvault/backend/internal/models"
)

func TestNewReference(t *testing.T) {
	ref := NewReference(models.KindAirtime)

	parts := strings.Split(ref, "_")
	assert.Len(t, parts, 3)
	assert.Equal(t, "airtime", parts[0])
	assert.Len(t, parts[1], 16) // 8 bytes hex-encoded

	ms, err := strconv.ParseInt(parts[2], 10, 64)
	assert.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), ms, 5000)

	// Distinct per call
	assert.NotEqual(t, ref, NewReference(models.KindAirtime))
}

func TestTransactionStore_Open(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewTransactionStore(db)
	ctx := context.Background()

	t.Run("opens pending transaction", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), 1, models.KindFunding, int64(50000), models.StatusPending,
				"funding_abc_1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := store.Open(ctx, 1, models.KindFunding, 50000, "funding_abc_1")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, tx.Status)
		assert.NotEmpty(t, tx.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := store.Open(ctx, 1, models.KindFunding, 0, "ref")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestTransactionStore_Transitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewTransactionStore(db)
	ctx := context.Background()

	t.Run("pending to successful", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccessful, "PS_REF_1", sqlmock.AnyArg(), sqlmock.AnyArg(),
				"tx-1", models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.MarkSuccessful(ctx, "tx-1", "PS_REF_1", models.Metadata{"ok": true})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("successful is terminal", func(t *testing.T) {
		// Already-settled row: the conditional update matches nothing.
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusSuccessful, "PS_REF_1", sqlmock.AnyArg(), sqlmock.AnyArg(),
				"tx-1", models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.MarkSuccessful(ctx, "tx-1", "PS_REF_1", nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("pending to failed", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusFailed, sqlmock.AnyArg(), sqlmock.AnyArg(),
				"tx-2", models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.MarkFailed(ctx, "tx-2", models.Metadata{"error": "declined"})
		assert.NoError(t, err)
	})

	t.Run("reopen failed transaction", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusPending, sqlmock.AnyArg(), "tx-3", models.StatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.ReopenForRetry(ctx, "tx-3")
		assert.NoError(t, err)
	})

	t.Run("reopen only applies to failed", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.StatusPending, sqlmock.AnyArg(), "tx-4", models.StatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.ReopenForRetry(ctx, "tx-4")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestTransactionStore_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewTransactionStore(db)
	ctx := context.Background()
	now := time.Now()

	txRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"})
	}

	t.Run("find by id", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(txRows().AddRow("tx-1", 1, models.KindFunding, int64(50000),
				models.StatusPending, "funding_ref", []byte(`{}`), now, now))

		tx, err := store.FindByID(ctx, "tx-1")
		assert.NoError(t, err)
		assert.Equal(t, "tx-1", tx.ID)
		assert.Equal(t, int64(50000), tx.Amount)
	})

	t.Run("find by id miss", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("nope").
			WillReturnRows(txRows())

		_, err := store.FindByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("pending funding lookup scoped to kind and state", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("funding_ref", models.KindFunding, models.StatusPending).
			WillReturnRows(txRows().AddRow("tx-1", 1, models.KindFunding, int64(50000),
				models.StatusPending, "funding_ref", []byte(`{}`), now, now))

		tx, err := store.FindPendingFundingByReference(ctx, "funding_ref")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, tx.Status)
	})
}

func TestTransactionStore_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewTransactionStore(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE user_id").
		WithArgs(1, models.KindAirtime, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}).
			AddRow("tx-1", 1, models.KindAirtime, int64(10000), models.StatusSuccessful, "ref-1", []byte(`{}`), now, now))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(1, models.KindAirtime).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	transactions, total, err := store.ListByUser(ctx, 1, models.KindAirtime, 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, transactions, 1)
	assert.Equal(t, models.KindAirtime, transactions[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
