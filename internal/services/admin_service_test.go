package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/billvault/backend/internal/models"
)

func newAdminFixture(t *testing.T) (*AdminService, sqlmock.Sqlmock) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bills := NewBillPaymentStore(db)
	settlement := NewSettlementService(
		NewWalletService(db),
		NewTransactionStore(db),
		bills,
		&MockProcessor{},
		NewCatalogService(nil),
	)
	return NewAdminService(db, settlement, bills), dbMock
}

func adminRequest(method, target, id string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, "userID", 99)
	ctx = context.WithValue(ctx, "role", "admin")
	return r.WithContext(ctx)
}

func TestAdminService_RetryTransaction(t *testing.T) {
	now := time.Now()

	t.Run("reopens a failed transaction", func(t *testing.T) {
		service, dbMock := newAdminFixture(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}).
				AddRow("tx-1", 1, models.KindAirtime, int64(10000), models.StatusFailed, "ref-1", []byte(`{}`), now, now))
		dbMock.ExpectExec("UPDATE transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE bill_payments").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		service.RetryTransaction(w, adminRequest("POST", "/admin/transactions/tx-1/retry", "tx-1"))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success     bool               `json:"success"`
			Transaction models.Transaction `json:"transaction"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, models.StatusPending, resp.Transaction.Status)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("successful transaction is a 400", func(t *testing.T) {
		service, dbMock := newAdminFixture(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}).
				AddRow("tx-1", 1, models.KindAirtime, int64(10000), models.StatusSuccessful, "ref-1", []byte(`{}`), now, now))

		w := httptest.NewRecorder()
		service.RetryTransaction(w, adminRequest("POST", "/admin/transactions/tx-1/retry", "tx-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown transaction is a 404", func(t *testing.T) {
		service, dbMock := newAdminFixture(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}))

		w := httptest.NewRecorder()
		service.RetryTransaction(w, adminRequest("POST", "/admin/transactions/nope/retry", "nope"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminService_GetStats(t *testing.T) {
	service, dbMock := newAdminFixture(t)
	now := time.Now()

	dbMock.ExpectQuery("SELECT COUNT(.+) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	dbMock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(340000)))
	dbMock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count", "successful", "failed", "pending"}).
			AddRow(20, 15, 4, 1))
	dbMock.ExpectQuery("SELECT (.+) FROM transactions ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}).
			AddRow("tx-1", 1, models.KindFunding, int64(50000), models.StatusSuccessful, "ref-1", []byte(`{}`), now, now))

	w := httptest.NewRecorder()
	service.GetStats(w, adminRequest("GET", "/admin/stats", ""))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats struct {
			TotalUsers        int     `json:"totalUsers"`
			TotalTransactions int     `json:"totalTransactions"`
			SuccessRate       float64 `json:"successRate"`
		} `json:"stats"`
		RecentTransactions []models.Transaction `json:"recentTransactions"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Stats.TotalUsers)
	assert.Equal(t, 20, resp.Stats.TotalTransactions)
	assert.InDelta(t, 75.0, resp.Stats.SuccessRate, 0.01)
	assert.Len(t, resp.RecentTransactions, 1)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestAdminService_GetUsers(t *testing.T) {
	service, dbMock := newAdminFixture(t)
	now := time.Now()

	dbMock.ExpectQuery("SELECT u.id, u.email").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "phone_number", "role", "last_login", "created_at", "updated_at", "balance"}).
			AddRow(1, "a@example.com", "Ada A", "08031234567", "user", nil, now, now, int64(25000)))
	dbMock.ExpectQuery("SELECT COUNT(.+) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := httptest.NewRecorder()
	service.GetUsers(w, adminRequest("GET", "/admin/users", ""))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users      []models.UserWithBalance `json:"users"`
		Pagination map[string]int           `json:"pagination"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 1)
	assert.Equal(t, int64(25000), resp.Users[0].WalletBalance)
	assert.Equal(t, 1, resp.Pagination["total"])
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
