package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/billvault/backend/internal/models"
	"github.com/billvault/backend/internal/paystack"
	"github.com/billvault/backend/internal/services"
)

func newWebhookFixture(t *testing.T) (*WebhookHandler, sqlmock.Sqlmock) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	processor := paystack.NewClient(paystack.Config{
		SecretKey:     "sk_test_abc",
		WebhookSecret: "whsec_123",
	})
	settlement := services.NewSettlementService(
		services.NewWalletService(db),
		services.NewTransactionStore(db),
		services.NewBillPaymentStore(db),
		processor,
		services.NewCatalogService(nil),
	)
	return NewWebhookHandler(settlement, processor), dbMock
}

func signBody(secret string, body []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	now := time.Now()

	t.Run("rejects missing signature before any lookup", func(t *testing.T) {
		handler, dbMock := newWebhookFixture(t)

		body := []byte(`{"event":"charge.success","data":{"reference":"PS_REF_1"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleWebhook(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("rejects forged signature", func(t *testing.T) {
		handler, _ := newWebhookFixture(t)

		body := []byte(`{"event":"charge.success","data":{"reference":"PS_REF_1"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", signBody("whsec_wrong", body))
		rec := httptest.NewRecorder()

		handler.HandleWebhook(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("charge.success settles a pending funding", func(t *testing.T) {
		handler, dbMock := newWebhookFixture(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("PS_REF_1", models.KindFunding, models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}).
				AddRow("tx-1", 1, models.KindFunding, int64(50000), models.StatusPending, "PS_REF_1", []byte(`{}`), now, now))
		dbMock.ExpectExec("UPDATE transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE wallets").
			WithArgs(int64(50000), sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"event":"charge.success","data":{"reference":"PS_REF_1","status":"success","amount":50000}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", signBody("whsec_123", body))
		rec := httptest.NewRecorder()

		handler.HandleWebhook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown reference still returns 200", func(t *testing.T) {
		handler, dbMock := newWebhookFixture(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("PS_REF_9", models.KindFunding, models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "reference", "metadata", "created_at", "updated_at"}))

		body := []byte(`{"event":"charge.success","data":{"reference":"PS_REF_9"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", signBody("whsec_123", body))
		rec := httptest.NewRecorder()

		handler.HandleWebhook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unhandled event type is acknowledged", func(t *testing.T) {
		handler, dbMock := newWebhookFixture(t)

		body := []byte(`{"event":"subscription.create","data":{}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", signBody("whsec_123", body))
		rec := httptest.NewRecorder()

		handler.HandleWebhook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
