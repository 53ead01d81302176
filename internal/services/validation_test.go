package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type spendRequest struct {
	Phone    string `validate:"required"`
	Amount   int64  `validate:"required,gt=0"`
	Provider string `validate:"required"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := spendRequest{
			Phone:    "08031234567",
			Amount:   10000,
			Provider: "MTN",
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("missing fields reported per field", func(t *testing.T) {
		invalid := spendRequest{Amount: -5}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // Phone, Amount, Provider
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Insufficient wallet balance", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Insufficient wallet balance", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation details expanded", func(t *testing.T) {
		vh := NewValidationHelper()
		err := vh.ValidateStruct(&spendRequest{})

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Details, 3)
		assert.Contains(t, resp.Details, "Phone")
	})
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(ErrInvalidAmount))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(ErrInsufficientFunds))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(ErrInvalidTransition))
	assert.Equal(t, http.StatusInternalServerError, ErrorStatus(assert.AnError))
}
