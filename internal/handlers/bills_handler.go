package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/billvault/backend/internal/services"
)

type BillsHandler struct {
	settlement *services.SettlementService
	bills      *services.BillPaymentStore
	validator  *services.ValidationHelper
}

func NewBillsHandler(settlement *services.SettlementService, bills *services.BillPaymentStore) *BillsHandler {
	return &BillsHandler{
		settlement: settlement,
		bills:      bills,
		validator:  services.NewValidationHelper(),
	}
}

func (h *BillsHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *BillsHandler) writeSpendResult(w http.ResponseWriter, result *services.SpendResult, err error) {
	if errors.Is(err, services.ErrInsufficientFunds) {
		services.SendErrorResponse(w, "Insufficient wallet balance", http.StatusBadRequest, nil)
		return
	}
	if errors.Is(err, services.ErrInvalidAmount) {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, "Payment failed: "+err.Error(), http.StatusBadGateway, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// PurchaseAirtime buys airtime from the wallet
// @Summary Purchase airtime
// @Description Debit the wallet and purchase airtime for a phone number. Amount in kobo.
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{phone=string,amount=int64,provider=string} true "Airtime request"
// @Success 200 {object} services.SpendResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /bills/airtime [post]
func (h *BillsHandler) PurchaseAirtime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Phone    string `json:"phone" validate:"required"`
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Provider string `json:"provider" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.settlement.PurchaseAirtime(r.Context(), userID, services.AirtimeSpend{
		Phone:    req.Phone,
		Amount:   req.Amount,
		Provider: req.Provider,
	})
	h.writeSpendResult(w, result, err)
}

// PayElectricity pays an electricity bill from the wallet
// @Summary Pay electricity bill
// @Description Debit the wallet and pay an electricity bill. Amount in kobo; prepaid meters receive a token.
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{meterNumber=string,amount=int64,provider=string,meterType=string} true "Electricity request"
// @Success 200 {object} services.SpendResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /bills/electricity [post]
func (h *BillsHandler) PayElectricity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		MeterNumber string `json:"meterNumber" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Provider    string `json:"provider" validate:"required"`
		MeterType   string `json:"meterType" validate:"required,oneof=prepaid postpaid"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.settlement.PayElectricity(r.Context(), userID, services.ElectricitySpend{
		MeterNumber: req.MeterNumber,
		Amount:      req.Amount,
		Provider:    req.Provider,
		MeterType:   req.MeterType,
	})
	h.writeSpendResult(w, result, err)
}

// PayCable pays a cable TV subscription from the wallet
// @Summary Pay cable TV subscription
// @Description Debit the wallet for a catalog-priced cable package
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{smartcardNumber=string,provider=string,packageCode=string} true "Cable request"
// @Success 200 {object} services.SpendResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /bills/cable [post]
func (h *BillsHandler) PayCable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		SmartcardNumber string `json:"smartcardNumber" validate:"required"`
		Provider        string `json:"provider" validate:"required"`
		PackageCode     string `json:"packageCode" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.settlement.PayCable(r.Context(), userID, services.CableSpend{
		SmartcardNumber: req.SmartcardNumber,
		Provider:        req.Provider,
		PackageCode:     req.PackageCode,
	})
	h.writeSpendResult(w, result, err)
}

// GetHistory lists the caller's bill payments
// @Summary Bill payment history
// @Description Paginated bill payment history, newest first, optionally filtered by kind
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by kind"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} object{bills=[]object,pagination=object}
// @Failure 401 {object} services.ErrorResponse
// @Router /bills/history [get]
func (h *BillsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	kind := r.URL.Query().Get("type")

	bills, total, err := h.bills.ListByUser(r.Context(), userID, kind, page, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to retrieve bill payments", http.StatusInternalServerError, nil)
		return
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bills": bills,
		"pagination": map[string]int{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
