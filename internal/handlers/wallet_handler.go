package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/billvault/backend/internal/services"
)

type WalletHandler struct {
	wallets      *services.WalletService
	transactions *services.TransactionStore
	settlement   *services.SettlementService
	auth         *services.AuthService
	qr           *services.QRService
	validator    *services.ValidationHelper
}

func NewWalletHandler(wallets *services.WalletService, transactions *services.TransactionStore, settlement *services.SettlementService, auth *services.AuthService, qr *services.QRService) *WalletHandler {
	return &WalletHandler{
		wallets:      wallets,
		transactions: transactions,
		settlement:   settlement,
		auth:         auth,
		qr:           qr,
		validator:    services.NewValidationHelper(),
	}
}

func requestUserID(r *http.Request) (int, bool) {
	userID, ok := r.Context().Value("userID").(int)
	return userID, ok && userID > 0
}

// GetBalance returns the caller's wallet balance
// @Summary Get wallet balance
// @Description Get the authenticated user's wallet balance in kobo
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=int64}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := h.wallets.GetBalance(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Wallet not found", services.ErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"balance": balance})
}

// FundWallet opens a funding checkout
// @Summary Initialize wallet funding
// @Description Open a pending funding transaction and return the checkout hand-off
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64} true "Funding amount in kobo"
// @Success 200 {object} services.FundingInit
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/fund [post]
func (h *WalletHandler) FundWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email, err := h.auth.UserEmail(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "User not found", services.ErrorStatus(err), nil)
		return
	}

	init, err := h.settlement.InitializeFunding(r.Context(), userID, email, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.ErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(init)
}

// FundWalletQR opens a funding checkout and returns it as a QR image
// @Summary Initialize wallet funding with QR hand-off
// @Description Open a funding checkout and render the authorization URL as a QR code for a second device
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64} true "Funding amount in kobo"
// @Success 200 {object} object{transaction=object,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/fund/qr [post]
func (h *WalletHandler) FundWalletQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	email, err := h.auth.UserEmail(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "User not found", services.ErrorStatus(err), nil)
		return
	}

	init, err := h.settlement.InitializeFunding(r.Context(), userID, email, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.ErrorStatus(err), nil)
		return
	}

	qrImage, err := h.qr.GenerateFundingQR(r.Context(), init.Transaction.Reference, init.AuthorizationURL, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transaction":      init.Transaction,
		"authorizationUrl": init.AuthorizationURL,
		"qrImage":          qrImage,
	})
}

// ResolveFundingQR looks up a previously issued funding hand-off
// @Summary Resolve a funding QR hand-off
// @Description Fetch the checkout details behind a funding QR code by reference
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Funding reference"
// @Success 200 {object} services.FundingHandoff
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/fund/qr/{reference} [get]
func (h *WalletHandler) ResolveFundingQR(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUserID(r); !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	reference := chi.URLParam(r, "reference")
	handoff, err := h.qr.ResolveFundingQR(r.Context(), reference)
	if err != nil {
		services.SendErrorResponse(w, "Invalid or expired QR code", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handoff)
}

// VerifyFunding confirms a pending funding transaction
// @Summary Verify wallet funding
// @Description Verify a funding transaction with the processor and credit the wallet on success
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Funding reference"
// @Success 200 {object} object{transaction=object}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/verify/{reference} [get]
func (h *WalletHandler) VerifyFunding(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	reference := chi.URLParam(r, "reference")
	tx, err := h.settlement.VerifyFunding(r.Context(), userID, reference)
	if errors.Is(err, services.ErrNotFound) {
		services.SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, "Verification failed", http.StatusBadGateway, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"transaction": tx})
}

// GetTransactions lists the caller's transaction history
// @Summary Transaction history
// @Description Paginated transaction history, newest first, optionally filtered by kind
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by kind"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} object{transactions=[]object,pagination=object}
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	kind := r.URL.Query().Get("type")

	transactions, total, err := h.transactions.ListByUser(r.Context(), userID, kind, page, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to retrieve transactions", http.StatusInternalServerError, nil)
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
		"transactions": transactions,
		"pagination": map[string]int{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
