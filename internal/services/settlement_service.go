package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/billvault/backend/internal/models"
	"github.com/billvault/backend/internal/paystack"
	"github.com/spf13/viper"
)

// SettlementService orchestrates money movement between the wallet ledger
// and the external processor.
//
// Outbound spends run debit -> adapter call -> commit, with a compensating
// credit when the adapter call fails. The debit/adapter-call gap is the
// one recognized window of inconsistency; a crash there leaves funds
// debited against a pending transaction, mitigated by compensation on the
// failure path rather than eliminated.
//
// Inbound funding runs initialize -> hand-off -> confirmation, where
// confirmation arrives via explicit verify or webhook. Both converge on
// the transaction store's conditional pending->successful update, which is
// the single gate for crediting: a transaction is credited at most once
// even when the two paths race.
type SettlementService struct {
	wallets      *WalletService
	transactions *TransactionStore
	bills        *BillPaymentStore
	processor    paystack.Processor
	catalog      *CatalogService
	callbackURL  string
}

func NewSettlementService(wallets *WalletService, transactions *TransactionStore, bills *BillPaymentStore, processor paystack.Processor, catalog *CatalogService) *SettlementService {
	callbackURL := ""
	if frontend := viper.GetString("frontend.url"); frontend != "" {
		callbackURL = frontend + "/wallet/verify-payment"
	}
	return &SettlementService{
		wallets:      wallets,
		transactions: transactions,
		bills:        bills,
		processor:    processor,
		catalog:      catalog,
		callbackURL:  callbackURL,
	}
}

// FundingInit is returned from InitializeFunding: the pending transaction
// plus the hand-off target the processor uses to collect payment.
type FundingInit struct {
	Transaction      *models.Transaction `json:"transaction"`
	AuthorizationURL string              `json:"authorizationUrl"`
	AccessCode       string              `json:"accessCode,omitempty"`
}

// SpendResult is returned from the outbound spend operations.
type SpendResult struct {
	Transaction *models.Transaction `json:"transaction"`
	BillPayment *models.BillPayment `json:"billPayment"`
	Token       string              `json:"token,omitempty"` // electricity prepaid token
}

// InitializeFunding opens a pending funding transaction and asks the
// processor for an authorization hand-off. The wallet is not credited
// here; that happens on confirmation. An adapter failure leaves the
// transaction pending for the caller to retry verification later.
func (s *SettlementService) InitializeFunding(ctx context.Context, userID int, email string, amount int64) (*FundingInit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.wallets.GetBalance(ctx, userID); err != nil {
		return nil, err
	}

	reference := NewReference(models.KindFunding)
	tx, err := s.transactions.Open(ctx, userID, models.KindFunding, amount, reference)
	if err != nil {
		return nil, err
	}

	initResp, err := s.processor.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      amount,
		Reference:   reference,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		log.Printf("[SETTLEMENT] Funding initialization failed for user %d: %v", userID, err)
		return nil, err
	}

	finalReference := initResp.Reference
	if finalReference == "" {
		finalReference = reference
	}
	if err := s.transactions.UpdateReference(ctx, tx.ID, finalReference, models.Metadata{
		"paystackResponse": map[string]any(initResp.Raw),
	}); err != nil {
		return nil, err
	}
	tx.Reference = finalReference

	log.Printf("[SETTLEMENT] Funding initialized: user=%d amount=%d reference=%s", userID, amount, finalReference)
	return &FundingInit{
		Transaction:      tx,
		AuthorizationURL: initResp.AuthorizationURL,
		AccessCode:       initResp.AccessCode,
	}, nil
}

// VerifyFunding is the explicit confirmation path. Idempotent: an already
// successful transaction is returned as-is without re-crediting.
func (s *SettlementService) VerifyFunding(ctx context.Context, userID int, reference string) (*models.Transaction, error) {
	tx, err := s.transactions.FindFundingByReference(ctx, userID, reference)
	if err != nil {
		return nil, err
	}

	if tx.Status == models.StatusSuccessful {
		return tx, nil
	}

	verifyResp, err := s.processor.VerifyTransaction(ctx, reference)
	if err != nil {
		// Funds were never credited; leave the transaction pending so a
		// later verify can settle it.
		log.Printf("[SETTLEMENT] Funding verification failed for %s: %v", reference, err)
		return nil, err
	}

	settled, err := s.settleFunding(ctx, tx, verifyResp.Status == "success", models.Metadata{
		"paystackVerification": map[string]any(verifyResp.Raw),
	})
	if errors.Is(err, ErrInvalidTransition) {
		// Lost the race against the webhook; the funding is already
		// settled, so report it as such.
		log.Printf("[SETTLEMENT] Verify raced on %s, already settled", reference)
		return s.transactions.FindFundingByReference(ctx, userID, reference)
	}
	return settled, err
}

// HandleChargeSuccess is the webhook confirmation path for funding. The
// caller must have verified the event signature already. Unknown or
// already-settled references are a no-op, not an error.
func (s *SettlementService) HandleChargeSuccess(ctx context.Context, reference string, payload models.Metadata) error {
	tx, err := s.transactions.FindPendingFundingByReference(ctx, reference)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[SETTLEMENT] Webhook charge.success for unknown or settled reference %s, ignoring", reference)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.settleFunding(ctx, tx, true, models.Metadata{
		"paystackWebhook": map[string]any(payload),
	})
	if errors.Is(err, ErrInvalidTransition) {
		// Lost the race against an explicit verify; already settled.
		log.Printf("[SETTLEMENT] Webhook charge.success raced on %s, already settled", reference)
		return nil
	}
	return err
}

// settleFunding applies the confirmation outcome. The conditional state
// transition runs before the credit: winning the transition is the
// one-time license to credit.
func (s *SettlementService) settleFunding(ctx context.Context, tx *models.Transaction, success bool, metadata models.Metadata) (*models.Transaction, error) {
	if !success {
		if err := s.transactions.MarkFailed(ctx, tx.ID, metadata); err != nil {
			return nil, err
		}
		tx.Status = models.StatusFailed
		log.Printf("[SETTLEMENT] Funding %s marked failed", tx.Reference)
		return tx, nil
	}

	if err := s.transactions.MarkSuccessful(ctx, tx.ID, tx.Reference, metadata); err != nil {
		return nil, err
	}
	tx.Status = models.StatusSuccessful

	if err := s.wallets.Credit(ctx, tx.UserID, tx.Amount); err != nil {
		// The transaction is already successful; surface the storage
		// failure rather than unwinding an audit record.
		log.Printf("[SETTLEMENT] Credit failed after successful funding %s: %v", tx.Reference, err)
		return nil, err
	}

	log.Printf("[SETTLEMENT] Funding %s settled, user %d credited with %d", tx.Reference, tx.UserID, tx.Amount)
	return tx, nil
}

// HandleTransferFailed is the webhook path for a processor-side failure of
// an outbound bill payment that had been left pending. It refunds the
// wallet for spend kinds, mirroring the compensation the synchronous path
// performs.
func (s *SettlementService) HandleTransferFailed(ctx context.Context, reference string, payload models.Metadata) error {
	tx, err := s.transactions.FindByReference(ctx, reference)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[SETTLEMENT] Webhook transfer.failed for unknown reference %s, ignoring", reference)
		return nil
	}
	if err != nil {
		return err
	}

	err = s.transactions.MarkFailed(ctx, tx.ID, models.Metadata{
		"paystackWebhook": map[string]any(payload),
	})
	if errors.Is(err, ErrInvalidTransition) {
		log.Printf("[SETTLEMENT] Webhook transfer.failed raced on %s, already settled", reference)
		return nil
	}
	if err != nil {
		return err
	}

	if models.IsSpendKind(tx.Type) {
		if err := s.bills.SetStatus(ctx, tx.ID, models.StatusFailed); err != nil {
			return err
		}
		if err := s.wallets.Credit(ctx, tx.UserID, tx.Amount); err != nil {
			return err
		}
		log.Printf("[SETTLEMENT] Refunded user %d with %d after failed %s", tx.UserID, tx.Amount, tx.Type)
	}
	return nil
}

// AirtimeSpend are the inputs to an airtime purchase. Amount in kobo.
type AirtimeSpend struct {
	Phone    string
	Amount   int64
	Provider string
}

// PurchaseAirtime runs the outbound spend protocol for airtime.
func (s *SettlementService) PurchaseAirtime(ctx context.Context, userID int, req AirtimeSpend) (*SpendResult, error) {
	if err := s.catalog.ValidateAirtime(req.Phone, req.Provider, req.Amount); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, err.Error())
	}

	provider := strings.ToUpper(req.Provider)
	return s.spend(ctx, userID, spendOrder{
		kind:       models.KindAirtime,
		amount:     req.Amount,
		customerID: req.Phone,
		provider:   provider,
		dispatch: func(ctx context.Context) (*paystack.BillResponse, error) {
			return s.processor.PurchaseAirtime(ctx, paystack.AirtimeRequest{
				Phone:    req.Phone,
				Amount:   req.Amount / 100, // bills API takes Naira
				Provider: provider,
			})
		},
	})
}

// ElectricitySpend are the inputs to an electricity bill payment.
type ElectricitySpend struct {
	MeterNumber string
	Amount      int64
	Provider    string
	MeterType   string
}

// PayElectricity runs the outbound spend protocol for electricity.
func (s *SettlementService) PayElectricity(ctx context.Context, userID int, req ElectricitySpend) (*SpendResult, error) {
	if err := s.catalog.ValidateElectricity(req.MeterNumber, req.Provider, req.MeterType, req.Amount); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, err.Error())
	}

	provider := strings.ToUpper(req.Provider)
	meterType := strings.ToLower(req.MeterType)
	return s.spend(ctx, userID, spendOrder{
		kind:       models.KindElectricity,
		amount:     req.Amount,
		customerID: req.MeterNumber,
		provider:   provider,
		dispatch: func(ctx context.Context) (*paystack.BillResponse, error) {
			return s.processor.PayElectricity(ctx, paystack.ElectricityRequest{
				MeterNumber: req.MeterNumber,
				Amount:      req.Amount / 100,
				Provider:    provider,
				MeterType:   meterType,
			})
		},
	})
}

// CableSpend are the inputs to a cable TV subscription. The amount is
// resolved from the package catalog, never supplied by the caller.
type CableSpend struct {
	SmartcardNumber string
	Provider        string
	PackageCode     string
}

// PayCable runs the outbound spend protocol for cable TV.
func (s *SettlementService) PayCable(ctx context.Context, userID int, req CableSpend) (*SpendResult, error) {
	if err := s.catalog.ValidateCable(req.SmartcardNumber, req.Provider); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, err.Error())
	}
	amount, err := s.catalog.PackageAmount(ctx, req.PackageCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, err.Error())
	}

	provider := strings.ToUpper(req.Provider)
	packageCode := strings.ToUpper(req.PackageCode)
	return s.spend(ctx, userID, spendOrder{
		kind:       models.KindCable,
		amount:     amount,
		customerID: req.SmartcardNumber,
		provider:   provider,
		dispatch: func(ctx context.Context) (*paystack.BillResponse, error) {
			return s.processor.PayCable(ctx, paystack.CableRequest{
				SmartcardNumber: req.SmartcardNumber,
				Provider:        provider,
				PackageCode:     packageCode,
			})
		},
	})
}

// spendOrder is one validated outbound purchase ready for settlement.
type spendOrder struct {
	kind       string
	amount     int64
	customerID string
	provider   string
	dispatch   func(ctx context.Context) (*paystack.BillResponse, error)
}

// spend is the shared outbound protocol: open a pending transaction, debit
// the wallet, invoke the processor, then either commit or compensate.
func (s *SettlementService) spend(ctx context.Context, userID int, order spendOrder) (*SpendResult, error) {
	reference := NewReference(order.kind)
	tx, err := s.transactions.Open(ctx, userID, order.kind, order.amount, reference)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.Debit(ctx, userID, order.amount); err != nil {
		// Nothing was debited, so there is nothing to compensate.
		if markErr := s.transactions.MarkFailed(ctx, tx.ID, models.Metadata{
			"error": err.Error(),
		}); markErr != nil {
			log.Printf("[SETTLEMENT] Failed to mark %s failed after debit error: %v", tx.ID, markErr)
		}
		return nil, err
	}

	billResp, err := order.dispatch(ctx)
	if err != nil {
		return nil, s.compensate(ctx, tx, order, err)
	}

	finalReference := billResp.Reference
	if finalReference == "" {
		finalReference = reference
	}

	bp := &models.BillPayment{
		TransactionID: tx.ID,
		UserID:        userID,
		Type:          order.kind,
		CustomerID:    order.customerID,
		Provider:      order.provider,
		Amount:        order.amount,
		Status:        models.StatusSuccessful,
		Reference:     finalReference,
		ResponseData:  billResp.Raw,
	}
	if err := s.bills.Create(ctx, bp); err != nil {
		return nil, err
	}

	if err := s.transactions.MarkSuccessful(ctx, tx.ID, finalReference, models.Metadata{
		"billPaymentId":    bp.ID,
		"paystackResponse": map[string]any(billResp.Raw),
	}); err != nil {
		return nil, err
	}
	tx.Status = models.StatusSuccessful
	tx.Reference = finalReference

	log.Printf("[SETTLEMENT] %s purchase settled: user=%d amount=%d reference=%s", order.kind, userID, order.amount, finalReference)
	return &SpendResult{Transaction: tx, BillPayment: bp, Token: billResp.Token}, nil
}

// compensate reverses the debit after an adapter failure and records the
// failed attempt, then surfaces the original error.
func (s *SettlementService) compensate(ctx context.Context, tx *models.Transaction, order spendOrder, cause error) error {
	log.Printf("[SETTLEMENT] %s call failed for %s, compensating: %v", order.kind, tx.Reference, cause)

	if err := s.wallets.Credit(ctx, tx.UserID, order.amount); err != nil {
		// Compensation itself failed: funds stay debited against a
		// transaction about to be failed. Loud log, surfaced error.
		log.Printf("[SETTLEMENT] COMPENSATION FAILED for %s: %v", tx.Reference, err)
		return fmt.Errorf("compensation failed after adapter error (%v): %w", cause, err)
	}

	bp := &models.BillPayment{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          order.kind,
		CustomerID:    order.customerID,
		Provider:      order.provider,
		Amount:        order.amount,
		Status:        models.StatusFailed,
		Reference:     tx.Reference,
		ResponseData:  models.Metadata{"error": cause.Error()},
	}
	if err := s.bills.Create(ctx, bp); err != nil {
		log.Printf("[SETTLEMENT] Failed to record failed bill payment for %s: %v", tx.Reference, err)
	}

	if err := s.transactions.MarkFailed(ctx, tx.ID, models.Metadata{
		"error": cause.Error(),
	}); err != nil {
		log.Printf("[SETTLEMENT] Failed to mark %s failed: %v", tx.ID, err)
	}

	return cause
}

// Retry reopens a failed transaction for another attempt. It only resets
// bookkeeping: the transaction (and its bill detail, for spend kinds) goes
// back to pending, and re-dispatching to the processor is a separate,
// deliberate call. Raised ErrInvalidTransition is surfaced here, not
// swallowed, since this is an explicit admin action.
func (s *SettlementService) Retry(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: only failed transactions can be retried", ErrInvalidTransition)
	}

	if err := s.transactions.ReopenForRetry(ctx, transactionID); err != nil {
		return nil, err
	}
	tx.Status = models.StatusPending

	if models.IsSpendKind(tx.Type) {
		if err := s.bills.SetStatus(ctx, transactionID, models.StatusPending); err != nil {
			return nil, err
		}
	}

	log.Printf("[SETTLEMENT] Transaction %s reopened for retry", transactionID)
	return tx, nil
}
