package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/billvault/backend/internal/models"
	"github.com/billvault/backend/internal/paystack"
	"github.com/billvault/backend/internal/services"
)

// WebhookHandler receives processor event notifications. The signature is
// checked against the raw body before anything else; once an event is
// accepted the handler always answers 200 so the processor stops
// redelivering, even when settlement declines the event internally.
type WebhookHandler struct {
	settlement *services.SettlementService
	processor  paystack.Processor
}

func NewWebhookHandler(settlement *services.SettlementService, processor paystack.Processor) *WebhookHandler {
	return &WebhookHandler{settlement: settlement, processor: processor}
}

type webhookEvent struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

type webhookData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// HandleWebhook processes processor events
// @Summary Processor webhook
// @Description Receive charge.success and transfer.failed events from the payment processor
// @Tags webhook
// @Accept json
// @Param x-paystack-signature header string true "HMAC-SHA512 signature of the raw body"
// @Success 200 "Event accepted"
// @Failure 401 "Invalid signature"
// @Router /webhook/paystack [post]
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if !h.processor.VerifyWebhookSignature(signature, body) {
		log.Printf("[WEBHOOK] Rejected event with bad signature from %s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	var payload models.Metadata
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = models.Metadata{}
	}

	switch event.Event {
	case "charge.success":
		if err := h.settlement.HandleChargeSuccess(r.Context(), event.Data.Reference, payload); err != nil {
			log.Printf("[WEBHOOK] charge.success handling failed for %s: %v", event.Data.Reference, err)
		}
	case "transfer.failed":
		if err := h.settlement.HandleTransferFailed(r.Context(), event.Data.Reference, payload); err != nil {
			log.Printf("[WEBHOOK] transfer.failed handling failed for %s: %v", event.Data.Reference, err)
		}
	default:
		log.Printf("[WEBHOOK] Ignoring event %q", event.Event)
	}

	// Always acknowledge accepted events; redelivery would not change the
	// outcome and internal failures are handled out of band.
	w.WriteHeader(http.StatusOK)
}
