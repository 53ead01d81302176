package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/billvault/backend/internal/models"
)

// Processor is the external payment/bill gateway contract consumed by the
// settlement engine. Implementations must treat timeouts as failures, never
// as success.
type Processor interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error)
	PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*BillResponse, error)
	PayElectricity(ctx context.Context, req ElectricityRequest) (*BillResponse, error)
	PayCable(ctx context.Context, req CableRequest) (*BillResponse, error)
	VerifyWebhookSignature(signature string, payload []byte) bool
}

// InitializeRequest starts an inbound funding charge. Amount is in kobo,
// which is Paystack's native unit.
type InitializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type InitializeResponse struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
	Raw              models.Metadata
}

type VerifyResponse struct {
	Status string // "success", "failed", "abandoned", ...
	Amount int64  // in kobo
	Raw    models.Metadata
}

// AirtimeRequest and friends carry amounts in Naira: the bills API takes
// major units, so the kobo conversion happens at this boundary and nowhere
// else.
type AirtimeRequest struct {
	Phone    string `json:"phone"`
	Amount   int64  `json:"amount"`
	Provider string `json:"provider"`
}

type ElectricityRequest struct {
	MeterNumber string `json:"meter_number"`
	Amount      int64  `json:"amount"`
	Provider    string `json:"provider"`
	MeterType   string `json:"meter_type"`
}

type CableRequest struct {
	SmartcardNumber string `json:"smartcard_number"`
	Provider        string `json:"provider"`
	PackageCode     string `json:"package_code"`
}

type BillResponse struct {
	Reference string
	Token     string // electricity prepaid token, when issued
	Raw       models.Metadata
}

// APIError is returned for any non-success response or transport failure
// from the processor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("paystack: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("paystack: %s", e.Message)
}

// Config for the live client.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// Client is the HTTP implementation of Processor against the Paystack API.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	http          *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		http:          &http.Client{Timeout: timeout},
	}
}

// envelope is the standard Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (models.Metadata, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Message: err.Error()}
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[PAYSTACK] %s %s request failed: %v", method, path, err)
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Printf("[PAYSTACK] %s %s: failed to decode response: %v", method, path, err)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Printf("[PAYSTACK] %s %s returned error: %s (status %d)", method, path, msg, resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	data := models.Metadata{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid response data"}
		}
	}
	return data, nil
}

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", req)
	if err != nil {
		return nil, err
	}
	return &InitializeResponse{
		Reference:        stringField(data, "reference"),
		AuthorizationURL: stringField(data, "authorization_url"),
		AccessCode:       stringField(data, "access_code"),
		Raw:              data,
	}, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	data, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	return &VerifyResponse{
		Status: stringField(data, "status"),
		Amount: int64Field(data, "amount"),
		Raw:    data,
	}, nil
}

func (c *Client) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*BillResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/bills/airtime", req)
	if err != nil {
		return nil, err
	}
	return billResponse(data), nil
}

func (c *Client) PayElectricity(ctx context.Context, req ElectricityRequest) (*BillResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/bills/electricity", req)
	if err != nil {
		return nil, err
	}
	return billResponse(data), nil
}

func (c *Client) PayCable(ctx context.Context, req CableRequest) (*BillResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/bills/cable", req)
	if err != nil {
		return nil, err
	}
	return billResponse(data), nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 hex digest of the raw request body keyed with the webhook
// secret. Must be called on the raw bytes before any JSON decoding.
func (c *Client) VerifyWebhookSignature(signature string, payload []byte) bool {
	if signature == "" || len(payload) == 0 {
		return false
	}

	h := hmac.New(sha512.New, []byte(c.webhookSecret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func billResponse(data models.Metadata) *BillResponse {
	return &BillResponse{
		Reference: stringField(data, "reference"),
		Token:     stringField(data, "token"),
		Raw:       data,
	}
}

func stringField(m models.Metadata, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(m models.Metadata, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
