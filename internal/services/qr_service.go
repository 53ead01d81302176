package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// QRService renders a funding checkout hand-off as a scannable QR image,
// so a second device (POS screen, kiosk) can open the processor's
// authorization page. Records expire alongside the checkout session.
type QRService struct {
	redis *redis.Client
}

func NewQRService(redis *redis.Client) *QRService {
	return &QRService{redis: redis}
}

// FundingHandoff is the QR payload resolved back from a scan.
type FundingHandoff struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	Amount           int64  `json:"amount"`
	CreatedAt        int64  `json:"createdAt"`
}

// GenerateFundingQR encodes the checkout authorization URL as a QR PNG
// and records the hand-off under the funding reference for later lookup.
// Returns the base64 PNG. Degrades to image-only when Redis is absent.
func (s *QRService) GenerateFundingQR(ctx context.Context, reference, authorizationURL string, amount int64) (string, error) {
	handoff := FundingHandoff{
		Reference:        reference,
		AuthorizationURL: authorizationURL,
		Amount:           amount,
		CreatedAt:        time.Now().Unix(),
	}

	if s.redis != nil {
		jsonData, err := json.Marshal(handoff)
		if err != nil {
			return "", err
		}
		key := fmt.Sprintf("qr:funding:%s", reference)
		if err := s.redis.Set(ctx, key, jsonData, 30*time.Minute).Err(); err != nil {
			return "", err
		}
	}

	qr, err := qrcode.New(authorizationURL, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveFundingQR looks up a previously issued hand-off by reference.
func (s *QRService) ResolveFundingQR(ctx context.Context, reference string) (*FundingHandoff, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}

	key := fmt.Sprintf("qr:funding:%s", reference)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	handoff := &FundingHandoff{}
	if err := json.Unmarshal(data, handoff); err != nil {
		return nil, err
	}

	return handoff, nil
}
