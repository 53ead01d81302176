package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/billvault/backend/internal/paystack"
)

// MockProcessor is a testify mock of the paystack.Processor interface.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.InitializeResponse), args.Error(1)
}

func (m *MockProcessor) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.VerifyResponse), args.Error(1)
}

func (m *MockProcessor) PurchaseAirtime(ctx context.Context, req paystack.AirtimeRequest) (*paystack.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.BillResponse), args.Error(1)
}

func (m *MockProcessor) PayElectricity(ctx context.Context, req paystack.ElectricityRequest) (*paystack.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.BillResponse), args.Error(1)
}

func (m *MockProcessor) PayCable(ctx context.Context, req paystack.CableRequest) (*paystack.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.BillResponse), args.Error(1)
}

func (m *MockProcessor) VerifyWebhookSignature(signature string, payload []byte) bool {
	args := m.Called(signature, payload)
	return args.Bool(0)
}
