package models

import (
	"time"
)

// Transaction kinds
const (
	KindFunding     = "funding"
	KindAirtime     = "airtime"
	KindElectricity = "electricity"
	KindCable       = "cable"
)

// Transaction states. Transitions are monotone: pending -> successful,
// pending -> failed, and failed -> pending only via an audited admin retry.
const (
	StatusPending    = "pending"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// SpendKinds lists the outbound bill-payment kinds (everything but funding).
var SpendKinds = []string{KindAirtime, KindElectricity, KindCable}

// IsSpendKind reports whether t is a bill-payment kind.
func IsSpendKind(t string) bool {
	for _, k := range SpendKinds {
		if t == k {
			return true
		}
	}
	return false
}

// Transaction is one logged money-movement attempt between the internal
// wallet and the external processor.
type Transaction struct {
	ID        string    `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Amount    int64     `json:"amount" db:"amount"` // in kobo
	Status    string    `json:"status" db:"status"`
	Reference string    `json:"reference" db:"reference"`
	Metadata  Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BillPayment is the kind-specific detail attached 1:1 to a non-funding
// Transaction. Its status only moves in lockstep with the Transaction's.
type BillPayment struct {
	ID            string    `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	UserID        int       `json:"user_id" db:"user_id"`
	Type          string    `json:"type" db:"type"`
	CustomerID    string    `json:"customer_id" db:"customer_id"` // phone, meter or smartcard number
	Provider      string    `json:"provider" db:"provider"`
	Amount        int64     `json:"amount" db:"amount"`
	Status        string    `json:"status" db:"status"`
	Reference     string    `json:"reference" db:"reference"`
	ResponseData  Metadata  `json:"response_data,omitempty" db:"response_data"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
