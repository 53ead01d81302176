package models

import "time"

type User struct {
	ID          int        `json:"id" example:"1"`                       // User ID
	Email       string     `json:"email" example:"user@example.com"`     // User email
	FullName    string     `json:"fullName" example:"John Doe"`          // User full name
	PhoneNumber string     `json:"phoneNumber" example:"+2348012345678"` // User phone number
	Role        string     `json:"role" example:"user"`                  // user or admin
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UserWithBalance decorates a user with their wallet balance for admin listings.
type UserWithBalance struct {
	User
	WalletBalance int64 `json:"walletBalance"`
}
