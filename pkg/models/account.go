package models

import "time"

// WalletBalance represents a user's balance in a single currency.
type WalletBalance struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Currency  string    `json:"currency" db:"currency"`
	Amount    float64   `json:"amount" db:"amount"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Trade side values.
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade represents an executed trade.
type Trade struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"`
	Amount    float64   `json:"amount" db:"amount"`
	Price     float64   `json:"price" db:"price"`
	Total     float64   `json:"total" db:"total"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// KYC status values.
const (
	KYCStatusPending  = "pending"
	KYCStatusApproved = "approved"
	KYCStatusRejected = "rejected"
)

// KYCRecord represents a user's identity verification submission.
type KYCRecord struct {
	ID          int        `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	FullName    string     `json:"full_name" db:"full_name"`
	Country     string     `json:"country" db:"country"`
	DocumentRef string     `json:"document_ref" db:"document_ref"`
	Status      string     `json:"status" db:"status"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// Notification represents a user-facing event pushed over NATS and the
// websocket endpoint.
type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Kind      string    `json:"kind" db:"kind"`
	Payload   string    `json:"payload" db:"payload"`
	Read      bool      `json:"read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
