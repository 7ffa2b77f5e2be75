package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentServicePaystack is the only payment service in use.
const PaymentServicePaystack = "paystack"

// PaidInfo records how and when a lesson fee was paid.
type PaidInfo struct {
	IsPaid    bool            `json:"is_paid"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Method    string          `json:"payment_method,omitempty"`
	Service   string          `json:"payment_service,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// LessonFee is one subscription charge for one student. Records are never deleted.
type LessonFee struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   uuid.UUID  `json:"student_id"`
	PayerID     uuid.UUID  `json:"payer_id"`
	PayerType   Role       `json:"payer_type"`
	PlanName    string     `json:"plan_name"`
	Duration    string     `json:"duration"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Reference   string     `json:"reference"`
	Paid        PaidInfo   `json:"paid"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
