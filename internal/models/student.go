package models

import (
	"time"

	"github.com/google/uuid"
)

// Student is a learner account. The subscription columns mirror the latest lesson fee outcome.
type Student struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email,omitempty"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	IsSubscribed bool       `json:"is_subscribed"`
	IsPaid       bool       `json:"is_paid"`
	LessonFeeID  *uuid.UUID `json:"lesson_fee_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Subscription is the read view of a student's subscription flags.
type Subscription struct {
	StudentID    uuid.UUID  `json:"student_id"`
	IsSubscribed bool       `json:"is_subscribed"`
	IsPaid       bool       `json:"is_paid"`
	LessonFeeID  *uuid.UUID `json:"lesson_fee_id,omitempty"`
}
