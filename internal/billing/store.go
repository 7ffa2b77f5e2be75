package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yare-hub/classroom/internal/models"
)

// ErrNotFound is returned when a lesson fee or student does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence used by the ledger and the sweeper. SetSubscription and ClearSubscription
// are the only writers of a student's subscription flags.
type Store interface {
	CreateLessonFees(ctx context.Context, fees []*models.LessonFee) error
	ListByReference(ctx context.Context, reference string) ([]*models.LessonFee, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.LessonFee, error)
	ListAll(ctx context.Context) ([]*models.LessonFee, error)
	ListPaid(ctx context.Context) ([]*models.LessonFee, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paid models.PaidInfo, expiresAt *time.Time, expired bool) error
	MarkExpired(ctx context.Context, id uuid.UUID) error

	GetSubscription(ctx context.Context, studentID uuid.UUID) (*models.Subscription, error)
	// SetSubscription marks the student subscribed and paid through lessonFeeID.
	SetSubscription(ctx context.Context, studentID, lessonFeeID uuid.UUID) error
	// ClearSubscription clears the flags only while the student still points at lessonFeeID.
	// cleared is false when a newer fee has replaced it.
	ClearSubscription(ctx context.Context, studentID, lessonFeeID uuid.UUID) (cleared bool, err error)
	// ClearStaleSubscriptions clears every student still pointing at an expired fee.
	ClearStaleSubscriptions(ctx context.Context) (int64, error)
}
