package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yare-hub/classroom/internal/models"
)

// Repository handles lesson_fees persistence and the student subscription columns.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lessonFeeColumns = `id, student_id, payer_id, payer_type, plan_name, duration, amount_cents, currency, reference,
	is_paid, paid_at, payment_method, payment_service, payment_details, expires_at, expired, created_at, updated_at`

func scanLessonFee(row pgx.Row) (*models.LessonFee, error) {
	var lf models.LessonFee
	var payerType string
	var method, service *string
	var details []byte
	if err := row.Scan(&lf.ID, &lf.StudentID, &lf.PayerID, &payerType, &lf.PlanName, &lf.Duration, &lf.AmountCents,
		&lf.Currency, &lf.Reference, &lf.Paid.IsPaid, &lf.Paid.Timestamp, &method, &service, &details,
		&lf.ExpiresAt, &lf.Expired, &lf.CreatedAt, &lf.UpdatedAt); err != nil {
		return nil, err
	}
	lf.PayerType = models.Role(payerType)
	if method != nil {
		lf.Paid.Method = *method
	}
	if service != nil {
		lf.Paid.Service = *service
	}
	if len(details) > 0 {
		lf.Paid.Details = details
	}
	return &lf, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]*models.LessonFee, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LessonFee
	for rows.Next() {
		lf, err := scanLessonFee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, lf)
	}
	return list, rows.Err()
}

// CreateLessonFees inserts unpaid records in one batch.
func (r *Repository) CreateLessonFees(ctx context.Context, fees []*models.LessonFee) error {
	const q = `INSERT INTO lesson_fees (id, student_id, payer_id, payer_type, plan_name, duration, amount_cents, currency, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	batch := &pgx.Batch{}
	for _, lf := range fees {
		if lf.ID == uuid.Nil {
			lf.ID = uuid.New()
		}
		batch.Queue(q, lf.ID, lf.StudentID, lf.PayerID, string(lf.PayerType), lf.PlanName, lf.Duration, lf.AmountCents, lf.Currency, lf.Reference)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, lf := range fees {
		if err := br.QueryRow().Scan(&lf.CreatedAt, &lf.UpdatedAt); err != nil {
			return fmt.Errorf("insert lesson fee: %w", err)
		}
	}
	return nil
}

// ListByReference returns the records of one checkout.
func (r *Repository) ListByReference(ctx context.Context, reference string) ([]*models.LessonFee, error) {
	return r.list(ctx, `SELECT `+lessonFeeColumns+` FROM lesson_fees WHERE reference = $1 ORDER BY created_at`, reference)
}

// ListByPayer returns a payer's records, newest first.
func (r *Repository) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.LessonFee, error) {
	return r.list(ctx, `SELECT `+lessonFeeColumns+` FROM lesson_fees WHERE payer_id = $1 ORDER BY created_at DESC`, payerID)
}

// ListAll returns every record, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]*models.LessonFee, error) {
	return r.list(ctx, `SELECT `+lessonFeeColumns+` FROM lesson_fees ORDER BY created_at DESC`)
}

// ListPaid returns records currently marked paid.
func (r *Repository) ListPaid(ctx context.Context) ([]*models.LessonFee, error) {
	return r.list(ctx, `SELECT `+lessonFeeColumns+` FROM lesson_fees WHERE is_paid = TRUE ORDER BY paid_at`)
}

// MarkPaid writes the whole paid sub-record and expiry in one statement. Expired rows are not touched.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, paid models.PaidInfo, expiresAt *time.Time, expired bool) error {
	const q = `UPDATE lesson_fees
		SET is_paid = $2, paid_at = $3, payment_method = $4, payment_service = $5, payment_details = $6,
			expires_at = $7, expired = $8, updated_at = NOW()
		WHERE id = $1 AND expired = FALSE`
	var details []byte
	if len(paid.Details) > 0 {
		details = paid.Details
	}
	tag, err := r.pool.Exec(ctx, q, id, paid.IsPaid, paid.Timestamp, paid.Method, paid.Service, details, expiresAt, expired)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkExpired flips a paid record to expired and unpaid.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE lesson_fees SET is_paid = FALSE, expired = TRUE, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscription returns the subscription flags of a student.
func (r *Repository) GetSubscription(ctx context.Context, studentID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT id, is_subscribed, is_paid, lesson_fee_id FROM students WHERE id = $1`
	var s models.Subscription
	err := r.pool.QueryRow(ctx, q, studentID).Scan(&s.StudentID, &s.IsSubscribed, &s.IsPaid, &s.LessonFeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSubscription marks the student subscribed through lessonFeeID.
func (r *Repository) SetSubscription(ctx context.Context, studentID, lessonFeeID uuid.UUID) error {
	const q = `UPDATE students SET is_subscribed = TRUE, is_paid = TRUE, lesson_fee_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, studentID, lessonFeeID)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSubscription clears the flags while the student still points at lessonFeeID.
func (r *Repository) ClearSubscription(ctx context.Context, studentID, lessonFeeID uuid.UUID) (bool, error) {
	const q = `UPDATE students SET is_subscribed = FALSE, is_paid = FALSE, lesson_fee_id = NULL, updated_at = NOW()
		WHERE id = $1 AND lesson_fee_id = $2`
	tag, err := r.pool.Exec(ctx, q, studentID, lessonFeeID)
	if err != nil {
		return false, fmt.Errorf("clear subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// ClearStaleSubscriptions clears students whose current lesson fee has already expired.
func (r *Repository) ClearStaleSubscriptions(ctx context.Context) (int64, error) {
	const q = `UPDATE students s
		SET is_subscribed = FALSE, is_paid = FALSE, lesson_fee_id = NULL, updated_at = NOW()
		FROM lesson_fees lf
		WHERE s.lesson_fee_id = lf.id AND lf.expired = TRUE`
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("clear stale subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}
