package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/internal/models"
)

var (
	// ErrInvalidCharge is returned for an incomplete checkout request.
	ErrInvalidCharge = errors.New("invalid charge request")
	// ErrInvalidReference is returned when no payment reference is supplied.
	ErrInvalidReference = errors.New("payment reference required")
	// ErrPaymentNotSuccessful is returned when the provider has not settled the transaction.
	ErrPaymentNotSuccessful = errors.New("payment not successful")
)

// ChargeRequest is one checkout covering one or more students.
type ChargeRequest struct {
	PayerID     uuid.UUID
	PayerType   models.Role
	PayerEmail  string
	StudentIDs  []uuid.UUID
	PlanName    string
	Duration    string
	AmountCents int64 // per student
	Currency    string
}

// Charge is the result of CreateCharge.
type Charge struct {
	Reference    string      `json:"reference"`
	CheckoutURL  string      `json:"checkout_url"`
	LessonFeeIDs []uuid.UUID `json:"lesson_fee_ids"`
}

// Confirmation is the result of ConfirmPayment.
type Confirmation struct {
	Reference  string              `json:"reference"`
	LessonFees []*models.LessonFee `json:"lesson_fees"`
	Activated  int                 `json:"activated"`
}

// PaymentConfirmed is handed to the Notifier after a successful confirmation.
type PaymentConfirmed struct {
	Reference    string
	Email        string
	CustomerName string
	PaidAt       time.Time
	LessonFees   []*models.LessonFee
}

// Notifier sends the payment confirmation. Failures never affect the ledger.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, evt PaymentConfirmed) error
}

// Ledger owns lesson fee checkout and confirmation.
type Ledger struct {
	store       Store
	provider    Provider
	notifier    Notifier
	frontendURL string
	currency    string
	now         func() time.Time
	logger      *zap.Logger
}

// NewLedger creates a ledger. notifier may be nil.
func NewLedger(store Store, provider Provider, notifier Notifier, frontendURL, currency string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "NGN"
	}
	return &Ledger{
		store:       store,
		provider:    provider,
		notifier:    notifier,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		currency:    currency,
		now:         time.Now,
		logger:      logger,
	}
}

func (r ChargeRequest) validate() error {
	var missing []string
	if r.PayerID == uuid.Nil {
		missing = append(missing, "payer")
	}
	if strings.TrimSpace(r.PayerEmail) == "" {
		missing = append(missing, "email")
	}
	if len(r.StudentIDs) == 0 {
		missing = append(missing, "student_ids")
	}
	if strings.TrimSpace(r.PlanName) == "" {
		missing = append(missing, "plan_name")
	}
	if r.AmountCents <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidCharge, strings.Join(missing, ", "))
	}
	if _, err := ParseTerm(r.Duration); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCharge, err)
	}
	for _, id := range r.StudentIDs {
		if id == uuid.Nil {
			return fmt.Errorf("%w: empty student id", ErrInvalidCharge)
		}
	}
	return nil
}

// CreateCharge records one unpaid lesson fee per student under a shared reference and starts a
// checkout with the provider for the total. The records are kept when the provider call fails.
func (l *Ledger) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = l.currency
	}
	reference := newReference(l.now())

	fees := make([]*models.LessonFee, 0, len(req.StudentIDs))
	ids := make([]uuid.UUID, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		lf := &models.LessonFee{
			ID:          uuid.New(),
			StudentID:   studentID,
			PayerID:     req.PayerID,
			PayerType:   req.PayerType,
			PlanName:    strings.TrimSpace(req.PlanName),
			Duration:    strings.TrimSpace(req.Duration),
			AmountCents: req.AmountCents,
			Currency:    currency,
			Reference:   reference,
		}
		fees = append(fees, lf)
		ids = append(ids, lf.ID)
	}
	if err := l.store.CreateLessonFees(ctx, fees); err != nil {
		return nil, fmt.Errorf("create lesson fees: %w", err)
	}

	checkout, err := l.provider.Initialize(ctx, InitializeRequest{
		Email:       req.PayerEmail,
		AmountCents: req.AmountCents * int64(len(fees)),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: l.callbackURL(reference),
		Metadata: map[string]interface{}{
			"payer_id":       req.PayerID.String(),
			"lesson_fee_ids": ids,
		},
	})
	if err != nil {
		l.logger.Error("payment initialization failed", zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("initialize payment: %w", err)
	}

	l.logger.Info("checkout created",
		zap.String("reference", reference),
		zap.String("payer_id", req.PayerID.String()),
		zap.Int("students", len(fees)),
	)
	return &Charge{Reference: reference, CheckoutURL: checkout.AuthorizationURL, LessonFeeIDs: ids}, nil
}

// ConfirmPayment verifies reference with the provider and activates every record of the checkout.
// Records already paid are left alone, so re-confirming only resends the confirmation email and
// never points a student back at an older record after a renewal.
func (l *Ledger) ConfirmPayment(ctx context.Context, reference string) (*Confirmation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}
	v, err := l.provider.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if !v.Successful() {
		l.logger.Info("payment not successful", zap.String("reference", reference), zap.String("status", v.Status))
		return nil, ErrPaymentNotSuccessful
	}

	fees, err := l.store.ListByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("list lesson fees: %w", err)
	}
	if len(fees) == 0 {
		return nil, ErrNotFound
	}

	now := l.now()
	paidAt := now
	if v.PaidAt != nil {
		paidAt = *v.PaidAt
	}
	out := &Confirmation{Reference: reference, LessonFees: fees}
	for _, lf := range fees {
		if lf.Expired {
			l.logger.Debug("skipping expired lesson fee", zap.String("lesson_fee_id", lf.ID.String()))
			continue
		}
		if lf.Paid.IsPaid {
			continue
		}

		var expiresAt *time.Time
		expired := false
		if term, err := ParseTerm(lf.Duration); err == nil {
			t := term.ExpiresAt(paidAt)
			expiresAt = &t
			expired = !now.Before(t)
		} else {
			l.logger.Warn("lesson fee has no usable duration", zap.String("lesson_fee_id", lf.ID.String()), zap.Error(err))
		}

		ts := paidAt
		paid := models.PaidInfo{
			IsPaid:    !expired,
			Timestamp: &ts,
			Method:    v.Channel,
			Service:   models.PaymentServicePaystack,
			Details:   v.Raw,
		}
		if err := l.store.MarkPaid(ctx, lf.ID, paid, expiresAt, expired); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("mark lesson fee %s paid: %w", lf.ID, err)
		}
		lf.Paid = paid
		lf.ExpiresAt = expiresAt
		lf.Expired = expired
		if expired {
			continue
		}

		if err := l.store.SetSubscription(ctx, lf.StudentID, lf.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				l.logger.Warn("student not found for lesson fee",
					zap.String("student_id", lf.StudentID.String()),
					zap.String("lesson_fee_id", lf.ID.String()),
				)
				continue
			}
			return nil, fmt.Errorf("activate subscription for student %s: %w", lf.StudentID, err)
		}
		out.Activated++
	}

	l.logger.Info("payment confirmed", zap.String("reference", reference), zap.Int("activated", out.Activated))
	if l.notifier != nil && v.CustomerEmail != "" {
		evt := PaymentConfirmed{Reference: reference, Email: v.CustomerEmail, CustomerName: v.CustomerName, PaidAt: paidAt, LessonFees: fees}
		if err := l.notifier.PaymentConfirmed(ctx, evt); err != nil {
			l.logger.Warn("payment confirmation email not queued", zap.String("reference", reference), zap.Error(err))
		}
	}
	return out, nil
}

// History lists a payer's lesson fees, or every lesson fee when all is set.
func (l *Ledger) History(ctx context.Context, payerID uuid.UUID, all bool) ([]*models.LessonFee, error) {
	if all {
		return l.store.ListAll(ctx)
	}
	return l.store.ListByPayer(ctx, payerID)
}

// Subscription returns a student's subscription flags.
func (l *Ledger) Subscription(ctx context.Context, studentID uuid.UUID) (*models.Subscription, error) {
	return l.store.GetSubscription(ctx, studentID)
}

func (l *Ledger) callbackURL(reference string) string {
	return l.frontendURL + "/verify-payments?trxref=" + url.QueryEscape(reference)
}

func newReference(now time.Time) string {
	return fmt.Sprintf("yare_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
