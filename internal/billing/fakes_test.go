package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yare-hub/classroom/internal/models"
)

// memStore is an in-memory Store mirroring the SQL semantics of Repository.
type memStore struct {
	mu       sync.Mutex
	fees     map[uuid.UUID]*models.LessonFee
	order    []uuid.UUID
	students map[uuid.UUID]*models.Subscription

	listErr   error
	listHook  func() // runs inside ListPaid without the lock
	setCalls  int
	markCalls int
}

func newMemStore() *memStore {
	return &memStore{fees: map[uuid.UUID]*models.LessonFee{}, students: map[uuid.UUID]*models.Subscription{}}
}

func (m *memStore) addStudent(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = &models.Subscription{StudentID: id}
}

func (m *memStore) deleteStudent(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.students, id)
}

// addPaid inserts a record already paid at paidAt.
func (m *memStore) addPaid(studentID uuid.UUID, duration string, paidAt time.Time) *models.LessonFee {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := paidAt
	lf := &models.LessonFee{
		ID:        uuid.New(),
		StudentID: studentID,
		Duration:  duration,
		Reference: "ref-" + studentID.String(),
		Paid:      models.PaidInfo{IsPaid: true, Timestamp: &ts, Service: models.PaymentServicePaystack},
	}
	m.fees[lf.ID] = lf
	m.order = append(m.order, lf.ID)
	if s, ok := m.students[studentID]; ok {
		id := lf.ID
		s.IsSubscribed, s.IsPaid, s.LessonFeeID = true, true, &id
	}
	return lf
}

func (m *memStore) fee(id uuid.UUID) models.LessonFee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.fees[id]
}

func (m *memStore) student(id uuid.UUID) models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.students[id]
}

func (m *memStore) CreateLessonFees(_ context.Context, fees []*models.LessonFee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lf := range fees {
		cp := *lf
		cp.CreatedAt = time.Now()
		m.fees[lf.ID] = &cp
		m.order = append(m.order, lf.ID)
	}
	return nil
}

func (m *memStore) filter(keep func(*models.LessonFee) bool) []*models.LessonFee {
	var out []*models.LessonFee
	for _, id := range m.order {
		if lf := m.fees[id]; keep(lf) {
			cp := *lf
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memStore) ListByReference(_ context.Context, reference string) ([]*models.LessonFee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(lf *models.LessonFee) bool { return lf.Reference == reference }), nil
}

func (m *memStore) ListByPayer(_ context.Context, payerID uuid.UUID) ([]*models.LessonFee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(lf *models.LessonFee) bool { return lf.PayerID == payerID }), nil
}

func (m *memStore) ListAll(_ context.Context) ([]*models.LessonFee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(*models.LessonFee) bool { return true }), nil
}

func (m *memStore) ListPaid(_ context.Context) ([]*models.LessonFee, error) {
	if m.listHook != nil {
		m.listHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.filter(func(lf *models.LessonFee) bool { return lf.Paid.IsPaid }), nil
}

func (m *memStore) MarkPaid(_ context.Context, id uuid.UUID, paid models.PaidInfo, expiresAt *time.Time, expired bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	lf, ok := m.fees[id]
	if !ok || lf.Expired {
		return ErrNotFound
	}
	lf.Paid, lf.ExpiresAt, lf.Expired = paid, expiresAt, expired
	return nil
}

func (m *memStore) MarkExpired(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lf, ok := m.fees[id]
	if !ok {
		return ErrNotFound
	}
	lf.Paid.IsPaid, lf.Expired = false, true
	return nil
}

func (m *memStore) GetSubscription(_ context.Context, studentID uuid.UUID) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SetSubscription(_ context.Context, studentID, lessonFeeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	s, ok := m.students[studentID]
	if !ok {
		return ErrNotFound
	}
	id := lessonFeeID
	s.IsSubscribed, s.IsPaid, s.LessonFeeID = true, true, &id
	return nil
}

func (m *memStore) ClearSubscription(_ context.Context, studentID, lessonFeeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return false, ErrNotFound
	}
	if s.LessonFeeID == nil || *s.LessonFeeID != lessonFeeID {
		return false, nil
	}
	s.IsSubscribed, s.IsPaid, s.LessonFeeID = false, false, nil
	return true, nil
}

func (m *memStore) ClearStaleSubscriptions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.students {
		if s.LessonFeeID == nil {
			continue
		}
		if lf, ok := m.fees[*s.LessonFeeID]; ok && lf.Expired {
			s.IsSubscribed, s.IsPaid, s.LessonFeeID = false, false, nil
			n++
		}
	}
	return n, nil
}

// fakeProvider records initialize calls and answers verify from a fixed result.
type fakeProvider struct {
	mu         sync.Mutex
	initCalls  []InitializeRequest
	initErr    error
	verify     *Verification
	verifyErr  error
	verifyRefs []string
}

func (p *fakeProvider) Initialize(_ context.Context, req InitializeRequest) (*InitializeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initCalls = append(p.initCalls, req)
	if p.initErr != nil {
		return nil, p.initErr
	}
	return &InitializeResult{AuthorizationURL: "https://checkout.example/" + req.Reference, Reference: req.Reference}, nil
}

func (p *fakeProvider) Verify(_ context.Context, reference string) (*Verification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyRefs = append(p.verifyRefs, reference)
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	v := *p.verify
	v.Reference = reference
	return &v, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []PaymentConfirmed
	err    error
}

func (n *fakeNotifier) PaymentConfirmed(_ context.Context, evt PaymentConfirmed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

var errBoom = errors.New("boom")

// fixedClock returns a controllable now func.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
