package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSweepInProgress is returned when another sweep holds the guard.
var ErrSweepInProgress = errors.New("sweep already running")

const sweepLockKey = "classroom:lock:sweep"

// Locker guards a sweep across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ReportSink archives sweep reports.
type ReportSink interface {
	SaveSweepReport(ctx context.Context, report *SweepReport) error
}

// SweepFailure is one record the sweep could not fully process.
type SweepFailure struct {
	LessonFeeID uuid.UUID `json:"lesson_fee_id"`
	StudentID   uuid.UUID `json:"student_id"`
	Error       string    `json:"error"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Scanned    int            `json:"scanned"`
	Expired    int            `json:"expired"`
	Skipped    int            `json:"skipped"`
	Cleared    int64          `json:"cleared"`
	Failed     []SweepFailure `json:"failed,omitempty"`
}

// SweeperConfig controls scheduling.
type SweeperConfig struct {
	Interval      time.Duration
	AlignMidnight bool
	LockTTL       time.Duration
}

// Sweeper expires paid lesson fees whose term has elapsed and clears the matching student flags.
type Sweeper struct {
	store    Store
	cfg      SweeperConfig
	locker   Locker
	sink     ReportSink
	now      func() time.Time
	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store Store, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &Sweeper{
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// SetLocker sets the cross-process lock.
func (s *Sweeper) SetLocker(l Locker) { s.locker = l }

// SetReportSink sets where reports are archived.
func (s *Sweeper) SetReportSink(sink ReportSink) { s.sink = sink }

// Sweep runs one pass. It never overlaps another pass in this process, nor in any process sharing
// the locker.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return nil, ErrSweepInProgress
		}
		defer release()
	}

	report := &SweepReport{StartedAt: s.now()}
	fees, err := s.store.ListPaid(ctx)
	if err != nil {
		return nil, fmt.Errorf("list paid lesson fees: %w", err)
	}

	now := s.now()
	for _, lf := range fees {
		report.Scanned++
		if lf.Paid.Timestamp == nil {
			report.Skipped++
			continue
		}
		term, err := ParseTerm(lf.Duration)
		if err != nil {
			report.Skipped++
			s.logger.Warn("skipping lesson fee with unusable duration",
				zap.String("lesson_fee_id", lf.ID.String()),
				zap.String("duration", lf.Duration),
			)
			continue
		}
		if now.Before(term.ExpiresAt(*lf.Paid.Timestamp)) {
			continue
		}

		fail := func(err error) {
			report.Failed = append(report.Failed, SweepFailure{LessonFeeID: lf.ID, StudentID: lf.StudentID, Error: err.Error()})
		}
		if err := s.store.MarkExpired(ctx, lf.ID); err != nil {
			s.logger.Error("expire lesson fee", zap.String("lesson_fee_id", lf.ID.String()), zap.Error(err))
			fail(err)
			continue
		}
		report.Expired++

		cleared, err := s.store.ClearSubscription(ctx, lf.StudentID, lf.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Error("student not found for expired lesson fee",
				zap.String("student_id", lf.StudentID.String()),
				zap.String("lesson_fee_id", lf.ID.String()),
			)
			fail(fmt.Errorf("student %s: %w", lf.StudentID, err))
		case err != nil:
			s.logger.Error("clear subscription", zap.String("student_id", lf.StudentID.String()), zap.Error(err))
			fail(err)
		case cleared:
			report.Cleared++
		}
	}

	stale, err := s.store.ClearStaleSubscriptions(ctx)
	if err != nil {
		s.logger.Error("clear stale subscriptions", zap.Error(err))
	} else {
		report.Cleared += stale
	}

	report.FinishedAt = s.now()
	s.logger.Info("subscription sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("expired", report.Expired),
		zap.Int("skipped", report.Skipped),
		zap.Int64("cleared", report.Cleared),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	if s.sink != nil {
		if err := s.sink.SaveSweepReport(ctx, report); err != nil {
			s.logger.Warn("archive sweep report", zap.Error(err))
		}
	}
	return report, nil
}

// Start runs the sweep loop in the background until Stop or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting subscription sweeper", zap.Duration("interval", s.cfg.Interval), zap.Bool("align_midnight", s.cfg.AlignMidnight))
	go s.run(ctx)
}

// Stop ends the loop started by Start. Later calls do nothing.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping subscription sweeper")
		close(s.stopChan)
	})
}

func (s *Sweeper) run(ctx context.Context) {
	first := s.cfg.Interval
	if s.cfg.AlignMidnight {
		first = untilNextMidnight(s.now())
	}
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("subscription sweep failed", zap.Error(err))
			}
			timer.Reset(s.cfg.Interval)
		case <-s.stopChan:
			s.logger.Info("Subscription sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Subscription sweeper cancelled")
			return
		}
	}
}

// untilNextMidnight returns the wait until 00:00 of the next day in t's location.
func untilNextMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	return next.Sub(t)
}
