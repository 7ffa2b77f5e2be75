// Package app wires the background jobs shared by the API process and the worker binary.
package app

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/config"
	"github.com/yare-hub/classroom/internal/billing"
	"github.com/yare-hub/classroom/internal/emaillogs"
	"github.com/yare-hub/classroom/internal/notify"
	"github.com/yare-hub/classroom/internal/worker"
	"github.com/yare-hub/classroom/pkg/queue"
	"github.com/yare-hub/classroom/pkg/redis"
	"github.com/yare-hub/classroom/pkg/storage"
)

// NewMailer picks SendGrid when an API key is configured and the console mailer otherwise.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) notify.Mailer {
	if cfg.APIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set, emails are logged instead of sent")
		return notify.NewConsoleMailer(logger)
	}
	return notify.NewSendGridMailer(cfg.APIKey, cfg.FromName, cfg.FromAddress, "")
}

// NewNotifier returns the payment confirmation notifier, or nil when there is no queue to feed.
func NewNotifier(pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) billing.Notifier {
	if rdb == nil {
		logger.Warn("redis disabled, payment confirmation emails are off")
		return nil
	}
	return notify.NewService(emaillogs.NewRepository(pool), queue.NewQueue(rdb.Client, logger), logger)
}

// Jobs runs the email worker and the expiry sweeper.
type Jobs struct {
	processor *worker.EmailProcessor
	sweeper   *billing.Sweeper
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// NewJobs builds the background jobs. rdb may be nil: the sweeper then runs without the shared lock
// and no email worker is started.
func NewJobs(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *Jobs {
	j := &Jobs{logger: logger}

	j.sweeper = billing.NewSweeper(billing.NewRepository(pool), billing.SweeperConfig{
		Interval:      cfg.Sweeper.Interval,
		AlignMidnight: cfg.Sweeper.AlignMidnight,
		LockTTL:       cfg.Sweeper.LockTTL,
	}, logger)
	if rdb != nil {
		j.sweeper.SetLocker(rdb)
	}
	if cfg.AWS.ReportsBucket != "" {
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.ReportsBucket,
		}, logger)
		if err != nil {
			logger.Warn("sweep report archive disabled", zap.Error(err))
		} else {
			j.sweeper.SetReportSink(billing.NewArchiveSink(s3))
		}
	}

	if rdb != nil {
		j.processor = worker.NewEmailProcessor(NewMailer(cfg.Email, logger), emaillogs.NewRepository(pool), queue.NewQueue(rdb.Client, logger), logger)
	}
	return j
}

// Start launches every job. Call Stop to end them.
func (j *Jobs) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.sweeper.Start(ctx)
	if j.processor != nil {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			j.processor.Run(ctx)
		}()
		j.logger.Info("email worker started")
	}
}

// SweepNow runs one sweep immediately, honoring the shared lock.
func (j *Jobs) SweepNow(ctx context.Context) (*billing.SweepReport, error) {
	return j.sweeper.Sweep(ctx)
}

// Stop ends the jobs and waits for the email worker to return. Safe to call more than once.
func (j *Jobs) Stop() {
	if j.cancel == nil {
		return
	}
	j.sweeper.Stop()
	j.cancel()
	j.cancel = nil
	j.wg.Wait()
	j.logger.Info("background jobs stopped")
}
