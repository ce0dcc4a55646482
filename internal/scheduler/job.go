// Package scheduler implements the expiry-notification job: scan coupons
// approaching expiry, plan which users get reminded at which lead times,
// deliver Web Push messages, and record outcomes in the notification log.
//
// The job is stateless between runs; all durable state lives in the store.
// Safety against overlapping runs comes from the sliding dedup window on the
// notification log, not from any in-process locking.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/couponapp/notifier/internal/db"
	"github.com/couponapp/notifier/internal/metrics"
	"github.com/couponapp/notifier/internal/push"
)

// Store is everything the job needs from the database. The coupon and
// preference tables are read-only; push subscriptions may only be deleted
// when the push service confirms the endpoint is dead.
type Store interface {
	CouponsExpiringOn(ctx context.Context, daysAhead int) ([]*db.Coupon, error)
	GetReminderPreferences(ctx context.Context, userID uuid.UUID) (*db.ReminderPreferences, error)
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]*db.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
	HasRecentNotification(ctx context.Context, couponID uuid.UUID, notificationType string, since time.Time) (bool, error)
	CreateNotificationLog(ctx context.Context, entry *db.NotificationLog) error
	UpdateNotificationLogStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Config controls the job's offsets and windows.
type Config struct {
	// Offsets are the reminder lead times in days.
	Offsets []int
	// DedupWindow is how far back the log is checked before re-notifying a
	// (coupon, lead time) pair. Must stay wider than the trigger cadence.
	DedupWindow time.Duration
	// AppURL is the base URL opened when a notification is clicked.
	AppURL string
	// MaxConcurrentUsers bounds the per-user fan-out.
	MaxConcurrentUsers int
}

// Job runs one notification cycle per call to Run.
type Job struct {
	store  Store
	sender push.Sender
	config Config
	logger *zap.Logger
}

// Summary reports what one run did, for operational visibility only.
type Summary struct {
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Pruned   int `json:"pruned"`
}

func New(store Store, sender push.Sender, cfg Config, logger *zap.Logger) *Job {

	if len(cfg.Offsets) == 0 {
		cfg.Offsets = []int{7, 3, 1}
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if cfg.MaxConcurrentUsers == 0 {
		cfg.MaxConcurrentUsers = 8
	}

	return &Job{
		store:  store,
		sender: sender,
		config: cfg,
		logger: logger,
	}
}

// Run executes one notification cycle. It returns an error only when the
// store is unreachable for every offset; partial failures degrade to smaller
// result sets and are reflected in the summary and the log.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	j.logger.Info("starting notification job", zap.Ints("offsets", j.config.Offsets))

	eligible, err := j.scanEligible(ctx)
	if err != nil {
		metrics.RecordJobRun("error", time.Since(start))
		return nil, err
	}

	summary := &Summary{Eligible: len(eligible)}
	if len(eligible) == 0 {
		j.logger.Info("no coupons expiring soon")
		metrics.RecordJobRun("ok", time.Since(start))
		return summary, nil
	}

	// Group by user so preferences and subscriptions are fetched once per
	// user rather than once per coupon.
	byUser := make(map[uuid.UUID][]eligibleCoupon)
	for _, item := range eligible {
		byUser[item.coupon.UserID] = append(byUser[item.coupon.UserID], item)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.MaxConcurrentUsers)

	for userID, coupons := range byUser {
		userID, coupons := userID, coupons
		g.Go(func() error {
			intents := j.planUser(gctx, userID, coupons)

			for _, in := range intents {
				if gctx.Err() != nil {
					// Timed out; un-started intents are picked up next run.
					return nil
				}

				logID := j.openLog(gctx, in)
				result := j.deliver(gctx, in, logID)
				j.closeLog(gctx, logID, result.delivered)

				mu.Lock()
				if result.delivered {
					summary.Sent++
				} else {
					summary.Failed++
				}
				summary.Pruned += result.pruned
				mu.Unlock()
			}
			return nil
		})
	}

	// Worker funcs isolate their own failures and never return an error.
	_ = g.Wait()

	j.logger.Info("notification job complete",
		zap.Int("eligible", summary.Eligible),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("pruned_subscriptions", summary.Pruned),
		zap.Duration("duration", time.Since(start)),
	)
	metrics.RecordJobRun("ok", time.Since(start))
	metrics.RecordNotifications(summary.Sent, summary.Failed)

	return summary, nil
}
