package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couponapp/notifier/internal/db"
	"github.com/couponapp/notifier/internal/metrics"
)

// intent is one concrete notification to attempt: a user, a coupon, the lead
// time it matched, and the endpoints to fan out to.
type intent struct {
	userID        uuid.UUID
	coupon        *db.Coupon
	days          int
	category      string
	subscriptions []*db.PushSubscription
}

// planUser turns a user's eligible coupons into delivery intents by applying
// three filters in order: reminder preferences, subscription existence, and
// the sliding dedup window. Every drop here is silent; none of these are
// errors and none produce log entries.
func (j *Job) planUser(ctx context.Context, userID uuid.UUID, coupons []eligibleCoupon) []intent {
	prefs, err := j.store.GetReminderPreferences(ctx, userID)
	if err != nil {
		j.logger.Error("failed to load reminder preferences",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil
	}

	subs, err := j.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		j.logger.Error("failed to load push subscriptions",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil
	}
	if len(subs) == 0 {
		// Nothing to deliver to.
		j.logger.Debug("no push subscriptions", zap.String("user_id", userID.String()))
		return nil
	}

	since := time.Now().Add(-j.config.DedupWindow)

	var intents []intent
	for _, item := range coupons {
		if !prefs.EnabledFor(item.daysUntilExpiry) {
			continue
		}

		category := db.TypeForOffset(item.daysUntilExpiry)

		alreadySent, err := j.store.HasRecentNotification(ctx, item.coupon.ID, category, since)
		if err != nil {
			// A failed dedup lookup falls through to sending; a rare
			// duplicate beats a silently dropped reminder.
			j.logger.Error("dedup lookup failed",
				zap.String("coupon_id", item.coupon.ID.String()),
				zap.String("category", category),
				zap.Error(err),
			)
		}
		if alreadySent {
			j.logger.Debug("notification already sent in window",
				zap.String("coupon_id", item.coupon.ID.String()),
				zap.String("category", category),
			)
			metrics.RecordDedupSuppressed(category)
			continue
		}

		intents = append(intents, intent{
			userID:        userID,
			coupon:        item.coupon,
			days:          item.daysUntilExpiry,
			category:      category,
			subscriptions: subs,
		})
	}

	return intents
}
