package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couponapp/notifier/internal/db"
)

// openLog creates the log entry for an intent before delivery, optimistically
// marked sent so its id can be embedded in the outbound payload for click
// tracking. Logging is best-effort: on failure delivery still proceeds, it
// just loses the click linkage, and uuid.Nil is returned.
func (j *Job) openLog(ctx context.Context, in intent) uuid.UUID {
	entry := &db.NotificationLog{
		UserID:           in.userID,
		CouponID:         in.coupon.ID,
		NotificationType: in.category,
		Status:           db.StatusSent,
	}

	if err := j.store.CreateNotificationLog(ctx, entry); err != nil {
		j.logger.Error("failed to create notification log",
			zap.String("coupon_id", in.coupon.ID.String()),
			zap.String("category", in.category),
			zap.Error(err),
		)
		return uuid.Nil
	}

	return entry.ID
}

// closeLog corrects the optimistic status after delivery completes. Entries
// stay sent when at least one endpoint succeeded; otherwise they flip to
// failed. No entry, nothing to correct.
func (j *Job) closeLog(ctx context.Context, logID uuid.UUID, delivered bool) {
	if logID == uuid.Nil || delivered {
		return
	}

	if err := j.store.UpdateNotificationLogStatus(ctx, logID, db.StatusFailed); err != nil {
		j.logger.Error("failed to mark notification log failed",
			zap.String("log_id", logID.String()),
			zap.Error(err),
		)
	}
}
