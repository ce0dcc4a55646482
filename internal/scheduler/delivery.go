package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/couponapp/notifier/internal/metrics"
	"github.com/couponapp/notifier/internal/push"
)

type deliveryResult struct {
	delivered bool // at least one endpoint accepted the push
	pruned    int  // subscriptions deleted because the push service reported them gone
}

// deliver fans the intent out to every subscription concurrently. Endpoint
// attempts are independent: one failure never aborts the others. Endpoints
// the push service reports as gone are pruned on the spot; transient
// failures leave the subscription for the next run to retry naturally.
func (j *Job) deliver(ctx context.Context, in intent, logID uuid.UUID) deliveryResult {
	payload := j.buildPayload(in, logID)

	var (
		mu     sync.Mutex
		result deliveryResult
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, sub := range in.subscriptions {
		sub := sub
		g.Go(func() error {
			outcome, err := j.sender.Send(gctx, sub, payload)

			switch outcome {
			case push.OutcomeDelivered:
				mu.Lock()
				result.delivered = true
				mu.Unlock()
			case push.OutcomeGone:
				j.logger.Info("pruning dead push subscription",
					zap.String("user_id", in.userID.String()),
					zap.Error(err),
				)
				if delErr := j.store.DeletePushSubscription(gctx, sub.Endpoint); delErr != nil {
					j.logger.Error("failed to prune subscription", zap.Error(delErr))
				} else {
					mu.Lock()
					result.pruned++
					mu.Unlock()
					metrics.RecordSubscriptionPruned()
				}
			default:
				j.logger.Warn("push delivery failed",
					zap.String("user_id", in.userID.String()),
					zap.String("coupon_id", in.coupon.ID.String()),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()

	return result
}

// buildPayload constructs the browser notification document. The tag keeps
// the browser from stacking multiple reminders for the same coupon, and the
// data block carries what the service worker needs for click tracking.
func (j *Job) buildPayload(in intent, logID uuid.UUID) *push.Payload {
	plural := "s"
	if in.days == 1 {
		plural = ""
	}

	data := push.PayloadData{
		URL:      j.config.AppURL + "/dashboard",
		CouponID: in.coupon.ID.String(),
	}
	if logID != uuid.Nil {
		data.NotificationLogID = logID.String()
	}

	return &push.Payload{
		Title: "Coupon Expiring Soon",
		Body: fmt.Sprintf("Your %s coupon %q expires in %d day%s!",
			in.coupon.Merchant, in.coupon.Title, in.days, plural),
		Icon:  "/icon-192x192.png",
		Badge: "/badge-72x72.png",
		Tag:   "coupon-expiry-" + in.coupon.ID.String(),
		Data:  data,
	}
}
