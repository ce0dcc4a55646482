package scheduler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/couponapp/notifier/internal/db"
	"github.com/couponapp/notifier/internal/metrics"
)

// eligibleCoupon is a coupon matched by one lead-time scan. The same coupon
// can only appear once per offset within a run, and each offset fires once
// per coupon lifecycle, so no cross-offset dedup is needed here.
type eligibleCoupon struct {
	coupon          *db.Coupon
	daysUntilExpiry int
}

// scanEligible runs one scan per configured offset concurrently and unions
// the results. A failed offset is logged and contributes an empty set; the
// job only aborts when every offset fails, which means the store itself is
// unreachable.
func (j *Job) scanEligible(ctx context.Context) ([]eligibleCoupon, error) {
	var (
		mu       sync.Mutex
		eligible []eligibleCoupon
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, offset := range j.config.Offsets {
		offset := offset
		g.Go(func() error {
			coupons, err := j.store.CouponsExpiringOn(gctx, offset)
			if err != nil {
				j.logger.Error("scan failed for offset",
					zap.Int("days", offset),
					zap.Error(err),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}

			metrics.RecordEligibleCoupons(offset, len(coupons))

			mu.Lock()
			for _, c := range coupons {
				eligible = append(eligible, eligibleCoupon{coupon: c, daysUntilExpiry: offset})
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if failures == len(j.config.Offsets) {
		return nil, fmt.Errorf("all %d eligibility scans failed", failures)
	}

	return eligible, nil
}
