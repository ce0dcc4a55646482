package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrLogNotFound is returned when a notification log row does not exist or
// does not belong to the requesting user.
var ErrLogNotFound = errors.New("notification log not found")

// Repository handles database operations for the notification job and the
// subscription endpoints. The coupon and preference tables are owned by the
// web application and are read-only here; push_subscriptions rows may be
// deleted when the push service confirms an endpoint is dead.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// dayWindow returns the half-open interval covering the calendar day exactly
// daysAhead days after now, with time-of-day stripped. A coupon is eligible
// for an offset only on the one day its expiry falls inside this window.
func dayWindow(now time.Time, daysAhead int) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, daysAhead)
	return start, start.AddDate(0, 0, 1)
}

// CouponsExpiringOn returns all coupons whose expiry falls on the calendar
// day exactly daysAhead days from now.
func (r *Repository) CouponsExpiringOn(ctx context.Context, daysAhead int) ([]*Coupon, error) {
	start, end := dayWindow(time.Now(), daysAhead)

	query := `
		SELECT id, user_id, merchant, title, valid_until
		FROM coupons
		WHERE valid_until >= $1 AND valid_until < $2
	`

	rows, err := r.db.Pool().Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query expiring coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*Coupon
	for rows.Next() {
		var c Coupon
		err := rows.Scan(&c.ID, &c.UserID, &c.Merchant, &c.Title, &c.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return coupons, nil
}

// GetReminderPreferences returns the user's reminder flags. A user with no
// preferences row has never opted out, so all reminders default to enabled.
func (r *Repository) GetReminderPreferences(ctx context.Context, userID uuid.UUID) (*ReminderPreferences, error) {
	query := `
		SELECT user_id, remind_7_days, remind_3_days, remind_1_day
		FROM reminder_preferences
		WHERE user_id = $1
	`

	var prefs ReminderPreferences
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.Remind7Days,
		&prefs.Remind3Days,
		&prefs.Remind1Day,
	)

	if err == pgx.ErrNoRows {
		return &ReminderPreferences{
			UserID:      userID,
			Remind7Days: true,
			Remind3Days: true,
			Remind1Day:  true,
		}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("query reminder preferences: %w", err)
	}

	return &prefs, nil
}

// ListPushSubscriptions returns all push endpoints registered by the user.
func (r *Repository) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]*PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*PushSubscription
	for rows.Next() {
		var sub PushSubscription
		err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return subs, nil
}

// CreatePushSubscription registers a push endpoint for a user. Registering
// the same endpoint twice is a no-op.
func (r *Repository) CreatePushSubscription(ctx context.Context, sub *PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, endpoint) DO NOTHING
	`

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	_, err := r.db.Pool().Exec(ctx, query, sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth)
	if err != nil {
		r.logger.Error("failed to create push subscription",
			zap.Error(err),
			zap.String("user_id", sub.UserID.String()),
		)
		return fmt.Errorf("insert push subscription: %w", err)
	}

	return nil
}

// DeletePushSubscription removes a push endpoint regardless of owner. This
// is the delivery engine's pruning path, used only after the push service
// confirms the endpoint is gone. Deleting an endpoint that is already gone
// is a no-op, which keeps pruning safe under concurrent runs.
func (r *Repository) DeletePushSubscription(ctx context.Context, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = $1`

	_, err := r.db.Pool().Exec(ctx, query, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}

	return nil
}

// DeletePushSubscriptionForUser removes a push endpoint owned by the given
// user. The user scope keeps the public unsubscribe endpoint from touching
// another user's registrations; deleting an endpoint the user does not own
// is a no-op.
func (r *Repository) DeletePushSubscriptionForUser(ctx context.Context, userID uuid.UUID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`

	_, err := r.db.Pool().Exec(ctx, query, userID, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription for user: %w", err)
	}

	return nil
}

// HasRecentNotification reports whether a sent/failed log entry exists for
// the (coupon, category) pair since the given instant. This is the dedup
// check guarding against re-notifying inside the sliding window.
func (r *Repository) HasRecentNotification(ctx context.Context, couponID uuid.UUID, notificationType string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_logs
			WHERE coupon_id = $1 AND notification_type = $2 AND sent_at >= $3
		)
	`

	var exists bool
	err := r.db.Pool().QueryRow(ctx, query, couponID, notificationType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query notification log: %w", err)
	}

	return exists, nil
}

// CreateNotificationLog inserts a new log entry and fills in its id and
// sent_at. The entry is created before delivery so its id can ride in the
// push payload for click tracking.
func (r *Repository) CreateNotificationLog(ctx context.Context, entry *NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, user_id, coupon_id, notification_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sent_at
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := r.db.Pool().QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.CouponID,
		entry.NotificationType,
		entry.Status,
	).Scan(&entry.SentAt)

	if err != nil {
		r.logger.Error("failed to create notification log",
			zap.Error(err),
			zap.String("coupon_id", entry.CouponID.String()),
			zap.String("notification_type", entry.NotificationType),
		)
		return fmt.Errorf("insert notification log: %w", err)
	}

	return nil
}

// UpdateNotificationLogStatus sets the status of an existing log entry.
func (r *Repository) UpdateNotificationLogStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE notification_logs SET status = $1 WHERE id = $2`

	result, err := r.db.Pool().Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("failed to update notification log status",
			zap.Error(err),
			zap.String("log_id", id.String()),
		)
		return fmt.Errorf("update notification log status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLogNotFound
	}

	return nil
}

// MarkNotificationClicked flips a log entry to clicked, scoped to the owning
// user so one user cannot mark another user's notifications.
func (r *Repository) MarkNotificationClicked(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE notification_logs
		SET status = $1
		WHERE id = $2 AND user_id = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, StatusClicked, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification clicked: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLogNotFound
	}

	return nil
}
