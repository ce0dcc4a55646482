package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Coupon is a read-only view of a stored coupon. The coupon tables are owned
// by the web application; this service only scans them for upcoming expiries.
type Coupon struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Merchant   string    `json:"merchant"`
	Title      string    `json:"title"`
	ValidUntil time.Time `json:"valid_until"`
}

// ReminderPreferences holds a user's opt-in flags per reminder lead time.
// A user without a row gets all three reminders by default.
type ReminderPreferences struct {
	UserID      uuid.UUID `json:"user_id"`
	Remind7Days bool      `json:"remind_7_days"`
	Remind3Days bool      `json:"remind_3_days"`
	Remind1Day  bool      `json:"remind_1_day"`
}

// EnabledFor reports whether the user wants a reminder at the given day offset.
func (p *ReminderPreferences) EnabledFor(days int) bool {
	switch days {
	case 7:
		return p.Remind7Days
	case 3:
		return p.Remind3Days
	case 1:
		return p.Remind1Day
	default:
		// Offsets outside the three supported lead times have no flag and
		// are treated as enabled.
		return true
	}
}

// PushSubscription is one browser's Web Push registration for a user.
type PushSubscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"` // client public key for payload encryption
	Auth      string    `json:"auth"`   // client auth secret
	CreatedAt time.Time `json:"created_at"`
}

// NotificationLog records one delivery attempt for a (coupon, lead time) pair.
// It is the dedup source of truth and the click-tracking anchor.
type NotificationLog struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	CouponID         uuid.UUID `json:"coupon_id"`
	NotificationType string    `json:"notification_type"`
	Status           string    `json:"status"`
	SentAt           time.Time `json:"sent_at"`
}

// Notification status constants. "sent" is written optimistically before
// delivery, corrected to "failed" when no endpoint accepts the push, and
// flipped to "clicked" by the click endpoint.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusClicked = "clicked"
)

// Notification type constants, one per supported lead time.
const (
	Type7Day = "7_day"
	Type3Day = "3_day"
	Type1Day = "1_day"
)

// TypeForOffset maps a lead-time offset in days to its log category.
// Non-standard offsets get a derived category so dedup still keys per offset.
func TypeForOffset(days int) string {
	switch days {
	case 7:
		return Type7Day
	case 3:
		return Type3Day
	case 1:
		return Type1Day
	default:
		return fmt.Sprintf("%d_day", days)
	}
}
