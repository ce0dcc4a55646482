// Package push delivers Web Push notifications over the VAPID protocol and
// classifies delivery outcomes so callers can distinguish dead endpoints
// from transient failures.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/couponapp/notifier/internal/db"
)

// Outcome classifies one delivery attempt to one endpoint.
type Outcome int

const (
	// OutcomeDelivered means the push service accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeGone means the push service reported the endpoint as expired
	// or unsubscribed; the subscription should be pruned.
	OutcomeGone
	// OutcomeTransient covers network errors and retryable service errors;
	// the subscription stays and the next job run retries naturally.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeGone:
		return "gone"
	default:
		return "transient"
	}
}

// PayloadData rides in the notification's data field; the service worker uses
// it to open the app and report the click back against the log entry.
type PayloadData struct {
	URL               string `json:"url"`
	CouponID          string `json:"couponId"`
	NotificationLogID string `json:"notificationLogId,omitempty"`
}

// Payload is the JSON document shown by the browser notification.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon"`
	Badge string      `json:"badge"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

// Sender is the delivery transport used by the notification job.
type Sender interface {
	Send(ctx context.Context, sub *db.PushSubscription, payload *Payload) (Outcome, error)
}

// Config holds VAPID credentials and transport settings.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Timeout         time.Duration
}

// WebPushSender sends notifications through the subscriber's push service.
type WebPushSender struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewWebPushSender creates a sender, validating that VAPID keys are present.
func NewWebPushSender(cfg Config, logger *zap.Logger) (*WebPushSender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("VAPID keys not configured")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if cfg.TTL == 0 {
		cfg.TTL = 86400
	}

	return &WebPushSender{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Send encrypts and posts the payload to the subscription's endpoint.
// The returned error carries detail for logging; the Outcome is what the
// caller acts on.
func (s *WebPushSender) Send(ctx context.Context, sub *db.PushSubscription, payload *Payload) (Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomeTransient, fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.config.Subscriber,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             s.config.TTL,
	})
	if err != nil {
		return OutcomeTransient, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.logger.Debug("push delivered",
			zap.String("endpoint", truncateEndpoint(sub.Endpoint)),
			zap.Int("status_code", resp.StatusCode),
		)
		return OutcomeDelivered, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The push service says this registration no longer exists.
		return OutcomeGone, fmt.Errorf("subscription gone: status %d", resp.StatusCode)
	default:
		return OutcomeTransient, fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
}

// truncateEndpoint keeps logs readable; push endpoints are long opaque URLs.
func truncateEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
