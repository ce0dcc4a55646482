package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couponapp/notifier/internal/db"
)

// newTestSender builds a sender with freshly generated VAPID keys and a
// subscription whose keys are valid P-256 material, so the real encryption
// path runs against the fake push service.
func newTestSender(t *testing.T, endpoint string) (*WebPushSender, *db.PushSubscription) {
	t.Helper()

	vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("failed to generate VAPID keys: %v", err)
	}

	sender, err := NewWebPushSender(Config{
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		Subscriber:      "test@example.com",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create sender: %v", err)
	}

	clientKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate client key: %v", err)
	}

	authSecret := make([]byte, 16)
	if _, err := rand.Read(authSecret); err != nil {
		t.Fatalf("failed to generate auth secret: %v", err)
	}

	sub := &db.PushSubscription{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(clientKey.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(authSecret),
	}

	return sender, sub
}

func testPayload() *Payload {
	return &Payload{
		Title: "Coupon Expiring Soon",
		Body:  "Your coupon expires in 7 days!",
		Tag:   "coupon-expiry-test",
		Data:  PayloadData{URL: "/dashboard", CouponID: uuid.NewString()},
	}
}

func TestWebPushSender_Delivered(t *testing.T) {
	var gotBody bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			gotBody = true
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender, sub := newTestSender(t, server.URL)

	outcome, err := sender.Send(context.Background(), sub, testPayload())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Errorf("expected OutcomeDelivered, got %v", outcome)
	}
	if !gotBody {
		t.Error("expected encrypted body to be posted")
	}
}

func TestWebPushSender_GoneStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		sender, sub := newTestSender(t, server.URL)

		outcome, err := sender.Send(context.Background(), sub, testPayload())
		if outcome != OutcomeGone {
			t.Errorf("status %d: expected OutcomeGone, got %v", status, outcome)
		}
		if err == nil {
			t.Errorf("status %d: expected an error describing the dead endpoint", status)
		}

		server.Close()
	}
}

func TestWebPushSender_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender, sub := newTestSender(t, server.URL)

	outcome, _ := sender.Send(context.Background(), sub, testPayload())
	if outcome != OutcomeTransient {
		t.Errorf("expected OutcomeTransient, got %v", outcome)
	}
}

func TestWebPushSender_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	sender, sub := newTestSender(t, server.URL)
	server.Close() // connection refused from here on

	outcome, err := sender.Send(context.Background(), sub, testPayload())
	if outcome != OutcomeTransient {
		t.Errorf("expected OutcomeTransient, got %v", outcome)
	}
	if err == nil {
		t.Error("expected a network error")
	}
}

func TestNewWebPushSender_RequiresVAPIDKeys(t *testing.T) {
	if _, err := NewWebPushSender(Config{}, zap.NewNop()); err == nil {
		t.Error("expected error when VAPID keys are missing")
	}
}
