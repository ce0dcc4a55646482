package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couponapp/notifier/internal/db"
	"github.com/couponapp/notifier/internal/scheduler"
)

// Store is the slice of the repository the HTTP surface needs.
type Store interface {
	MarkNotificationClicked(ctx context.Context, id, userID uuid.UUID) error
	CreatePushSubscription(ctx context.Context, sub *db.PushSubscription) error
	DeletePushSubscriptionForUser(ctx context.Context, userID uuid.UUID, endpoint string) error
}

// JobRunner runs one notification cycle; implemented by scheduler.Job.
type JobRunner interface {
	Run(ctx context.Context) (*scheduler.Summary, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger     *zap.Logger
	store      Store
	job        JobRunner
	jobTimeout time.Duration
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, store Store, job JobRunner, jobTimeout time.Duration) *Handler {
	if jobTimeout == 0 {
		jobTimeout = 5 * time.Minute
	}
	return &Handler{
		logger:     logger,
		store:      store,
		job:        job,
		jobTimeout: jobTimeout,
	}
}

// JobResponse is returned by the trigger endpoint, mirroring the job summary.
type JobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// RunExpiryNotifications handles POST /v1/jobs/run-expiry-notifications.
// Invoked by the external cron trigger; runs one cycle synchronously under
// the job timeout and reports sent/failed counts.
func (h *Handler) RunExpiryNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.jobTimeout)
	defer cancel()

	summary, err := h.job.Run(ctx)
	if err != nil {
		h.logger.Error("notification job failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "job_failed", "Notification job failed", err.Error())
		return
	}

	message := "Notification job completed"
	if summary.Eligible == 0 {
		message = "No coupons expiring soon"
	}

	h.writeJSON(w, http.StatusOK, JobResponse{
		Success: true,
		Message: message,
		Sent:    summary.Sent,
		Failed:  summary.Failed,
	})
}

// ClickRequest carries the log id reported by the service worker.
type ClickRequest struct {
	NotificationLogID string `json:"notification_log_id"`
}

// ClickNotification handles POST /v1/notifications/click. It flips the log
// entry to clicked, scoped to the calling user.
func (h *Handler) ClickNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.NotificationLogID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing notification_log_id", "")
		return
	}

	logID, err := uuid.Parse(req.NotificationLogID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification_log_id", "notification_log_id must be a valid UUID")
		return
	}

	if err := h.store.MarkNotificationClicked(r.Context(), logID, userID); err != nil {
		if errors.Is(err, db.ErrLogNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification log not found", "")
			return
		}
		h.logger.Error("failed to mark notification clicked", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to update notification log", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SubscribeRequest matches the browser PushSubscription JSON shape.
type SubscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Subscribe handles POST /v1/notifications/subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid subscription object", "endpoint, keys.p256dh, and keys.auth are required")
		return
	}

	err := h.store.CreatePushSubscription(r.Context(), &db.PushSubscription{
		UserID:   userID,
		Endpoint: sub.Endpoint,
		P256dh:   sub.Keys.P256dh,
		Auth:     sub.Keys.Auth,
	})
	if err != nil {
		h.logger.Error("failed to store push subscription", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to store subscription", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// UnsubscribeRequest identifies the endpoint to remove.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles DELETE /v1/notifications/subscriptions. The delete is
// scoped to the calling user so one user cannot remove another's endpoints.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.Endpoint == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing endpoint", "")
		return
	}

	if err := h.store.DeletePushSubscriptionForUser(r.Context(), userID, req.Endpoint); err != nil {
		h.logger.Error("failed to delete push subscription", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete subscription", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requireUser reads the user id injected by the auth proxy. Authentication
// itself lives upstream; an absent or malformed header is a 401 here.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "missing X-User-ID header")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "invalid X-User-ID header")
		return uuid.Nil, false
	}

	return userID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
