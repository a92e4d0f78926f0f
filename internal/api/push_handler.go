package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/service"
)

// SubscriptionManager is the subset of the subscription registry the push
// routes use.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, endpoint string, keys domain.SubscriptionKeys, tenantID string) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, endpoint string) (bool, error)
	Counts(ctx context.Context) (service.SubscriptionCounts, error)
}

// Dispatcher sends a payload to every active subscriber.
type Dispatcher interface {
	Dispatch(ctx context.Context, p notification.Payload) (notification.Result, error)
}

// PushHandler serves the /api/push routes.
type PushHandler struct {
	subs           SubscriptionManager
	dispatcher     Dispatcher
	vapidPublicKey string
	pick           notification.Picker
	logger         *slog.Logger
}

// NewPushHandler creates a PushHandler. vapidPublicKey may be empty when push
// delivery is disabled.
func NewPushHandler(
	subs SubscriptionManager,
	dispatcher Dispatcher,
	vapidPublicKey string,
	logger *slog.Logger,
) *PushHandler {
	if subs == nil || dispatcher == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("subscription manager and dispatcher cannot be nil for PushHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PushHandler")
	}
	return &PushHandler{
		subs:           subs,
		dispatcher:     dispatcher,
		vapidPublicKey: vapidPublicKey,
		pick:           notification.RandomPicker(),
		logger:         logger.With(slog.String("component", "push_handler")),
	}
}

// SetPicker replaces the celebration message picker.
func (h *PushHandler) SetPicker(pick notification.Picker) {
	if pick != nil {
		h.pick = pick
	}
}

// Subscribe handles POST /api/push/subscribe.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubscribeRequest
	if !decodeAndValidate(w, r, &req, "Invalid subscription data", log) {
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), req.Endpoint,
		domain.SubscriptionKeys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth}, req.UserID)
	if err != nil {
		if domain.IsValidationError(err) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid subscription data", err)
			return
		}
		HandleAPIError(w, r, err, "Failed to save subscription")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, SubscribeResponse{
		Success:        true,
		Message:        "Subscription saved successfully",
		SubscriptionID: sub.ID,
	})
}

// Unsubscribe handles POST /api/push/unsubscribe. Unknown endpoints succeed.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req UnsubscribeRequest
	if !decodeAndValidate(w, r, &req, "Endpoint is required", log) {
		return
	}

	existed, err := h.subs.Unsubscribe(r.Context(), req.Endpoint)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to unsubscribe")
		return
	}
	if !existed {
		log.Debug("unsubscribe for unknown endpoint")
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Unsubscribed successfully",
	})
}

// Notify handles POST /api/push/notify.
func (h *PushHandler) Notify(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req NotifyRequest
	if !decodeAndValidate(w, r, &req, "Title and body are required", log) {
		return
	}

	h.dispatch(w, r, notification.Payload{
		Title:   req.Title,
		Body:    req.Body,
		Icon:    req.Icon,
		Tag:     req.Tag,
		Data:    req.Data,
		Actions: req.Actions,
	}, "Failed to send notifications")
}

// TaskReminder handles POST /api/push/notify/task-reminder.
func (h *PushHandler) TaskReminder(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req TaskNotifyRequest
	if !decodeAndValidate(w, r, &req, "Task ID and title are required", log) {
		return
	}
	minutes := domain.DefaultReminderLeadMinutes
	if req.ReminderMinutes != nil {
		minutes = *req.ReminderMinutes
	}

	h.dispatch(w, r, notification.TaskReminderRequest(req.TaskID, req.TaskTitle, minutes),
		"Failed to send task reminder")
}

// TaskCompleted handles POST /api/push/notify/task-completed.
func (h *PushHandler) TaskCompleted(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req TaskNotifyRequest
	if !decodeAndValidate(w, r, &req, "Task ID and title are required", log) {
		return
	}

	h.dispatch(w, r, notification.TaskCompleted(req.TaskID, req.TaskTitle, h.pick),
		"Failed to send task completion notification")
}

// WaterReminder handles POST /api/push/notify/water-reminder.
func (h *PushHandler) WaterReminder(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, notification.WaterReminder(), "Failed to send water reminder")
}

// Test handles POST /api/push/test.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, notification.Test(), "Failed to send test notification")
}

// Status handles GET /api/push/status.
func (h *PushHandler) Status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.subs.Counts(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get subscription status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		Success:             true,
		ActiveSubscriptions: counts.Active,
		TotalSubscriptions:  counts.Total,
		VAPIDPublicKey:      h.vapidPublicKey,
	})
}

// dispatch sends p and writes the notify response.
func (h *PushHandler) dispatch(w http.ResponseWriter, r *http.Request, p notification.Payload, failure string) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	result, err := h.dispatcher.Dispatch(r.Context(), p)
	if err != nil {
		HandleAPIError(w, r, err, failure)
		return
	}

	if result.Attempted == 0 {
		shared.RespondWithJSON(w, r, http.StatusOK, NotifyResponse{
			Success: true,
			Message: "No active subscriptions found",
		})
		return
	}

	log.Info("notification dispatched",
		slog.String("tag", p.Tag),
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed))

	shared.RespondWithJSON(w, r, http.StatusOK, NotifyResponse{
		Success: true,
		Message: fmt.Sprintf("Notifications sent: %d successful, %d failed", result.Succeeded, result.Failed),
		Results: result.Results,
		Summary: &NotifySummary{
			Attempted: result.Attempted,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
		},
	})
}
