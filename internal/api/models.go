package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/notification"
)

// Push requests

// SubscribeRequest is the body of POST /api/push/subscribe.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth"   validate:"required"`
	} `json:"keys"`
	UserID string `json:"userId"`
}

// UnsubscribeRequest is the body of POST /api/push/unsubscribe.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// NotifyRequest is the body of POST /api/push/notify.
type NotifyRequest struct {
	Title   string                `json:"title"   validate:"required"`
	Body    string                `json:"body"    validate:"required"`
	Icon    string                `json:"icon"`
	Tag     string                `json:"tag"`
	Data    map[string]any        `json:"data"`
	Actions []notification.Action `json:"actions"`
}

// TaskNotifyRequest is the body of the task reminder and completion helpers.
type TaskNotifyRequest struct {
	TaskID          string `json:"taskId"          validate:"required"`
	TaskTitle       string `json:"taskTitle"       validate:"required"`
	ReminderMinutes *int   `json:"reminderMinutes" validate:"omitempty,gte=0,lte=1440"`
}

// Push responses

// SubscribeResponse is returned after a subscription is saved.
type SubscribeResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	SubscriptionID uuid.UUID `json:"subscriptionId"`
}

// MessageResponse is a bare success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NotifySummary counts a dispatch's outcomes.
type NotifySummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// NotifyResponse reports a dispatch.
type NotifyResponse struct {
	Success bool                         `json:"success"`
	Message string                       `json:"message"`
	Results []notification.AttemptResult `json:"results,omitempty"`
	Summary *NotifySummary               `json:"summary,omitempty"`
}

// StatusResponse is returned by GET /api/push/status.
type StatusResponse struct {
	Success             bool   `json:"success"`
	ActiveSubscriptions int    `json:"activeSubscriptions"`
	TotalSubscriptions  int    `json:"totalSubscriptions"`
	VAPIDPublicKey      string `json:"vapidPublicKey"`
}

// Calendar tasks

// CreateTaskRequest is the body of POST /api/calendar-tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"    validate:"omitempty,oneof=study food chores exercise other"`
	Date        string `json:"date"        validate:"required,datetime=2006-01-02"`
	Time        string `json:"time"        validate:"required,datetime=15:04"`
	EndTime     string `json:"endTime"     validate:"omitempty,datetime=15:04"`
	Priority    string `json:"priority"    validate:"omitempty,oneof=high medium low"`
	UserID      string `json:"userId"`
}

// UpdateTaskRequest is the body of PUT /api/calendar-tasks/{id}. Absent
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"       validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Category    *string `json:"category"    validate:"omitempty,oneof=study food chores exercise other"`
	Date        *string `json:"date"        validate:"omitempty,datetime=2006-01-02"`
	Time        *string `json:"time"        validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"endTime"     validate:"omitempty,datetime=15:04"`
	Priority    *string `json:"priority"    validate:"omitempty,oneof=high medium low"`
	Completed   *bool   `json:"completed"`
}

// TaskResponse is the wire form of a calendar task.
type TaskResponse struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Category            string     `json:"category"`
	Date                string     `json:"date"`
	Time                string     `json:"time"`
	EndTime             string     `json:"endTime"`
	Priority            string     `json:"priority"`
	Completed           bool       `json:"completed"`
	ReminderSentAt      *time.Time `json:"reminderSentAt,omitempty"`
	StartNotificationAt *time.Time `json:"startNotificationSentAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                  task.ID,
		UserID:              task.TenantID,
		Title:               task.Title,
		Description:         task.Description,
		Category:            string(task.Category),
		Date:                task.Date,
		Time:                task.Time,
		EndTime:             task.EndTime,
		Priority:            string(task.Priority),
		Completed:           task.Completed,
		ReminderSentAt:      task.Delivery.ReminderAt,
		StartNotificationAt: task.Delivery.StartAt,
		CreatedAt:           task.CreatedAt,
		UpdatedAt:           task.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return out
}

// Settings

// SettingsRequest is the body of PUT /api/notification-settings. Absent
// fields are left unchanged.
type SettingsRequest struct {
	Enabled                 *bool `json:"enabled"`
	DailyReminders          *bool `json:"dailyReminders"`
	TaskReminders           *bool `json:"taskReminders"`
	CompletionNotifications *bool `json:"completionNotifications"`
	ReminderMinutes         *int  `json:"reminderMinutes" validate:"omitempty,gte=0,lte=1440"`
}

// SettingsResponse is the wire form of the notification settings.
type SettingsResponse struct {
	Enabled                 bool      `json:"enabled"`
	DailyReminders          bool      `json:"dailyReminders"`
	TaskReminders           bool      `json:"taskReminders"`
	CompletionNotifications bool      `json:"completionNotifications"`
	ReminderMinutes         int       `json:"reminderMinutes"`
	UpdatedAt               time.Time `json:"updatedAt,omitempty"`
}

func settingsToResponse(s domain.Settings) SettingsResponse {
	return SettingsResponse{
		Enabled:                 s.Enabled,
		DailyReminders:          s.DailyReminders,
		TaskReminders:           s.TaskReminders,
		CompletionNotifications: s.CompletionNotifications,
		ReminderMinutes:         s.ReminderLeadMinutes,
		UpdatedAt:               s.UpdatedAt,
	}
}
