package domain

import "time"

// Reminder lead time bounds, in minutes.
const (
	DefaultReminderLeadMinutes = 5
	MaxReminderLeadMinutes     = 24 * 60
)

// Settings are the per-tenant notification toggles read by the scheduler
// before every arm decision.
type Settings struct {
	TenantID                string    `json:"user_id"`
	Enabled                 bool      `json:"enabled"`
	DailyReminders          bool      `json:"daily_reminders"`
	TaskReminders           bool      `json:"task_reminders"`
	CompletionNotifications bool      `json:"completion_notifications"`
	ReminderLeadMinutes     int       `json:"reminder_lead_minutes"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings used before a tenant saves any.
func DefaultSettings(tenantID string) Settings {
	return Settings{
		TenantID:                tenantID,
		Enabled:                 true,
		DailyReminders:          true,
		TaskReminders:           true,
		CompletionNotifications: true,
		ReminderLeadMinutes:     DefaultReminderLeadMinutes,
	}
}

// Validate checks if the Settings have valid data.
func (s Settings) Validate() error {
	if s.TenantID == "" {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if s.ReminderLeadMinutes < 0 || s.ReminderLeadMinutes > MaxReminderLeadMinutes {
		return NewValidationError("reminder_lead_minutes", "must be between 0 and 1440", nil)
	}
	return nil
}

// ReminderLead returns the lead time as a duration.
func (s Settings) ReminderLead() time.Duration {
	return time.Duration(s.ReminderLeadMinutes) * time.Minute
}

// TaskEventsEnabled reports whether reminder and start events may be armed.
func (s Settings) TaskEventsEnabled() bool {
	return s.Enabled && s.TaskReminders
}

// DigestsEnabled reports whether the morning and evening digests may fire.
func (s Settings) DigestsEnabled() bool {
	return s.Enabled && s.DailyReminders
}

// CompletionEnabled reports whether completion celebrations may fire.
func (s Settings) CompletionEnabled() bool {
	return s.Enabled && s.CompletionNotifications
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	Enabled                 *bool
	DailyReminders          *bool
	TaskReminders           *bool
	CompletionNotifications *bool
	ReminderLeadMinutes     *int
}

// Apply returns a copy of s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.DailyReminders != nil {
		s.DailyReminders = *p.DailyReminders
	}
	if p.TaskReminders != nil {
		s.TaskReminders = *p.TaskReminders
	}
	if p.CompletionNotifications != nil {
		s.CompletionNotifications = *p.CompletionNotifications
	}
	if p.ReminderLeadMinutes != nil {
		s.ReminderLeadMinutes = *p.ReminderLeadMinutes
	}
	return s
}
