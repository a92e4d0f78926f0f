package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date and time-of-day layouts used by calendar tasks.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultTaskTenant is the tenant assigned to tasks created without one.
const DefaultTaskTenant = "default"

// Category classifies a calendar task.
type Category string

// Possible task categories
const (
	CategoryStudy    Category = "study"
	CategoryFood     Category = "food"
	CategoryChores   Category = "chores"
	CategoryExercise Category = "exercise"
	CategoryOther    Category = "other"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryStudy, CategoryFood, CategoryChores, CategoryExercise, CategoryOther:
		return true
	default:
		return false
	}
}

// Priority ranks a calendar task.
type Priority string

// Possible task priorities
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// EventKind names one of the two notifications a task can produce.
type EventKind string

// Event kinds
const (
	EventReminder EventKind = "reminder"
	EventStart    EventKind = "start"
)

// EventKinds lists every kind in firing order.
var EventKinds = []EventKind{EventReminder, EventStart}

// IsValid reports whether k is a known event kind.
func (k EventKind) IsValid() bool {
	return k == EventReminder || k == EventStart
}

// DeliveryState records when each event kind was delivered for the current
// scheduling epoch. A nil field means not yet delivered.
type DeliveryState struct {
	ReminderAt *time.Time `json:"reminder_delivered_at,omitempty"`
	StartAt    *time.Time `json:"start_delivered_at,omitempty"`
}

// Delivered reports whether kind has been delivered.
func (d DeliveryState) Delivered(kind EventKind) bool {
	switch kind {
	case EventReminder:
		return d.ReminderAt != nil
	case EventStart:
		return d.StartAt != nil
	default:
		return false
	}
}

// Mark records kind as delivered at t. It returns false if it was already delivered.
func (d *DeliveryState) Mark(kind EventKind, t time.Time) bool {
	if d.Delivered(kind) {
		return false
	}
	at := t.UTC()
	switch kind {
	case EventReminder:
		d.ReminderAt = &at
	case EventStart:
		d.StartAt = &at
	default:
		return false
	}
	return true
}

// Task is a calendar entry with a start time that drives reminder and
// start notifications.
type Task struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    Category      `json:"category"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	EndTime     string        `json:"end_time,omitempty"`
	Priority    Priority      `json:"priority"`
	Completed   bool          `json:"completed"`
	Delivery    DeliveryState `json:"delivery"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewTask creates a Task with a generated ID, applying the default
// category, priority and tenant. Returns an error if validation fails.
func NewTask(tenantID, title, date, clock string) (*Task, error) {
	if tenantID == "" {
		tenantID = DefaultTaskTenant
	}
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Title:     strings.TrimSpace(title),
		Category:  CategoryStudy,
		Date:      date,
		Time:      clock,
		Priority:  PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == "" {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyContent)
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return NewValidationError("date", "must be YYYY-MM-DD", ErrInvalidFormat)
	}
	if _, err := time.Parse(TimeLayout, t.Time); err != nil {
		return NewValidationError("time", "must be HH:MM", ErrInvalidFormat)
	}
	if t.EndTime != "" {
		if _, err := time.Parse(TimeLayout, t.EndTime); err != nil {
			return NewValidationError("end_time", "must be HH:MM", ErrInvalidFormat)
		}
	}
	if !t.Category.IsValid() {
		return NewValidationError("category", "is not a known category", nil)
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", "is not a known priority", nil)
	}
	return nil
}

// StartInstant combines the task's calendar date and time-of-day into a
// single instant interpreted in loc.
func (t *Task) StartInstant(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, t.Date+" "+t.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: task %s has unparseable date/time %q %q",
			ErrInvalidFormat, t.ID, t.Date, t.Time)
	}
	return start, nil
}

// Reschedule moves the task to a new date and time. Any change opens a new
// scheduling epoch and clears the delivery state.
func (t *Task) Reschedule(date, clock string) {
	if date == t.Date && clock == t.Time {
		return
	}
	t.Date = date
	t.Time = clock
	t.Delivery = DeliveryState{}
	t.UpdatedAt = time.Now().UTC()
}

// Complete marks the task completed. It returns true if the state changed.
func (t *Task) Complete() bool {
	if t.Completed {
		return false
	}
	t.Completed = true
	t.UpdatedAt = time.Now().UTC()
	return true
}
