package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// DefaultUpcomingWindow is the look-ahead of the upcoming tasks view.
const DefaultUpcomingWindow = 60 * time.Minute

// TaskInput carries the fields of a new task. Empty optional fields take
// domain defaults.
type TaskInput struct {
	ID          string
	TenantID    string
	Title       string
	Description string
	Category    domain.Category
	Date        string
	Time        string
	EndTime     string
	Priority    domain.Priority
	Completed   bool
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Category    *domain.Category
	Date        *string
	Time        *string
	EndTime     *string
	Priority    *domain.Priority
	Completed   *bool
}

// TaskService manages calendar tasks and announces every change.
type TaskService interface {
	Create(ctx context.Context, in TaskInput) (*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, id string, upd TaskUpdate) (*domain.Task, error)
	Delete(ctx context.Context, id string) error

	// List returns a tenant's tasks, optionally restricted to one date.
	List(ctx context.Context, tenantID, date string) ([]*domain.Task, error)

	// Range returns a tenant's tasks between two inclusive dates.
	Range(ctx context.Context, tenantID, from, to string) ([]*domain.Task, error)

	// Upcoming returns incomplete tasks starting within window from now,
	// ordered by start. It is a reporting view and arms nothing.
	Upcoming(ctx context.Context, tenantID string, window time.Duration) ([]*domain.Task, error)
}

type taskServiceImpl struct {
	db       *sqlx.DB
	tasks    store.TaskStore
	emitter  events.EventEmitter
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	db *sqlx.DB,
	tasks store.TaskStore,
	emitter events.EventEmitter,
	clk clock.Clock,
	location *time.Location,
	logger *slog.Logger,
) (TaskService, error) {
	if db == nil {
		return nil, &ServiceError{Service: "task", Operation: "create_service", Message: "db cannot be nil"}
	}
	if tasks == nil {
		return nil, &ServiceError{Service: "task", Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		db:       db,
		tasks:    tasks,
		emitter:  emitter,
		clock:    clk,
		location: location,
		logger:   logger.With(slog.String("component", "task_service")),
	}, nil
}

func (s *taskServiceImpl) Create(ctx context.Context, in TaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.clock.Now().UTC()
	task := &domain.Task{
		ID:          in.ID,
		TenantID:    in.TenantID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		Time:        in.Time,
		EndTime:     in.EndTime,
		Priority:    in.Priority,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.TenantID == "" {
		task.TenantID = domain.DefaultTaskTenant
	}
	if task.Category == "" {
		task.Category = domain.CategoryStudy
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, NewServiceError("task", "create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("date", task.Date),
		slog.String("time", task.Time))
	s.emit(ctx, events.NewTaskEvent(events.TaskCreated, task))
	return task, nil
}

func (s *taskServiceImpl) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("task", "get_task", "failed to retrieve task", err)
	}
	return task, nil
}

func (s *taskServiceImpl) Update(ctx context.Context, id string, upd TaskUpdate) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		updated   *domain.Task
		completed bool
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		task, err := txTasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		wasCompleted := task.Completed

		rescheduled := applyTaskUpdate(task, upd)
		task.UpdatedAt = s.clock.Now().UTC()
		if err := task.Validate(); err != nil {
			return err
		}
		if err := txTasks.Update(ctx, task); err != nil {
			return err
		}
		if rescheduled {
			if err := txTasks.ClearDelivery(ctx, task.ID); err != nil {
				return err
			}
		}

		updated = task
		completed = !wasCompleted && task.Completed
		return nil
	})
	if err != nil {
		return nil, NewServiceError("task", "update_task", "failed to update task", err)
	}

	eventType := events.TaskUpdated
	if completed {
		eventType = events.TaskCompleted
	}
	log.Info("task updated",
		slog.String("task_id", updated.ID),
		slog.String("event", eventType))
	s.emit(ctx, events.NewTaskEvent(eventType, updated))
	return updated, nil
}

// applyTaskUpdate applies upd to task and reports whether the date or time
// changed, which opens a new scheduling epoch.
func applyTaskUpdate(task *domain.Task, upd TaskUpdate) bool {
	if upd.Title != nil {
		task.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.Category != nil {
		task.Category = *upd.Category
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
	}
	if upd.EndTime != nil {
		task.EndTime = *upd.EndTime
	}
	if upd.Completed != nil {
		task.Completed = *upd.Completed
	}

	date, clockTime := task.Date, task.Time
	if upd.Date != nil {
		date = *upd.Date
	}
	if upd.Time != nil {
		clockTime = *upd.Time
	}
	if date == task.Date && clockTime == task.Time {
		return false
	}
	task.Reschedule(date, clockTime)
	return true
}

func (s *taskServiceImpl) Delete(ctx context.Context, id string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return NewServiceError("task", "delete_task", "failed to retrieve task", err)
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return NewServiceError("task", "delete_task", "failed to delete task", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", slog.String("task_id", id))
	s.emit(ctx, events.NewTaskEvent(events.TaskDeleted, task))
	return nil
}

func (s *taskServiceImpl) List(ctx context.Context, tenantID, date string) ([]*domain.Task, error) {
	tasks, err := s.tasks.List(ctx, store.TaskFilter{TenantID: tenantOrDefault(tenantID), Date: date})
	if err != nil {
		return nil, NewServiceError("task", "list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

func (s *taskServiceImpl) Range(ctx context.Context, tenantID, from, to string) ([]*domain.Task, error) {
	if _, err := time.Parse(domain.DateLayout, from); err != nil {
		return nil, domain.NewValidationError("startDate", "must be YYYY-MM-DD", domain.ErrInvalidFormat)
	}
	if _, err := time.Parse(domain.DateLayout, to); err != nil {
		return nil, domain.NewValidationError("endDate", "must be YYYY-MM-DD", domain.ErrInvalidFormat)
	}

	tasks, err := s.tasks.List(ctx, store.TaskFilter{TenantID: tenantOrDefault(tenantID), From: from, To: to})
	if err != nil {
		return nil, NewServiceError("task", "range_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

func (s *taskServiceImpl) Upcoming(
	ctx context.Context,
	tenantID string,
	window time.Duration,
) ([]*domain.Task, error) {
	if window <= 0 {
		window = DefaultUpcomingWindow
	}
	now := s.clock.Now().In(s.location)
	until := now.Add(window)

	tasks, err := s.tasks.List(ctx, store.TaskFilter{
		TenantID:    tenantOrDefault(tenantID),
		From:        now.Format(domain.DateLayout),
		To:          until.Format(domain.DateLayout),
		PendingOnly: true,
	})
	if err != nil {
		return nil, NewServiceError("task", "upcoming_tasks", "failed to list tasks", err)
	}

	type startingTask struct {
		task  *domain.Task
		start time.Time
	}
	var upcoming []startingTask
	for _, task := range tasks {
		start, err := task.StartInstant(s.location)
		if err != nil {
			continue
		}
		if start.Before(now) || start.After(until) {
			continue
		}
		upcoming = append(upcoming, startingTask{task: task, start: start})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].start.Before(upcoming[j].start)
	})

	out := make([]*domain.Task, 0, len(upcoming))
	for _, u := range upcoming {
		out = append(out, u.task)
	}
	return out, nil
}

// emit publishes event. Handler failures are logged; the change is already committed.
func (s *taskServiceImpl) emit(ctx context.Context, event *events.ChangeEvent) {
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to handle change event",
			slog.String("error", err.Error()),
			slog.String("event_type", event.Type),
			slog.String("task_id", event.TaskID))
	}
}

func tenantOrDefault(tenantID string) string {
	if tenantID == "" {
		return domain.DefaultTaskTenant
	}
	return tenantID
}
