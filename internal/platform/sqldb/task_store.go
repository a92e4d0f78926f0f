package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

const taskColumns = `id, tenant_id, title, description, category, task_date, task_time,
	end_time, priority, completed, reminder_delivered_at, start_delivered_at, created_at, updated_at`

type taskRow struct {
	ID                  string       `db:"id"`
	TenantID            string       `db:"tenant_id"`
	Title               string       `db:"title"`
	Description         string       `db:"description"`
	Category            string       `db:"category"`
	Date                string       `db:"task_date"`
	Time                string       `db:"task_time"`
	EndTime             string       `db:"end_time"`
	Priority            string       `db:"priority"`
	Completed           bool         `db:"completed"`
	ReminderDeliveredAt sql.NullTime `db:"reminder_delivered_at"`
	StartDeliveredAt    sql.NullTime `db:"start_delivered_at"`
	CreatedAt           time.Time    `db:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func (r taskRow) toDomain() *domain.Task {
	task := &domain.Task{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Title:       r.Title,
		Description: r.Description,
		Category:    domain.Category(r.Category),
		Date:        r.Date,
		Time:        r.Time,
		EndTime:     r.EndTime,
		Priority:    domain.Priority(r.Priority),
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.ReminderDeliveredAt.Valid {
		at := r.ReminderDeliveredAt.Time.UTC()
		task.Delivery.ReminderAt = &at
	}
	if r.StartDeliveredAt.Valid {
		at := r.StartDeliveredAt.Time.UTC()
		task.Delivery.StartAt = &at
	}
	return task
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// deliveryColumn whitelists the column written for an event kind.
func deliveryColumn(kind domain.EventKind) (string, error) {
	switch kind {
	case domain.EventReminder:
		return "reminder_delivered_at", nil
	case domain.EventStart:
		return "start_delivered_at", nil
	default:
		return "", fmt.Errorf("%w: unknown event kind %q", store.ErrInvalidEntity, kind)
	}
}

// TaskStore implements store.TaskStore on PostgreSQL or SQLite.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a TaskStore over a connection or transaction.
// If logger is nil, a default logger will be used.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore.
func (s *TaskStore) WithTx(tx *sqlx.Tx) store.TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := s.db.Rebind(`
		INSERT INTO calendar_tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.TenantID,
		task.Title,
		task.Description,
		string(task.Category),
		task.Date,
		task.Time,
		task.EndTime,
		string(task.Priority),
		task.Completed,
		nullTime(task.Delivery.ReminderAt),
		nullTime(task.Delivery.StartAt),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrDuplicate) {
			return fmt.Errorf("%w: %s", store.ErrTaskExists, task.ID)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID))
		return store.NewStoreError("task", "create", "insert failed", mapped)
	}

	log.Debug("task created", slog.String("task_id", task.ID), slog.String("date", task.Date))
	return nil
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var row taskRow
	query := s.db.Rebind(`SELECT ` + taskColumns + ` FROM calendar_tasks WHERE id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError("task", "get", "select failed", MapError(err))
	}
	return row.toDomain(), nil
}

// Update implements store.TaskStore.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := s.db.Rebind(`
		UPDATE calendar_tasks SET
			title = ?, description = ?, category = ?, task_date = ?, task_time = ?,
			end_time = ?, priority = ?, completed = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		string(task.Category),
		task.Date,
		task.Time,
		task.EndTime,
		string(task.Priority),
		task.Completed,
		task.UpdatedAt.UTC(),
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID))
		return store.NewStoreError("task", "update", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// ClearDelivery implements store.TaskStore.
func (s *TaskStore) ClearDelivery(ctx context.Context, id string) error {
	query := s.db.Rebind(`
		UPDATE calendar_tasks SET reminder_delivered_at = NULL, start_delivered_at = NULL
		WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return store.NewStoreError("task", "clear_delivery", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM calendar_tasks WHERE id = ?`), id)
	if err != nil {
		return store.NewStoreError("task", "delete", "delete failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	var (
		conds []string
		args  []any
	)
	if filter.TenantID != "" {
		conds = append(conds, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Date != "" {
		conds = append(conds, "task_date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		conds = append(conds, "task_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "task_date <= ?")
		args = append(args, filter.To)
	}
	if filter.PendingOnly {
		conds = append(conds, "completed = ?")
		args = append(args, false)
	}

	query := `SELECT ` + taskColumns + ` FROM calendar_tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY task_date, task_time, created_at`

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, store.NewStoreError("task", "list", "select failed", MapError(err))
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toDomain())
	}
	return tasks, nil
}

// MarkDelivered implements store.TaskStore. The conditional update is the
// atomic check-and-set that keeps each event at most once.
func (s *TaskStore) MarkDelivered(
	ctx context.Context,
	id string,
	kind domain.EventKind,
	at time.Time,
) (bool, error) {
	column, err := deliveryColumn(kind)
	if err != nil {
		return false, err
	}

	query := s.db.Rebind(fmt.Sprintf(
		`UPDATE calendar_tasks SET %[1]s = ? WHERE id = ? AND %[1]s IS NULL`, column))
	result, err := s.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return false, store.NewStoreError("task", "mark_delivered", "update failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	// Zero rows: either already delivered or the task is gone.
	var exists int
	err = sqlx.GetContext(ctx, s.db, &exists,
		s.db.Rebind(`SELECT COUNT(*) FROM calendar_tasks WHERE id = ?`), id)
	if err != nil {
		return false, store.NewStoreError("task", "mark_delivered", "existence check failed", MapError(err))
	}
	if exists == 0 {
		return false, store.ErrTaskNotFound
	}
	return false, nil
}
