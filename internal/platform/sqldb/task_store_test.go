package sqldb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
	"github.com/phrazzld/tasktracker-api/internal/store"
	"github.com/phrazzld/tasktracker-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTask(id, date, clock string) *domain.Task {
	return &domain.Task{
		ID:        id,
		TenantID:  domain.DefaultTaskTenant,
		Title:     "Task " + id,
		Category:  domain.CategoryStudy,
		Date:      date,
		Time:      clock,
		Priority:  domain.PriorityMedium,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func TestTaskStore_CRUD(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)

	task := newTask("t1", "2025-06-01", "14:00")
	task.Description = "chapter 3"
	require.NoError(t, tasks.Create(ctx, task))

	got, err := tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Task t1", got.Title)
	assert.Equal(t, "chapter 3", got.Description)
	assert.Equal(t, "14:00", got.Time)
	assert.True(t, got.CreatedAt.Equal(baseTime))
	assert.Nil(t, got.Delivery.ReminderAt)
	assert.Nil(t, got.Delivery.StartAt)

	got.Title = "Renamed"
	got.Completed = true
	got.UpdatedAt = baseTime.Add(time.Minute)
	require.NoError(t, tasks.Update(ctx, got))

	got, err = tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Completed)

	require.NoError(t, tasks.Delete(ctx, "t1"))
	_, err = tasks.GetByID(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_Errors(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)

	require.NoError(t, tasks.Create(ctx, newTask("dup", "2025-06-01", "09:00")))

	err := tasks.Create(ctx, newTask("dup", "2025-06-01", "09:00"))
	assert.ErrorIs(t, err, store.ErrTaskExists)
	assert.True(t, store.IsDuplicateError(err))

	invalid := newTask("bad", "2025-06-01", "9am")
	assert.ErrorIs(t, tasks.Create(ctx, invalid), store.ErrInvalidEntity)

	assert.ErrorIs(t, tasks.Update(ctx, newTask("missing", "2025-06-01", "09:00")), store.ErrTaskNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, "missing"), store.ErrTaskNotFound)
}

func TestTaskStore_List(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)

	fixtures := []*domain.Task{
		newTask("c", "2025-06-02", "08:00"),
		newTask("a", "2025-06-01", "10:00"),
		newTask("b", "2025-06-01", "09:00"),
		newTask("d", "2025-06-05", "07:00"),
	}
	fixtures[3].Completed = true
	other := newTask("e", "2025-06-01", "11:00")
	other.TenantID = "someone-else"
	fixtures = append(fixtures, other)
	for _, task := range fixtures {
		require.NoError(t, tasks.Create(ctx, task))
	}

	ids := func(list []*domain.Task) []string {
		out := make([]string, 0, len(list))
		for _, task := range list {
			out = append(out, task.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter store.TaskFilter
		want   []string
	}{
		{"all tenants", store.TaskFilter{}, []string{"b", "a", "e", "c", "d"}},
		{"tenant", store.TaskFilter{TenantID: domain.DefaultTaskTenant}, []string{"b", "a", "c", "d"}},
		{"single date", store.TaskFilter{TenantID: domain.DefaultTaskTenant, Date: "2025-06-01"}, []string{"b", "a"}},
		{"range", store.TaskFilter{From: "2025-06-02", To: "2025-06-05"}, []string{"c", "d"}},
		{"pending only", store.TaskFilter{From: "2025-06-02", PendingOnly: true}, []string{"c"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			list, err := tasks.List(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(list))
		})
	}
}

func TestTaskStore_MarkDelivered(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)
	require.NoError(t, tasks.Create(ctx, newTask("t1", "2025-06-01", "14:00")))

	at := baseTime.Add(2 * time.Hour)

	won, err := tasks.MarkDelivered(ctx, "t1", domain.EventReminder, at)
	require.NoError(t, err)
	assert.True(t, won, "first claim should win")

	won, err = tasks.MarkDelivered(ctx, "t1", domain.EventReminder, at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose")

	won, err = tasks.MarkDelivered(ctx, "t1", domain.EventStart, at)
	require.NoError(t, err)
	assert.True(t, won, "events are claimed independently")

	got, err := tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.Delivery.ReminderAt)
	assert.True(t, got.Delivery.ReminderAt.Equal(at))
	assert.True(t, got.Delivery.Delivered(domain.EventStart))

	_, err = tasks.MarkDelivered(ctx, "missing", domain.EventStart, at)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = tasks.MarkDelivered(ctx, "t1", domain.EventKind("bogus"), at)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestTaskStore_MarkDeliveredConcurrent(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)
	require.NoError(t, tasks.Create(ctx, newTask("t1", "2025-06-01", "14:00")))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := tasks.MarkDelivered(ctx, "t1", domain.EventStart, baseTime)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestTaskStore_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	tasks := sqldb.NewTaskStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, tx *sqlx.Tx) {
		require.NoError(t, tasks.WithTx(tx).Create(ctx, newTask("tx", "2025-06-01", "10:00")))
		_, err := tasks.WithTx(tx).GetByID(ctx, "tx")
		require.NoError(t, err)
	})

	_, err := tasks.GetByID(ctx, "tx")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestRunInTransaction(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	tasks := sqldb.NewTaskStore(db, nil)

	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		return tasks.WithTx(tx).Create(ctx, newTask("committed", "2025-06-01", "10:00"))
	})
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		require.NoError(t, tasks.WithTx(tx).Create(ctx, newTask("rolled", "2025-06-01", "10:00")))
		return store.ErrInvalidEntity
	})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	_, err = tasks.GetByID(ctx, "committed")
	assert.NoError(t, err)
	_, err = tasks.GetByID(ctx, "rolled")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	assert.Panics(t, func() {
		_ = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
			require.NoError(t, tasks.WithTx(tx).Create(ctx, newTask("panicked", "2025-06-01", "10:00")))
			panic("boom")
		})
	})
	_, err = tasks.GetByID(ctx, "panicked")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_ClearDeliveryOpensNewEpoch(t *testing.T) {
	ctx := context.Background()
	tasks := sqldb.NewTaskStore(testdb.Open(t), nil)
	require.NoError(t, tasks.Create(ctx, newTask("t1", "2025-06-01", "14:00")))

	_, err := tasks.MarkDelivered(ctx, "t1", domain.EventReminder, baseTime)
	require.NoError(t, err)
	_, err = tasks.MarkDelivered(ctx, "t1", domain.EventStart, baseTime)
	require.NoError(t, err)

	got, err := tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	got.Title = "Update keeps delivery"
	require.NoError(t, tasks.Update(ctx, got))
	got, err = tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Delivery.Delivered(domain.EventStart))

	require.NoError(t, tasks.ClearDelivery(ctx, "t1"))
	got, err = tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.Delivery.Delivered(domain.EventReminder))
	assert.False(t, got.Delivery.Delivered(domain.EventStart))

	won, err := tasks.MarkDelivered(ctx, "t1", domain.EventStart, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, won)

	assert.ErrorIs(t, tasks.ClearDelivery(ctx, "missing"), store.ErrTaskNotFound)
}
