package sqldb_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
	"github.com/phrazzld/tasktracker-api/internal/store"
	"github.com/phrazzld/tasktracker-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriber(id, endpoint, tenant string) *domain.Subscriber {
	return &domain.Subscriber{
		ID:         uuid.MustParse(id),
		Endpoint:   endpoint,
		Keys:       domain.SubscriptionKeys{P256dh: "p256dh-" + id[:4], Auth: "auth-" + id[:4]},
		TenantID:   tenant,
		Active:     true,
		CreatedAt:  baseTime,
		LastUsedAt: baseTime,
	}
}

func TestSubscriberStore_UpsertKeepsOneRowPerEndpoint(t *testing.T) {
	ctx := context.Background()
	subs := sqldb.NewSubscriberStore(testdb.Open(t), nil)

	first := newSubscriber("11111111-1111-1111-1111-111111111111", "https://push.example.com/a", "anonymous")
	saved, err := subs.Upsert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved.ID)

	require.NoError(t, subs.Deactivate(ctx, first.Endpoint))

	again := newSubscriber("22222222-2222-2222-2222-222222222222", first.Endpoint, "someone")
	again.Keys = domain.SubscriptionKeys{P256dh: "rotated", Auth: "rotated-auth"}
	again.LastUsedAt = baseTime.Add(time.Hour)
	saved, err = subs.Upsert(ctx, again)
	require.NoError(t, err)

	assert.Equal(t, first.ID, saved.ID, "conflict keeps the original id")
	assert.Equal(t, "anonymous", saved.TenantID, "conflict keeps the original tenant")
	assert.True(t, saved.Active, "re-subscribing reactivates")
	assert.Equal(t, "rotated", saved.Keys.P256dh)
	assert.True(t, saved.LastUsedAt.Equal(baseTime.Add(time.Hour)))

	total, err := subs.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSubscriberStore_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	subs := sqldb.NewSubscriberStore(testdb.Open(t), nil)

	for _, sub := range []*domain.Subscriber{
		newSubscriber("11111111-1111-1111-1111-111111111111", "https://push.example.com/a", "anonymous"),
		newSubscriber("22222222-2222-2222-2222-222222222222", "https://push.example.com/b", "alice"),
		newSubscriber("33333333-3333-3333-3333-333333333333", "https://push.example.com/c", "alice"),
	} {
		_, err := subs.Upsert(ctx, sub)
		require.NoError(t, err)
	}
	require.NoError(t, subs.Deactivate(ctx, "https://push.example.com/c"))

	all, err := subs.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	alice, err := subs.ListActive(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "https://push.example.com/b", alice[0].Endpoint)

	active, err := subs.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	total, err := subs.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestSubscriberStore_MarkUsedAndMissing(t *testing.T) {
	ctx := context.Background()
	subs := sqldb.NewSubscriberStore(testdb.Open(t), nil)

	sub := newSubscriber("11111111-1111-1111-1111-111111111111", "https://push.example.com/a", "anonymous")
	_, err := subs.Upsert(ctx, sub)
	require.NoError(t, err)

	used := baseTime.Add(3 * time.Hour)
	require.NoError(t, subs.MarkUsed(ctx, sub.ID, used))

	got, err := subs.GetByEndpoint(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.True(t, got.LastUsedAt.Equal(used))

	assert.ErrorIs(t, subs.MarkUsed(ctx, uuid.New(), used), store.ErrSubscriberNotFound)
	assert.ErrorIs(t, subs.Deactivate(ctx, "https://push.example.com/none"), store.ErrSubscriberNotFound)
	_, err = subs.GetByEndpoint(ctx, "https://push.example.com/none")
	assert.ErrorIs(t, err, store.ErrSubscriberNotFound)
}

func TestSubscriberStore_RejectsInvalid(t *testing.T) {
	subs := sqldb.NewSubscriberStore(testdb.Open(t), nil)

	sub := newSubscriber("11111111-1111-1111-1111-111111111111", "not-a-url", "anonymous")
	_, err := subs.Upsert(context.Background(), sub)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	settings := sqldb.NewSettingsStore(testdb.Open(t), nil)

	_, err := settings.Get(ctx, "default")
	assert.ErrorIs(t, err, store.ErrSettingsNotFound)

	s := domain.DefaultSettings("default")
	s.UpdatedAt = baseTime
	require.NoError(t, settings.Save(ctx, &s))

	s.TaskReminders = false
	s.ReminderLeadMinutes = 15
	s.UpdatedAt = baseTime.Add(time.Minute)
	require.NoError(t, settings.Save(ctx, &s))

	got, err := settings.Get(ctx, "default")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.False(t, got.TaskReminders)
	assert.Equal(t, 15, got.ReminderLeadMinutes)
	assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Minute)))

	s.ReminderLeadMinutes = -1
	assert.ErrorIs(t, settings.Save(ctx, &s), store.ErrInvalidEntity)
}
