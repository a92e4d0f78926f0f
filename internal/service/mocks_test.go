package service_test

import (
	"context"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/stretchr/testify/mock"
)

// MockEventEmitter mocks the events.EventEmitter interface
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// eventOfType matches a change event by type and task id.
func eventOfType(eventType, taskID string) any {
	return mock.MatchedBy(func(e *events.ChangeEvent) bool {
		return e.Type == eventType && e.TaskID == taskID
	})
}

// MockSettingsStore mocks the store.SettingsStore interface
type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) Get(ctx context.Context, tenantID string) (*domain.Settings, error) {
	args := m.Called(ctx, tenantID)
	settings, _ := args.Get(0).(*domain.Settings)
	return settings, args.Error(1)
}

func (m *MockSettingsStore) Save(ctx context.Context, settings *domain.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}
