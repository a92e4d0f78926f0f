package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Service sentinel errors. The API layer maps these to HTTP status codes.
var (
	// ErrTaskNotFound indicates the referenced calendar task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskExists indicates a task with the requested id already exists.
	// API layer should map this to HTTP 409 Conflict.
	ErrTaskExists = errors.New("task already exists")

	// ErrSubscriptionNotFound indicates no subscription exists for an endpoint.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ServiceError wraps unexpected failures from a service with context.
type ServiceError struct {
	// Service names the failing service (e.g. "task", "settings")
	Service string
	// Operation is the operation that failed (e.g. "create_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError. Known sentinels and validation
// errors are returned directly without wrapping.
func NewServiceError(service, operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrTaskExists), errors.Is(err, store.ErrTaskExists):
		return ErrTaskExists
	case errors.Is(err, ErrSubscriptionNotFound), errors.Is(err, store.ErrSubscriberNotFound):
		return ErrSubscriptionNotFound
	case domain.IsValidationError(err):
		return err
	}

	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
