// Package service contains the application use cases: calendar task
// management, push subscription registration and notification settings.
//
// Services coordinate the stores defined in internal/store, apply
// transactional boundaries where an operation reads then writes, translate
// store errors into service-level sentinels, and publish change events that
// the reminder scheduler consumes. They never depend on a concrete database.
package service
