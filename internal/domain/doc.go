// Package domain contains the core business entities, value objects, and
// domain logic of the application: calendar tasks and their per-event
// delivery state, push subscribers, and notification settings. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
