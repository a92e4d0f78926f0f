// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts the push, calendar task, settings and
// diagnostics routes to the internal services and the reminder scheduler.
package api
