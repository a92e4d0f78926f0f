// Package notification turns one logical notification into Web Push
// deliveries across every active subscriber.
//
// A Dispatcher loads subscribers from a Registry, fans out attempts through a
// Gateway under a concurrency limit and a per-attempt timeout, and applies the
// registry side effects of each outcome: delivered attempts touch the
// subscriber's last-used time, permanent failures deactivate it, transient
// failures leave it alone. Partial failure is reported in the Result, never
// as an error.
//
// The message builders in this package produce the payloads for task
// reminders, task starts, completions, daily digests and the other
// notifications the application sends.
package notification
