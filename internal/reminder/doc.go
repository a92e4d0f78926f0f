// Package reminder arms and fires the per-task reminder and start
// notifications, plus the daily digests.
//
// The Scheduler keeps no durable timer state. Every cycle re-derives the
// desired timer set from a task snapshot and the current settings, and the
// only persisted state is the delivered marker stored with each task. A
// fire claims that marker in storage before dispatching, so an event is
// delivered at most once per scheduling epoch even across restarts and
// racing callbacks.
//
// Channel policy: every fire is pushed through the dispatcher, and is also
// shown locally when a live client is in the foreground. Both carry the
// same tag, so a client receiving both collapses them.
package reminder
