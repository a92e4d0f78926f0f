// Package events carries task and settings change notifications from the
// services that make changes to the components that react to them, chiefly
// the reminder scheduler, without either side importing the other.
package events
