// Package live delivers notifications to clients connected over a WebSocket
// while the app is open in the foreground. It is the local channel next to
// Web Push: the same payload and tag, so a client showing both collapses them.
package live
