// Package notifications publishes assembly outcomes to ntfy.
//
// NewService returns a no-op publisher when no topic is configured, so the
// registry can call Publish unconditionally.
package notifications
