// Package notifications posts pipeline lifecycle events to a configured
// webhook, falling back to a noop service when none is set.
package notifications
