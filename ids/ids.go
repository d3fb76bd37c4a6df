// Package ids centralizes identifier generation so every component mints IDs
// the same way (UUIDv4 via google/uuid) rather than hand-rolling random
// strings at each call site.
package ids

import "github.com/google/uuid"

// New returns a fresh random identifier suitable for goals, tasks, traces,
// changes, checkpoints, and ContextView nonces.
func New() string {
	return uuid.NewString()
}

// NewPrefixed returns a fresh identifier prefixed with prefix and a dash,
// e.g. NewPrefixed("task") -> "task-3fa85f64-...". Prefixes make log lines
// and traces self-describing without a separate type tag.
func NewPrefixed(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
