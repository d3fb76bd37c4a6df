package sharedcontext

import (
	"sync"
	"time"
)

// PresenceState is a replica participant's coarse activity state.
type PresenceState string

const (
	PresenceActive  PresenceState = "active"
	PresenceIdle    PresenceState = "idle"
	PresenceAway    PresenceState = "away"
	PresenceOffline PresenceState = "offline"
)

// Visibility controls which peers may observe a Presence publication.
type Visibility string

const (
	VisibilityInvisible   Visibility = "invisible"
	VisibilityPublic      Visibility = "public"
	VisibilityConnections Visibility = "connections"
	VisibilityClose       Visibility = "close"
	VisibilityPrivate     Visibility = "private"
)

// Presence is a last-write-wins, non-durable broadcast: unlike graph
// mutations it is never appended to the change log or merged via vector
// clocks (spec.md §4.7).
type Presence struct {
	AgentDID       string
	State          PresenceState
	Cursor         *string
	Selection      *string
	ViewportBounds *string
	LastActivity   time.Time
	Visibility     Visibility
}

// PresenceBoard holds the most recently published Presence per agent,
// overwriting on every publish (last-write-wins).
type PresenceBoard struct {
	mu sync.Mutex
	m  map[string]Presence
}

// NewPresenceBoard returns an empty board.
func NewPresenceBoard() *PresenceBoard {
	return &PresenceBoard{m: make(map[string]Presence)}
}

// Publish overwrites agentDID's presence unconditionally.
func (b *PresenceBoard) Publish(p Presence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m == nil {
		b.m = make(map[string]Presence)
	}
	b.m[p.AgentDID] = p
}

// connectionChecker reports whether two agents have an accepted connection,
// the "connections" visibility tier's access predicate.
type connectionChecker func(viewer, owner string) bool

// accessChecker reports whether viewer holds at least the given ACL level
// on owner's context, the "close" visibility tier's access predicate.
type accessChecker func(viewer string, level AccessLevel) bool

// VisibleTo filters the board to the presences viewer may observe, applying
// spec.md §4.7's visibility rule: invisible hides unconditionally;
// public ⇒ all; connections ⇒ accepted connections; close ⇒ admin/owner;
// private ⇒ none. These tiers filter other agents' presences; the viewer's
// own presence is always included, whatever its visibility.
func (b *PresenceBoard) VisibleTo(viewer string, connected connectionChecker, hasAccess accessChecker) []Presence {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Presence, 0, len(b.m))
	for _, p := range b.m {
		if p.AgentDID == viewer {
			out = append(out, p)
			continue
		}
		switch p.Visibility {
		case VisibilityInvisible, VisibilityPrivate:
			continue
		case VisibilityPublic:
			out = append(out, p)
		case VisibilityConnections:
			if connected != nil && connected(viewer, p.AgentDID) {
				out = append(out, p)
			}
		case VisibilityClose:
			if hasAccess != nil && hasAccess(viewer, AccessAdmin) {
				out = append(out, p)
			}
		}
	}
	return out
}
