package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// ShellState is the coarse authentication state of the storefront shell.
type ShellState string

const (
	// StateLoading means an auth event is being resolved; clients show a
	// splash instead of either surface.
	StateLoading ShellState = "loading"

	// StateUnauthenticated means no user is signed in.
	StateUnauthenticated ShellState = "unauthenticated"

	// StateAuthenticated means a user is signed in and their capability
	// has been resolved.
	StateAuthenticated ShellState = "authenticated"
)

// ShellSnapshot is one observable state of the shell. Capability is only
// meaningful when State is StateAuthenticated.
type ShellSnapshot struct {
	State      ShellState        `json:"state"`
	UID        string            `json:"uid,omitempty"`
	Email      string            `json:"email,omitempty"`
	Capability models.Capability `json:"capability,omitempty"`
}

// Public returns the snapshot with the identity fields stripped. The shell
// state machine is process-wide, so surfaces reachable without
// authentication must not echo whoever signed in last.
func (s ShellSnapshot) Public() ShellSnapshot {
	s.UID = ""
	s.Email = ""
	return s
}

// CapabilityResolver resolves a signed-in user's capability from their
// profile. Implemented by ProfileService.
type CapabilityResolver interface {
	ResolveCapability(ctx context.Context, idToken, uid string) models.Capability
}

// Bootstrap tracks the shell's authentication state across sign-in and
// sign-out events and fans the resulting snapshots out to subscribers.
//
// Capability resolution runs asynchronously, so events can arrive faster
// than their resolutions complete. Every event bumps a generation counter
// and a resolution only publishes if its generation is still current, so
// the final published state always reflects the latest event no matter how
// the in-flight reads interleave.
type Bootstrap struct {
	resolver CapabilityResolver

	mu      sync.Mutex
	gen     uint64
	current ShellSnapshot
	subs    map[int]chan ShellSnapshot
	nextSub int
}

// NewBootstrap creates a bootstrap state machine in the loading state.
func NewBootstrap(resolver CapabilityResolver) *Bootstrap {
	return &Bootstrap{
		resolver: resolver,
		current:  ShellSnapshot{State: StateLoading},
		subs:     make(map[int]chan ShellSnapshot),
	}
}

// Current returns the latest published snapshot.
func (b *Bootstrap) Current() ShellSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe registers a listener for shell state changes. The current
// snapshot is delivered immediately, then every published change follows.
// A slow subscriber misses intermediate snapshots rather than blocking the
// publisher; the latest snapshot is always retrievable via Current.
//
// The returned function unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Bootstrap) Subscribe() (<-chan ShellSnapshot, func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan ShellSnapshot, 4)
	b.subs[id] = ch
	ch <- b.current
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// OnSignedIn handles a sign-in event for the given session. The capability
// read runs in the calling goroutine's context but publishes asynchronously
// with respect to later events: if another event supersedes this one while
// the profile read is in flight, the stale result is discarded.
func (b *Bootstrap) OnSignedIn(ctx context.Context, session *models.Session) {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	capability := b.resolver.ResolveCapability(ctx, session.IDToken, session.UID)

	b.publish(gen, ShellSnapshot{
		State:      StateAuthenticated,
		UID:        session.UID,
		Email:      session.Email,
		Capability: capability,
	})
}

// OnSignedOut handles a sign-out event. Publishes immediately; the
// generation bump also invalidates any capability resolution still in
// flight for a previous sign-in.
func (b *Bootstrap) OnSignedOut() {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	b.publish(gen, ShellSnapshot{State: StateUnauthenticated})
}

// publish applies a snapshot if gen is still the current generation and
// fans it out to subscribers.
func (b *Bootstrap) publish(gen uint64, snapshot ShellSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		log.Debug().
			Uint64("gen", gen).
			Uint64("current_gen", b.gen).
			Msg("Discarding superseded shell state")
		return
	}

	b.current = snapshot
	for _, sub := range b.subs {
		select {
		case sub <- snapshot:
		default:
			// Subscriber is behind; it can catch up via Current
		}
	}
}
