// Copyright (c) 2026 Quanta Exchange Contributors
//
// snapshot keeps one business snapshot (a recursive JSON value) per user in
// sync with every patch ever pushed to that user, and lets a client-facing
// session block on peek until the next batch of patches is ready. The
// blocking peek follows the same block/wake/re-check shape as the teacher's
// LiveClient read loop, built here on a per-user sync.Cond instead of a
// socket read deadline.

package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/patch"
)

// ErrUnknownUser is returned by operations addressing a user that was never
// initialized, or that was removed.
var ErrUnknownUser = errors.New("snapshot: unknown user")

const (
	DefaultPeekTimeout = 30 * time.Second
	DefaultDedupCap    = 10_000
)

type userState struct {
	mu       sync.Mutex
	cond     *sync.Cond
	snapshot *fastjson.Value
	pending  []*fastjson.Value
	dedup    *dedupSet
	woken    bool
	removed  bool
}

func newUserState(dedupCap int) *userState {
	u := &userState{
		snapshot: fastjson.MustParse("{}"),
		dedup:    newDedupSet(dedupCap),
	}
	u.cond = sync.NewCond(&u.mu)
	return u
}

// Manager owns every user's snapshot, pending-patch queue, and notifier.
type Manager struct {
	mu          sync.RWMutex
	users       map[string]*userState
	peekTimeout time.Duration
	dedupCap    int
}

// NewManager creates a Manager. A zero peekTimeout or dedupCap falls back to
// the spec defaults (30s, 10000 entries).
func NewManager(peekTimeout time.Duration, dedupCap int) *Manager {
	if peekTimeout <= 0 {
		peekTimeout = DefaultPeekTimeout
	}
	if dedupCap <= 0 {
		dedupCap = DefaultDedupCap
	}
	return &Manager{
		users:       make(map[string]*userState),
		peekTimeout: peekTimeout,
		dedupCap:    dedupCap,
	}
}

// InitializeUser creates an empty snapshot entry for id. Idempotent: calling
// it again for an already-known user is a no-op.
func (m *Manager) InitializeUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; ok {
		return
	}
	m.users[id] = newUserState(m.dedupCap)
}

// RemoveUser drops id's entry and wakes any blocked peek with an empty,
// no-longer-valid result.
func (m *Manager) RemoveUser(id string) {
	m.mu.Lock()
	u, ok := m.users[id]
	if ok {
		delete(m.users, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	u.mu.Lock()
	u.removed = true
	u.mu.Unlock()
	u.cond.Broadcast()
}

func (m *Manager) user(id string) (*userState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok
}

// PushPatch appends patch to id's pending queue, merges it into id's live
// snapshot, and wakes every blocked peek for id. A patch whose msgID has
// already been seen (within the bounded dedup window) is a no-op. Two
// successive PushPatch calls append to pending in call order, so every
// later peek observes them in that same order.
func (m *Manager) PushPatch(id, msgID string, p *fastjson.Value) error {
	u, ok := m.user(id)
	if !ok {
		return ErrUnknownUser
	}
	u.mu.Lock()
	if u.removed {
		u.mu.Unlock()
		return ErrUnknownUser
	}
	if !u.dedup.admit(msgID) {
		u.mu.Unlock()
		return nil
	}
	u.pending = append(u.pending, p)
	u.snapshot = patch.Merge(u.snapshot, p)
	u.mu.Unlock()
	u.cond.Broadcast()
	return nil
}

// Peek drains and returns id's pending-patch queue. If the queue is empty
// it blocks until a patch arrives, the manager's peek timeout elapses, ctx
// is cancelled, or the user is removed -- whichever comes first. A timeout
// or cancellation with nothing pending returns a nil, non-error result.
func (m *Manager) Peek(ctx context.Context, id string) ([]*fastjson.Value, error) {
	u, ok := m.user(id)
	if !ok {
		return nil, ErrUnknownUser
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.pending) > 0 {
		return u.drainLocked(), nil
	}
	if u.removed {
		return nil, ErrUnknownUser
	}

	stop := make(chan struct{})
	timer := time.AfterFunc(m.peekTimeout, func() { m.wake(u, stop) })
	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}
	go func() {
		select {
		case <-ctxDone:
			m.wake(u, stop)
		case <-stop:
		}
	}()
	defer func() {
		timer.Stop()
		close(stop)
	}()

	for len(u.pending) == 0 && !u.woken && !u.removed {
		u.cond.Wait()
	}
	u.woken = false

	if u.removed {
		return nil, ErrUnknownUser
	}
	return u.drainLocked(), nil
}

// wake flips the woken flag and broadcasts, unless stop has already fired
// (the peek returned via the other path first).
func (m *Manager) wake(u *userState, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}
	u.mu.Lock()
	u.woken = true
	u.mu.Unlock()
	u.cond.Broadcast()
}

func (u *userState) drainLocked() []*fastjson.Value {
	if len(u.pending) == 0 {
		return nil
	}
	out := u.pending
	u.pending = nil
	return out
}

// ApplyPatches merges patches into id's snapshot in order, without
// enqueuing them to the pending-patch queue, so a later Peek does not
// return them.
func (m *Manager) ApplyPatches(id string, patches []*fastjson.Value) error {
	u, ok := m.user(id)
	if !ok {
		return ErrUnknownUser
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range patches {
		u.snapshot = patch.Merge(u.snapshot, p)
	}
	return nil
}

// Snapshot returns id's current merged snapshot value.
func (m *Manager) Snapshot(id string) (*fastjson.Value, error) {
	u, ok := m.user(id)
	if !ok {
		return nil, ErrUnknownUser
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshot, nil
}
