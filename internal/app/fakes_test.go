package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ito/internal/config"
	"ito/internal/domain"
	"ito/internal/ports"
	"ito/internal/ports/docstore"
)

type fakeIdentities struct {
	mu    sync.Mutex
	users map[string]ports.Identity
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{users: map[string]ports.Identity{}}
}

func (f *fakeIdentities) add(id string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = ports.Identity{ID: id, CreatedAt: createdAt, Anonymous: true}
}

func (f *fakeIdentities) GetIdentity(_ context.Context, id string) (ports.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ident, ok := f.users[id]
	if !ok {
		return ports.Identity{}, ports.ErrIdentityNotFound
	}
	return ident, nil
}

func (f *fakeIdentities) DeleteIdentity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ports.ErrIdentityNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeIdentities) ListIdentities(context.Context, string, int) ([]ports.Identity, string, error) {
	return nil, "", errors.New("not used")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc        *Service
	store      *docstore.Store
	identities *fakeIdentities
	clock      *fakeClock
}

func newHarness(t *testing.T, cfg config.GameConfig) *harness {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	h := &harness{
		store:      docstore.NewMemoryStore(),
		identities: newFakeIdentities(),
		clock:      clock,
	}
	h.svc = NewService(h.store, h.identities, cfg, nil)
	h.svc.SetClock(clock.Now)
	return h
}

// player registers an identity old enough to pass the account cooldown.
func (h *harness) player(id string) string {
	h.identities.add(id, h.clock.Now().Add(-time.Hour))
	return id
}

func (h *harness) room(t *testing.T, roomID string) *domain.Room {
	t.Helper()
	room, err := h.svc.loadRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("load room %s: %v", roomID, err)
	}
	return room
}

func wantKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
}
