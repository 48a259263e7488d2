package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"ito/internal/config"
	"ito/internal/domain"
	"ito/internal/ports"
)

const (
	roomsCollection     = "rooms"
	passwordsCollection = "passwords"
	playersCollection   = "players"
)

// Report counts what one sweep reclaimed.
type Report struct {
	PlayersCleaned   int `json:"playersCleaned"`
	RoomsCleaned     int `json:"roomsCleaned"`
	PasswordsCleaned int `json:"passwordsCleaned"`
}

// Service reclaims abandoned players, identities, rooms and password entries.
type Service struct {
	store      ports.DocumentStore
	identities ports.IdentityPort
	logger     ports.Logger
	cfg        config.GameConfig
	now        func() time.Time
}

// NewService constructs a reaper over the shared store and identity provider.
func NewService(store ports.DocumentStore, identities ports.IdentityPort, logger ports.Logger, cfg config.GameConfig) *Service {
	return &Service{
		store:      store,
		identities: identities,
		logger:     logger,
		cfg:        cfg.WithDefaults(),
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Run sweeps players, then rooms, then passwords. A failed category is
// logged and does not stop the ones after it.
func (s *Service) Run(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
		err    error
	)
	if report.PlayersCleaned, err = s.SweepPlayers(ctx); err != nil {
		s.logger.Error("player sweep failed: %v", err)
		errs = append(errs, err)
	}
	if report.RoomsCleaned, err = s.SweepRooms(ctx); err != nil {
		s.logger.Error("room sweep failed: %v", err)
		errs = append(errs, err)
	}
	if report.PasswordsCleaned, err = s.SweepPasswords(ctx); err != nil {
		s.logger.Error("password sweep failed: %v", err)
		errs = append(errs, err)
	}
	s.logger.Info("cleanup finished: players=%d rooms=%d passwords=%d",
		report.PlayersCleaned, report.RoomsCleaned, report.PasswordsCleaned)
	return report, errors.Join(errs...)
}

// Start runs the sweep every interval until ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.CleanupInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Errors are already logged per category.
			_, _ = s.Run(ctx)
		}
	}
}

func (s *Service) listCollection(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	err := s.store.Get(ctx, collection, &out)
	if errors.Is(err, ports.ErrNotFound) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// SweepPlayers removes stale player records together with their identity,
// then removes anonymous identities that never got a player record.
func (s *Service) SweepPlayers(ctx context.Context) (int, error) {
	players, err := s.listCollection(ctx, playersCollection)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().UnixMilli() - s.cfg.PlayerLifespanMs

	var stale []string
	for id, raw := range players {
		var p domain.Player
		if err := json.Unmarshal(raw, &p); err != nil || p.LastConnected < cutoff {
			stale = append(stale, id)
			continue
		}
		_, err := s.identities.GetIdentity(ctx, id)
		if errors.Is(err, ports.ErrIdentityNotFound) {
			stale = append(stale, id)
		} else if err != nil {
			s.logger.Warn("cleanup: identity lookup for %s failed: %v", id, err)
		}
	}
	sort.Strings(stale)

	removed := 0
	for _, id := range stale {
		if err := s.store.Delete(ctx, playersCollection+"/"+id); err != nil {
			s.logger.Warn("cleanup: delete player %s failed: %v", id, err)
			continue
		}
		removed++
		if err := s.identities.DeleteIdentity(ctx, id); err != nil && !errors.Is(err, ports.ErrIdentityNotFound) {
			s.logger.Warn("cleanup: delete identity %s failed: %v", id, err)
		}
	}

	removed += s.sweepOrphanIdentities(ctx)
	return removed, nil
}

// sweepOrphanIdentities deletes anonymous identities older than the player
// lifespan that have no player record. Identities with linked credentials
// are never touched.
func (s *Service) sweepOrphanIdentities(ctx context.Context) int {
	players, err := s.listCollection(ctx, playersCollection)
	if err != nil {
		s.logger.Warn("cleanup: reload players failed, skipping orphan sweep: %v", err)
		return 0
	}
	cutoff := s.now().Add(-s.cfg.PlayerLifespan())

	var orphans []string
	for ident, err := range Identities(ctx, s.identities, s.cfg.IdentityPageSize) {
		if err != nil {
			s.logger.Warn("cleanup: identity enumeration stopped: %v", err)
			break
		}
		if !ident.Anonymous || ident.CreatedAt.After(cutoff) {
			continue
		}
		if _, ok := players[ident.ID]; ok {
			continue
		}
		orphans = append(orphans, ident.ID)
	}

	removed := 0
	for _, id := range orphans {
		err := s.identities.DeleteIdentity(ctx, id)
		switch {
		case errors.Is(err, ports.ErrIdentityNotFound):
			s.logger.Debug("cleanup: identity %s already gone", id)
		case err != nil:
			s.logger.Warn("cleanup: delete identity %s failed: %v", id, err)
		default:
			removed++
		}
	}
	return removed
}

// Identities yields every identity page by page. Iteration stops after the
// first error, which is yielded once.
func Identities(ctx context.Context, port ports.IdentityPort, pageSize int) iter.Seq2[ports.Identity, error] {
	return func(yield func(ports.Identity, error) bool) {
		cursor := ""
		for {
			page, next, err := port.ListIdentities(ctx, cursor, pageSize)
			if err != nil {
				yield(ports.Identity{}, err)
				return
			}
			for _, ident := range page {
				if !yield(ident, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			cursor = next
		}
	}
}

// SweepRooms deletes rooms that expired or have nobody in their active config.
func (s *Service) SweepRooms(ctx context.Context) (int, error) {
	rooms, err := s.listCollection(ctx, roomsCollection)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().UnixMilli() - s.cfg.GameLifespanMs

	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	removed := 0
	for _, id := range ids {
		var room domain.Room
		if err := json.Unmarshal(rooms[id], &room); err != nil {
			s.logger.Warn("cleanup: room %s is not a record, skipping: %v", id, err)
			continue
		}
		if room.LastUpdated >= cutoff && hasPlayers(&room) {
			continue
		}
		if err := s.store.Delete(ctx, roomsCollection+"/"+id); err != nil {
			s.logger.Warn("cleanup: delete room %s failed: %v", id, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// hasPlayers checks the playerInfo the phase points at. Without a phase
// either location counts.
func hasPlayers(room *domain.Room) bool {
	if cfg := room.ActiveConfig(); cfg != nil {
		return len(cfg.PlayerInfo) > 0
	}
	if _, ok := room.CurrentPhase(); ok {
		return false
	}
	staged := room.State != nil && room.State.Config != nil && len(room.State.Config.PlayerInfo) > 0
	committed := room.Config != nil && len(room.Config.PlayerInfo) > 0
	return staged || committed
}

// SweepPasswords deletes index entries whose room is gone. Passwords are
// listed before rooms: a room is always written before its index entry, so
// any entry seen here whose room is missing from the later room listing is
// truly orphaned.
func (s *Service) SweepPasswords(ctx context.Context) (int, error) {
	passwords, err := s.listCollection(ctx, passwordsCollection)
	if err != nil {
		return 0, err
	}
	rooms, err := s.listCollection(ctx, roomsCollection)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(passwords))
	for pw := range passwords {
		keys = append(keys, pw)
	}
	sort.Strings(keys)

	removed := 0
	for _, pw := range keys {
		var roomID string
		if err := json.Unmarshal(passwords[pw], &roomID); err != nil {
			continue
		}
		if _, ok := rooms[roomID]; ok {
			continue
		}
		ok, err := s.releaseIfUnchanged(ctx, pw, roomID)
		if err != nil {
			s.logger.Warn("cleanup: delete password %s failed: %v", pw, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

var errIndexChanged = errors.New("password index changed")

func (s *Service) releaseIfUnchanged(ctx context.Context, password, roomID string) (bool, error) {
	_, err := s.store.Transact(ctx, passwordsCollection+"/"+password, func(current json.RawMessage) (any, error) {
		var owner string
		if current == nil || json.Unmarshal(current, &owner) != nil || owner != roomID {
			return nil, errIndexChanged
		}
		return nil, nil
	})
	if errors.Is(err, errIndexChanged) {
		return false, nil
	}
	return err == nil, err
}
