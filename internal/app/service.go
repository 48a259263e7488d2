package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ito/internal/config"
	"ito/internal/domain"
	"ito/internal/ports"
)

// Service contains the room use-cases. It keeps no state of its own; every
// call reads and writes the shared document store.
type Service struct {
	store      ports.DocumentStore
	identities ports.IdentityPort
	cfg        config.GameConfig

	now   func() time.Time
	newID func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(store ports.DocumentStore, identities ports.IdentityPort, cfg config.GameConfig, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		store:      store,
		identities: identities,
		cfg:        cfg.WithDefaults(),
		now:        time.Now,
		newID:      uuid.NewString,
		rng:        rng,
	}
}

// SetClock overrides the time source. Tests use it to step through lifespans.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

var (
	errPasswordTaken      = errors.New("password already in use")
	errPasswordReassigned = errors.New("password now points at another room")
)

func (s *Service) randomPassword() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.RandomPassword(s.rng)
}

func (s *Service) randomAvatar() int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.RandomAvatar(s.rng)
}

func (s *Service) assignValues(ids []string) map[string]int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.AssignValues(s.rng, ids)
}

func requireCaller(callerID string) error {
	if callerID == "" {
		return fmt.Errorf("%w: caller identity required", domain.ErrUnauthenticated)
	}
	return nil
}

func validateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", domain.ErrInvalidArgument)
	}
	if !validKey(roomID) {
		return fmt.Errorf("%w: roomId %q is malformed", domain.ErrInvalidArgument, roomID)
	}
	return nil
}

// validKey rejects ids that would escape their path segment.
func validKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/.#$[]")
}

// classify passes engine errors through and wraps everything else, such as
// store failures, as internal.
func classify(op string, err error) error {
	if err == nil || domain.KindOf(err) != nil {
		return err
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &domain.StructuralError{Field: typeErr.Field, Reason: "has the wrong type"}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &domain.StructuralError{Field: "record", Reason: "is not valid JSON"}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrInternal, op, err)
}
