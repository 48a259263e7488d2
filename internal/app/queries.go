package app

import (
	"context"
	"errors"
	"fmt"

	"ito/internal/domain"
	"ito/internal/ports"
)

// RoomView is what a member sees of a room.
type RoomView struct {
	RoomID  string                         `json:"roomId"`
	Phase   domain.Phase                   `json:"phase"`
	AdminID string                         `json:"adminId"`
	Config  *domain.Config                 `json:"config"`
	Players map[string]*domain.PlayerState `json:"players"`
	// Values holds only the caller's value until the room reaches reveal.
	Values map[string]int `json:"values"`
}

// ValueView is the caller's own value.
type ValueView struct {
	RoomID string `json:"roomId"`
	Value  int    `json:"value"`
}

// PlayerSession is the result of InitPlayer. RoomID is empty when the
// player has no room to return to.
type PlayerSession struct {
	RoomID string `json:"roomId,omitempty"`
}

func (s *Service) expired(room *domain.Room, nowMs int64) bool {
	return nowMs-room.LastUpdated > s.cfg.GameLifespanMs
}

// GetRoomConfig returns the room as the caller may see it.
func (s *Service) GetRoomConfig(ctx context.Context, callerID, roomID string) (RoomView, error) {
	if err := requireCaller(callerID); err != nil {
		return RoomView{}, err
	}
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	nowMs := s.now().UnixMilli()
	if s.expired(room, nowMs) {
		return RoomView{}, fmt.Errorf("%w: room expired", domain.ErrDeadlineExceeded)
	}
	if err := requireActiveMember(room, callerID); err != nil {
		return RoomView{}, err
	}
	if err := domain.ValidateRoom(room); err != nil {
		return RoomView{}, err
	}
	if err := s.touch(ctx, callerID, nowMs); err != nil {
		return RoomView{}, err
	}

	phase, _ := room.CurrentPhase()
	adminID, _ := domain.Admin(room)
	values := map[string]int{}
	if phase == domain.PhaseReveal {
		values = room.Values
	} else if v, ok := room.Values[callerID]; ok {
		values[callerID] = v
	}
	return RoomView{
		RoomID:  roomID,
		Phase:   phase,
		AdminID: adminID,
		Config:  room.ActiveConfig(),
		Players: room.State.PlayerState,
		Values:  values,
	}, nil
}

// GetValue returns the caller's dealt value once the room has started.
func (s *Service) GetValue(ctx context.Context, callerID, roomID string) (ValueView, error) {
	if err := requireCaller(callerID); err != nil {
		return ValueView{}, err
	}
	room, err := s.loadValidRoom(ctx, roomID)
	if err != nil {
		return ValueView{}, err
	}
	if phase, _ := room.CurrentPhase(); phase == domain.PhaseMatching {
		return ValueView{}, fmt.Errorf("%w: values are not dealt while matching", domain.ErrFailedPrecondition)
	}
	if err := requireActiveMember(room, callerID); err != nil {
		return ValueView{}, err
	}
	value, ok := room.Values[callerID]
	if !ok {
		return ValueView{}, fmt.Errorf("%w: no value assigned to player", domain.ErrNotFound)
	}
	nowMs := s.now().UnixMilli()
	if s.expired(room, nowMs) {
		return ValueView{}, fmt.Errorf("%w: room expired", domain.ErrDeadlineExceeded)
	}
	if err := s.touch(ctx, callerID, nowMs); err != nil {
		return ValueView{}, err
	}
	return ValueView{RoomID: roomID, Value: value}, nil
}

// GetRoomInfo returns the room id and password so a member can invite others.
func (s *Service) GetRoomInfo(ctx context.Context, callerID, roomID string) (RoomTicket, error) {
	if err := requireCaller(callerID); err != nil {
		return RoomTicket{}, err
	}
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return RoomTicket{}, err
	}
	nowMs := s.now().UnixMilli()
	if s.expired(room, nowMs) {
		return RoomTicket{}, fmt.Errorf("%w: room expired", domain.ErrDeadlineExceeded)
	}
	if err := requireActiveMember(room, callerID); err != nil {
		return RoomTicket{}, err
	}
	if err := s.touch(ctx, callerID, nowMs); err != nil {
		return RoomTicket{}, err
	}
	return RoomTicket{RoomID: roomID, Password: room.Password}, nil
}

// InitPlayer records the caller as active and resolves the room they were
// last in. A stale pointer is cleared instead of being returned.
func (s *Service) InitPlayer(ctx context.Context, callerID string) (PlayerSession, error) {
	if err := requireCaller(callerID); err != nil {
		return PlayerSession{}, err
	}
	nowMs := s.now().UnixMilli()
	if err := s.touch(ctx, callerID, nowMs); err != nil {
		return PlayerSession{}, err
	}

	var roomID string
	err := s.store.Get(ctx, playerPath(callerID, "currentGameId"), &roomID)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && roomID == "") {
		return PlayerSession{}, nil
	}
	if err != nil {
		return PlayerSession{}, classify("load current room", err)
	}

	ok, err := s.roomResumable(ctx, roomID, callerID, nowMs)
	if err != nil {
		return PlayerSession{}, err
	}
	if ok {
		return PlayerSession{RoomID: roomID}, nil
	}
	if err := s.store.Delete(ctx, playerPath(callerID, "currentGameId")); err != nil {
		return PlayerSession{}, classify("clear current room", err)
	}
	return PlayerSession{}, nil
}

func (s *Service) roomResumable(ctx context.Context, roomID, callerID string, nowMs int64) (bool, error) {
	room, err := s.loadRoom(ctx, roomID)
	if errors.Is(err, domain.ErrInternal) {
		return false, err
	}
	if err != nil || s.expired(room, nowMs) {
		return false, nil
	}
	st, ok := room.Roster()[callerID]
	if !ok || domain.ValidatePlayerState(st) != nil {
		return false, nil
	}
	return !st.Kicked, nil
}
