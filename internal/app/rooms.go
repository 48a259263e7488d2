package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ito/internal/domain"
	"ito/internal/ports"
)

// RoomTicket identifies a room a player belongs to.
type RoomTicket struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

func decodeRoom(raw []byte) (*domain.Room, error) {
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, classify("decode room", err)
	}
	return &room, nil
}

func (s *Service) loadRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	err := s.store.Get(ctx, roomPath(roomID), &raw)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	if err != nil {
		return nil, classify("load room", err)
	}
	return decodeRoom(raw)
}

func (s *Service) loadValidRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateRoom(room); err != nil {
		return nil, err
	}
	return room, nil
}

// mutateRoom runs fn against the latest valid copy of the room inside a
// store transaction. fn returns the room to store, or nil to delete it.
func (s *Service) mutateRoom(ctx context.Context, roomID string, fn func(room *domain.Room) (*domain.Room, error)) error {
	_, err := s.store.Transact(ctx, roomPath(roomID), func(current json.RawMessage) (any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
		}
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateRoom(room); err != nil {
			return nil, err
		}
		next, err := fn(room)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return next, nil
	})
	return classify("update room", err)
}

func requireAdmin(room *domain.Room, callerID string) error {
	adminID, ok := domain.Admin(room)
	if !ok || adminID != callerID {
		return fmt.Errorf("%w: only the room admin can do this", domain.ErrPermissionDenied)
	}
	return nil
}

func (s *Service) adminRoom(ctx context.Context, callerID, roomID string) (*domain.Room, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	room, err := s.loadValidRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(room, callerID); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateRoom opens a new matching room with the caller as its only member
// and reserves a fresh password for it.
func (s *Service) CreateRoom(ctx context.Context, callerID string) (RoomTicket, error) {
	if err := requireCaller(callerID); err != nil {
		return RoomTicket{}, err
	}
	now := s.now()
	if err := s.checkAccountAge(ctx, callerID, now); err != nil {
		return RoomTicket{}, err
	}
	player, _, err := s.loadPlayer(ctx, callerID)
	if err != nil {
		return RoomTicket{}, err
	}
	nowMs := now.UnixMilli()
	count, err := s.creationAllowance(player, nowMs)
	if err != nil {
		return RoomTicket{}, err
	}

	roomID := s.newID()
	room := domain.NewRoom(callerID, s.randomAvatar(), nowMs)
	password, err := s.reservePassword(ctx, roomID, room)
	if err != nil {
		return RoomTicket{}, err
	}

	err = s.store.Update(ctx, map[string]any{
		playerPath(callerID, "currentGameId"):    roomID,
		playerPath(callerID, "lastConnected"):    nowMs,
		playerPath(callerID, "creationCount"):    count + 1,
		playerPath(callerID, "creationCountTtl"): nowMs + s.cfg.CreationRateLimitWindowMs,
	})
	if err != nil {
		return RoomTicket{}, classify("record room creation", err)
	}
	return RoomTicket{RoomID: roomID, Password: password}, nil
}

// reservePassword stores the room and then claims a password index entry
// for it by compare-and-set. The room record is written first so the
// password sweep never sees an index entry without its room.
func (s *Service) reservePassword(ctx context.Context, roomID string, room *domain.Room) (string, error) {
	for attempt := 0; attempt < s.cfg.PasswordAttempts; attempt++ {
		password := s.randomPassword()
		room.Password = password

		var err error
		if attempt == 0 {
			err = s.store.Set(ctx, roomPath(roomID), room)
		} else {
			err = s.store.Set(ctx, roomPath(roomID, "password"), password)
		}
		if err != nil {
			s.discardRoom(ctx, roomID)
			return "", classify("write room", err)
		}

		_, err = s.store.Transact(ctx, passwordPath(password), func(current json.RawMessage) (any, error) {
			if current != nil {
				return nil, errPasswordTaken
			}
			return roomID, nil
		})
		if err == nil {
			return password, nil
		}
		if !errors.Is(err, errPasswordTaken) {
			s.discardRoom(ctx, roomID)
			return "", classify("reserve password", err)
		}
	}
	s.discardRoom(ctx, roomID)
	return "", fmt.Errorf("%w: no free room password after %d attempts", domain.ErrResourceExhausted, s.cfg.PasswordAttempts)
}

// discardRoom removes a half-created room. Failures are left to the reaper.
func (s *Service) discardRoom(ctx context.Context, roomID string) {
	_ = s.store.Delete(ctx, roomPath(roomID))
}

// JoinRoom adds the caller to the room behind password, or refreshes their
// entry if they are already a member.
func (s *Service) JoinRoom(ctx context.Context, callerID, password string) (RoomTicket, error) {
	if err := requireCaller(callerID); err != nil {
		return RoomTicket{}, err
	}
	if !domain.ValidPassword(password) {
		return RoomTicket{}, fmt.Errorf("%w: password must be 4 digits", domain.ErrInvalidArgument)
	}
	now := s.now()
	if err := s.checkAccountAge(ctx, callerID, now); err != nil {
		return RoomTicket{}, err
	}

	var roomID string
	err := s.store.Get(ctx, passwordPath(password), &roomID)
	if errors.Is(err, ports.ErrNotFound) {
		return RoomTicket{}, fmt.Errorf("%w: no room uses password %s", domain.ErrNotFound, password)
	}
	if err != nil {
		return RoomTicket{}, classify("resolve password", err)
	}
	room, err := s.loadValidRoom(ctx, roomID)
	if err != nil {
		return RoomTicket{}, err
	}

	nowMs := now.UnixMilli()
	if room.IsMember(callerID) {
		err = s.mutateRoom(ctx, roomID, func(r *domain.Room) (*domain.Room, error) {
			st, ok := r.State.PlayerState[callerID]
			if !ok {
				return nil, fmt.Errorf("%w: player left the room while rejoining", domain.ErrNotFound)
			}
			st.LastConnected = &nowMs
			if phase, _ := r.CurrentPhase(); phase == domain.PhaseMatching {
				if info := r.State.Config.PlayerInfo[callerID]; info != nil {
					info.Entrance = &nowMs
				}
			}
			r.LastUpdated = nowMs
			return r, nil
		})
	} else {
		if err := domain.ValidatePhase(room, domain.PhaseMatching); err != nil {
			return RoomTicket{}, err
		}
		if len(room.Roster()) >= domain.MaxPlayers {
			return RoomTicket{}, fmt.Errorf("%w: room is full", domain.ErrResourceExhausted)
		}
		avatar := s.randomAvatar()
		err = s.mutateRoom(ctx, roomID, func(r *domain.Room) (*domain.Room, error) {
			if err := domain.ValidatePhase(r, domain.PhaseMatching); err != nil {
				return nil, err
			}
			roster := r.State.PlayerState
			if _, dup := roster[callerID]; dup {
				return nil, fmt.Errorf("%w: player already in room", domain.ErrAlreadyExists)
			}
			if len(roster) >= domain.MaxPlayers {
				return nil, fmt.Errorf("%w: room is full", domain.ErrResourceExhausted)
			}
			if roster == nil {
				roster = map[string]*domain.PlayerState{}
				r.State.PlayerState = roster
			}
			roster[callerID] = domain.NewPlayerState(nowMs)
			if r.State.Config.PlayerInfo == nil {
				r.State.Config.PlayerInfo = map[string]*domain.PlayerInfo{}
			}
			r.State.Config.PlayerInfo[callerID] = domain.NewPlayerInfo(avatar, nowMs)
			r.LastUpdated = nowMs
			return r, nil
		})
	}
	if err != nil {
		return RoomTicket{}, err
	}

	err = s.store.Update(ctx, map[string]any{
		playerPath(callerID, "currentGameId"): roomID,
		playerPath(callerID, "lastConnected"): nowMs,
	})
	if err != nil {
		return RoomTicket{}, classify("record join", err)
	}
	return RoomTicket{RoomID: roomID, Password: password}, nil
}

// ExitRoom removes the caller from the room. The last member out deletes
// the room and releases its password.
func (s *Service) ExitRoom(ctx context.Context, callerID, roomID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()

	var (
		password string
		emptied  bool
	)
	_, err := s.store.Transact(ctx, roomPath(roomID), func(current json.RawMessage) (any, error) {
		emptied = false
		if current == nil {
			return nil, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
		}
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}
		if !room.IsMember(callerID) {
			return nil, fmt.Errorf("%w: player not in room", domain.ErrNotFound)
		}
		delete(room.State.PlayerState, callerID)
		if cfg := room.ActiveConfig(); cfg != nil {
			delete(cfg.PlayerInfo, callerID)
		}
		delete(room.Values, callerID)
		password = room.Password

		if len(room.State.PlayerState) == 0 {
			emptied = true
			return nil, nil
		}
		room.LastUpdated = nowMs
		return room, nil
	})
	if err != nil {
		return classify("exit room", err)
	}

	err = s.store.Update(ctx, map[string]any{
		playerPath(callerID, "currentGameId"): nil,
		playerPath(callerID, "lastConnected"): nowMs,
	})
	if err != nil {
		return classify("record exit", err)
	}
	if emptied && password != "" {
		return s.releasePassword(ctx, password, roomID)
	}
	return nil
}

// releasePassword deletes the index entry only while it still names roomID.
func (s *Service) releasePassword(ctx context.Context, password, roomID string) error {
	_, err := s.store.Transact(ctx, passwordPath(password), func(current json.RawMessage) (any, error) {
		var owner string
		if current == nil || json.Unmarshal(current, &owner) != nil || owner != roomID {
			return nil, errPasswordReassigned
		}
		return nil, nil
	})
	if errors.Is(err, errPasswordReassigned) {
		return nil
	}
	return classify("release password", err)
}

// StartRoom deals values and commits the staged config.
func (s *Service) StartRoom(ctx context.Context, callerID, roomID string) error {
	room, err := s.adminRoom(ctx, callerID, roomID)
	if err != nil {
		return err
	}
	if err := domain.ValidatePhase(room, domain.PhaseMatching); err != nil {
		return err
	}

	staged := room.State.Config
	topic := ""
	if staged.Topic != nil {
		topic = *staged.Topic
	}
	nowMs := s.now().UnixMilli()
	err = s.store.Update(ctx, map[string]any{
		roomPath(roomID, "config", "playerInfo"): staged.PlayerInfo,
		roomPath(roomID, "config", "topic"):      topic,
		roomPath(roomID, "state", "config"):      nil,
		roomPath(roomID, "state", "phase"):       domain.PhaseActive,
		roomPath(roomID, "values"):               s.assignValues(room.PlayerIDs()),
		roomPath(roomID, "lastUpdated"):          nowMs,
		playerPath(callerID, "lastConnected"):    nowMs,
	})
	return classify("start room", err)
}

// EndRoom moves an active room to reveal.
func (s *Service) EndRoom(ctx context.Context, callerID, roomID string) error {
	room, err := s.adminRoom(ctx, callerID, roomID)
	if err != nil {
		return err
	}
	if err := domain.ValidatePhase(room, domain.PhaseActive); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	err = s.store.Update(ctx, map[string]any{
		roomPath(roomID, "state", "phase"):    domain.PhaseReveal,
		roomPath(roomID, "lastUpdated"):       nowMs,
		playerPath(callerID, "lastConnected"): nowMs,
	})
	return classify("end room", err)
}

// ResetRoom returns a started room to matching, moving the committed config
// back to the staged location and clearing every per-round field. It runs
// as a room transaction so a member leaving mid-reset is not written back.
func (s *Service) ResetRoom(ctx context.Context, callerID, roomID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	err := s.mutateRoom(ctx, roomID, func(room *domain.Room) (*domain.Room, error) {
		if err := requireAdmin(room, callerID); err != nil {
			return nil, err
		}
		if err := domain.ValidatePhase(room, domain.PhaseActive, domain.PhaseReveal); err != nil {
			return nil, err
		}
		matching := domain.PhaseMatching
		room.State.Phase = &matching
		room.State.Config = room.Config
		room.Config = nil
		room.Values = nil
		for _, st := range room.State.PlayerState {
			hint := ""
			st.Hint = &hint
			st.Submitted = nil
		}
		if st := room.State.PlayerState[callerID]; st != nil {
			st.LastConnected = &nowMs
		}
		room.LastUpdated = nowMs
		return room, nil
	})
	if err != nil {
		return err
	}
	return s.touch(ctx, callerID, nowMs)
}

// UpdateTopic sets the staged topic.
func (s *Service) UpdateTopic(ctx context.Context, callerID, roomID, topic string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	err := s.mutateRoom(ctx, roomID, func(room *domain.Room) (*domain.Room, error) {
		if err := requireAdmin(room, callerID); err != nil {
			return nil, err
		}
		if err := domain.ValidatePhase(room, domain.PhaseMatching); err != nil {
			return nil, err
		}
		room.State.Config.Topic = &topic
		if st := room.State.PlayerState[callerID]; st != nil {
			st.LastConnected = &nowMs
		}
		room.LastUpdated = nowMs
		return room, nil
	})
	if err != nil {
		return err
	}
	return s.touch(ctx, callerID, nowMs)
}

// KickPlayer marks targetID as kicked. The target stays in the roster.
func (s *Service) KickPlayer(ctx context.Context, callerID, roomID, targetID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	if !validKey(targetID) {
		return fmt.Errorf("%w: playerId is required", domain.ErrInvalidArgument)
	}
	nowMs := s.now().UnixMilli()
	err := s.mutateRoom(ctx, roomID, func(room *domain.Room) (*domain.Room, error) {
		if err := requireAdmin(room, callerID); err != nil {
			return nil, err
		}
		if _, ok := room.ActiveConfig().PlayerInfo[targetID]; !ok {
			return nil, fmt.Errorf("%w: player %s not in room", domain.ErrNotFound, targetID)
		}
		if targetID == callerID {
			return nil, fmt.Errorf("%w: cannot kick yourself", domain.ErrInvalidArgument)
		}
		st, ok := room.State.PlayerState[targetID]
		if !ok {
			return nil, fmt.Errorf("%w: player %s left the room", domain.ErrNotFound, targetID)
		}
		st.Kicked = true
		room.LastUpdated = nowMs
		return room, nil
	})
	if err != nil {
		return err
	}
	return s.touch(ctx, callerID, nowMs)
}
