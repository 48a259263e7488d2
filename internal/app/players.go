package app

import (
	"context"
	"fmt"

	"ito/internal/domain"
)

func requireActiveMember(room *domain.Room, callerID string) error {
	st, ok := room.Roster()[callerID]
	if !ok {
		return fmt.Errorf("%w: player not in room", domain.ErrNotFound)
	}
	if st.Kicked {
		return fmt.Errorf("%w: player has been kicked", domain.ErrPermissionDenied)
	}
	return nil
}

func (s *Service) memberRoom(ctx context.Context, callerID, roomID string) (*domain.Room, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	room, err := s.loadValidRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireActiveMember(room, callerID); err != nil {
		return nil, err
	}
	return room, nil
}

// writePlayerState updates fields of the caller's roster entry in the same
// write as its lastConnected and the room's lastUpdated. A nil field value
// deletes that field.
func (s *Service) writePlayerState(ctx context.Context, callerID, roomID string, fields func(nowMs int64) map[string]any) error {
	if _, err := s.memberRoom(ctx, callerID, roomID); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	updates := map[string]any{
		playerStatePath(roomID, callerID, "lastConnected"): nowMs,
		roomPath(roomID, "lastUpdated"):                    nowMs,
		playerPath(callerID, "lastConnected"):              nowMs,
	}
	if fields != nil {
		for field, v := range fields(nowMs) {
			updates[playerStatePath(roomID, callerID, field)] = v
		}
	}
	return classify("update player state", s.store.Update(ctx, updates))
}

// UpdateHint replaces the caller's hint.
func (s *Service) UpdateHint(ctx context.Context, callerID, roomID, hint string) error {
	return s.writePlayerState(ctx, callerID, roomID, func(int64) map[string]any {
		return map[string]any{"hint": hint}
	})
}

// Submit stamps the caller's submission time.
func (s *Service) Submit(ctx context.Context, callerID, roomID string) error {
	return s.writePlayerState(ctx, callerID, roomID, func(nowMs int64) map[string]any {
		return map[string]any{"submitted": nowMs}
	})
}

// Withdraw clears the caller's submission.
func (s *Service) Withdraw(ctx context.Context, callerID, roomID string) error {
	return s.writePlayerState(ctx, callerID, roomID, func(int64) map[string]any {
		return map[string]any{"submitted": nil}
	})
}

// Heartbeat only refreshes activity timestamps.
func (s *Service) Heartbeat(ctx context.Context, callerID, roomID string) error {
	return s.writePlayerState(ctx, callerID, roomID, nil)
}

// UpdateName sets the caller's display name in the active config.
func (s *Service) UpdateName(ctx context.Context, callerID, roomID, name string) error {
	return s.updatePlayerInfo(ctx, callerID, roomID, func(info *domain.PlayerInfo) {
		info.Name = &name
	})
}

// UpdateAvatar sets the caller's avatar in the active config.
func (s *Service) UpdateAvatar(ctx context.Context, callerID, roomID string, avatar int) error {
	if !domain.ValidAvatar(avatar) {
		return fmt.Errorf("%w: avatar must be between %d and %d", domain.ErrInvalidArgument, domain.AvatarMin, domain.AvatarMax)
	}
	return s.updatePlayerInfo(ctx, callerID, roomID, func(info *domain.PlayerInfo) {
		info.Avatar = &avatar
	})
}

// updatePlayerInfo edits the caller's playerInfo inside a room transaction,
// since where that entry lives depends on the phase.
func (s *Service) updatePlayerInfo(ctx context.Context, callerID, roomID string, apply func(info *domain.PlayerInfo)) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	err := s.mutateRoom(ctx, roomID, func(room *domain.Room) (*domain.Room, error) {
		if err := requireActiveMember(room, callerID); err != nil {
			return nil, err
		}
		info := room.ActiveConfig().PlayerInfo[callerID]
		if info == nil {
			return nil, fmt.Errorf("%w: player info missing", domain.ErrNotFound)
		}
		apply(info)
		room.State.PlayerState[callerID].LastConnected = &nowMs
		room.LastUpdated = nowMs
		return room, nil
	})
	if err != nil {
		return err
	}
	return s.touch(ctx, callerID, nowMs)
}
