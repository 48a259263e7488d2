package domain

import "fmt"

// ValidateRoom checks the structural invariants of a stored room.
func ValidateRoom(r *Room) error {
	if r == nil {
		return structural("room", "is missing")
	}
	if r.State == nil {
		return structural("state", "is missing")
	}
	if r.State.Phase == nil {
		return structural("state.phase", "is required")
	}
	phase := *r.State.Phase
	if !phase.Valid() {
		return structural("state.phase", fmt.Sprintf("has unknown value %d", int(phase)))
	}
	if r.Password == "" {
		return structural("password", "is required")
	}

	var live *Config
	liveField := "config"
	if phase == PhaseMatching {
		if r.Config != nil {
			return structural("config", "must be absent while matching")
		}
		if r.State.Config == nil {
			return structural("state.config", "is required while matching")
		}
		if len(r.Values) > 0 {
			return structural("values", "must be absent while matching")
		}
		live, liveField = r.State.Config, "state.config"
	} else {
		if r.State.Config != nil {
			return structural("state.config", "must be absent once started")
		}
		if r.Config == nil {
			return structural("config", "is required once started")
		}
		if len(r.Values) == 0 {
			return structural("values", "is required once started")
		}
		if r.Config.Topic == nil {
			return structural("config.topic", "is required")
		}
		live = r.Config
	}

	if err := checkSize(liveField+".playerInfo", len(live.PlayerInfo)); err != nil {
		return err
	}
	if err := checkSize("state.playerState", len(r.State.PlayerState)); err != nil {
		return err
	}
	for id, info := range live.PlayerInfo {
		if err := ValidatePlayerInfo(info); err != nil {
			return err.(*StructuralError).within(liveField + ".playerInfo." + id)
		}
	}
	for id, st := range r.State.PlayerState {
		if err := ValidatePlayerState(st); err != nil {
			return err.(*StructuralError).within("state.playerState." + id)
		}
	}
	return validateValues(r.Values)
}

// checkSize holds a per-player map to between 1 and MaxPlayers entries.
func checkSize(field string, n int) error {
	if n == 0 {
		return structural(field, "is empty")
	}
	if n > MaxPlayers {
		return structural(field, fmt.Sprintf("has %d entries, max %d", n, MaxPlayers))
	}
	return nil
}

// ValidatePlayerInfo checks that a playerInfo entry carries every field and
// a known avatar.
func ValidatePlayerInfo(info *PlayerInfo) error {
	switch {
	case info == nil:
		return structural("entry", "is missing")
	case info.Name == nil:
		return structural("name", "is required")
	case info.Avatar == nil:
		return structural("avatar", "is required")
	case !ValidAvatar(*info.Avatar):
		return structural("avatar", fmt.Sprintf("is out of range: %d", *info.Avatar))
	case info.Entrance == nil:
		return structural("entrance", "is required")
	}
	return nil
}

// ValidatePlayerState checks that a roster entry carries its required fields.
func ValidatePlayerState(st *PlayerState) error {
	switch {
	case st == nil:
		return structural("entry", "is missing")
	case st.Hint == nil:
		return structural("hint", "is required")
	case st.LastConnected == nil:
		return structural("lastConnected", "is required")
	}
	return nil
}

func validateValues(values map[string]int) error {
	seen := make(map[int]string, len(values))
	for id, v := range values {
		if v < ValueMin || v > ValueMax {
			return structural("values."+id, fmt.Sprintf("is out of range: %d", v))
		}
		if other, dup := seen[v]; dup {
			return structural("values."+id, "duplicates the value of "+other)
		}
		seen[v] = id
	}
	return nil
}

// ValidatePhase returns a PhaseMismatchError unless the room is in one of
// the allowed phases.
func ValidatePhase(r *Room, allowed ...Phase) error {
	phase, ok := r.CurrentPhase()
	if !ok {
		return structural("state.phase", "is required")
	}
	for _, p := range allowed {
		if p == phase {
			return nil
		}
	}
	return &PhaseMismatchError{Allowed: allowed, Actual: phase}
}
