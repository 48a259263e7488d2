package domain

import (
	"errors"
	"fmt"
	"testing"
)

func startedRoom() *Room {
	r := matchingRoom(map[string]int64{"a": 1, "b": 2})
	active := PhaseActive
	r.State.Phase = &active
	r.Config = r.State.Config
	r.State.Config = nil
	r.Values = map[string]int{"a": 12, "b": 77}
	return r
}

// withPlayers pads the roster and/or staged player info to n entries.
func withPlayers(r *Room, n int, roster, info bool) *Room {
	for i := 0; ; i++ {
		id := fmt.Sprintf("p%02d", i)
		if roster && len(r.State.PlayerState) < n {
			r.State.PlayerState[id] = NewPlayerState(int64(10 + i))
		}
		if info && len(r.State.Config.PlayerInfo) < n {
			r.State.Config.PlayerInfo[id] = NewPlayerInfo(0, int64(10+i))
		}
		if (!roster || len(r.State.PlayerState) >= n) && (!info || len(r.State.Config.PlayerInfo) >= n) {
			return r
		}
	}
}

func TestValidateRoom(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Room) *Room
		field   string
		wantErr bool
	}{
		{name: "fresh matching room", mutate: func(r *Room) *Room { return r }},
		{name: "missing state", mutate: func(r *Room) *Room { r.State = nil; return r }, field: "state", wantErr: true},
		{name: "missing phase", mutate: func(r *Room) *Room { r.State.Phase = nil; return r }, field: "state.phase", wantErr: true},
		{name: "unknown phase", mutate: func(r *Room) *Room { p := Phase(7); r.State.Phase = &p; return r }, field: "state.phase", wantErr: true},
		{name: "missing password", mutate: func(r *Room) *Room { r.Password = ""; return r }, field: "password", wantErr: true},
		{name: "committed config while matching", mutate: func(r *Room) *Room { r.Config = &Config{}; return r }, field: "config", wantErr: true},
		{name: "values while matching", mutate: func(r *Room) *Room { r.Values = map[string]int{"a": 1}; return r }, field: "values", wantErr: true},
		{name: "missing staged config", mutate: func(r *Room) *Room { r.State.Config = nil; return r }, field: "state.config", wantErr: true},
		{
			name:    "player info without avatar",
			mutate:  func(r *Room) *Room { r.State.Config.PlayerInfo["a"].Avatar = nil; return r },
			field:   "state.config.playerInfo.a.avatar",
			wantErr: true,
		},
		{
			name:    "player info with avatar out of range",
			mutate:  func(r *Room) *Room { avatar := 50; r.State.Config.PlayerInfo["a"].Avatar = &avatar; return r },
			field:   "state.config.playerInfo.a.avatar",
			wantErr: true,
		},
		{
			name:    "empty roster",
			mutate:  func(r *Room) *Room { r.State.PlayerState = map[string]*PlayerState{}; return r },
			field:   "state.playerState",
			wantErr: true,
		},
		{
			name:    "oversized roster",
			mutate:  func(r *Room) *Room { return withPlayers(r, MaxPlayers+1, true, false) },
			field:   "state.playerState",
			wantErr: true,
		},
		{
			name:    "empty staged player info",
			mutate:  func(r *Room) *Room { r.State.Config.PlayerInfo = nil; return r },
			field:   "state.config.playerInfo",
			wantErr: true,
		},
		{
			name:    "oversized staged player info",
			mutate:  func(r *Room) *Room { return withPlayers(r, MaxPlayers+1, false, true) },
			field:   "state.config.playerInfo",
			wantErr: true,
		},
		{
			name:   "full room",
			mutate: func(r *Room) *Room { return withPlayers(r, MaxPlayers, true, true) },
		},
		{
			name:    "roster entry without hint",
			mutate:  func(r *Room) *Room { r.State.PlayerState["b"].Hint = nil; return r },
			field:   "state.playerState.b.hint",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoom(tt.mutate(matchingRoom(map[string]int64{"a": 1, "b": 2})))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRoom() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var se *StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("ValidateRoom() err = %T, want *StructuralError", err)
			}
			if se.Field != tt.field {
				t.Fatalf("field = %q, want %q", se.Field, tt.field)
			}
		})
	}
}

func TestValidateStartedRoom(t *testing.T) {
	if err := ValidateRoom(startedRoom()); err != nil {
		t.Fatalf("ValidateRoom(started) = %v, want nil", err)
	}

	r := startedRoom()
	r.State.Config = &Config{}
	if err := ValidateRoom(r); err == nil {
		t.Fatalf("staged config after start should be rejected")
	}

	r = startedRoom()
	r.Values = nil
	if err := ValidateRoom(r); err == nil {
		t.Fatalf("missing values after start should be rejected")
	}

	r = startedRoom()
	r.Values["b"] = r.Values["a"]
	if err := ValidateRoom(r); err == nil {
		t.Fatalf("duplicate values should be rejected")
	}

	r = startedRoom()
	r.Values["a"] = 101
	if err := ValidateRoom(r); err == nil {
		t.Fatalf("out of range value should be rejected")
	}
}

func TestValidatePhase(t *testing.T) {
	r := startedRoom()
	if err := ValidatePhase(r, PhaseActive, PhaseReveal); err != nil {
		t.Fatalf("ValidatePhase(active) = %v", err)
	}
	err := ValidatePhase(r, PhaseMatching)
	var pm *PhaseMismatchError
	if !errors.As(err, &pm) || pm.Actual != PhaseActive {
		t.Fatalf("ValidatePhase(matching) = %v, want phase mismatch", err)
	}
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("phase mismatch should wrap ErrFailedPrecondition")
	}
}

func TestActiveConfigLocation(t *testing.T) {
	r := matchingRoom(map[string]int64{"a": 1})
	if r.ActiveConfig() != r.State.Config {
		t.Fatalf("matching room should read staged config")
	}
	s := startedRoom()
	if s.ActiveConfig() != s.Config {
		t.Fatalf("started room should read committed config")
	}
	if got := LocationFor(PhaseReveal).Segments(); len(got) != 1 || got[0] != "config" {
		t.Fatalf("LocationFor(reveal).Segments() = %v", got)
	}
}
