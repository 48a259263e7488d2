package domain

import "fmt"

// Phase represents the lifecycle stage of a room.
type Phase int

const (
	// PhaseMatching is the pre-start state where players can join.
	PhaseMatching Phase = 0
	// PhaseActive is the state after values are dealt, while players trade hints.
	PhaseActive Phase = 1
	// PhaseReveal is the state where every value is visible to every member.
	PhaseReveal Phase = 2
)

func (p Phase) String() string {
	switch p {
	case PhaseMatching:
		return "matching"
	case PhaseActive:
		return "active"
	case PhaseReveal:
		return "reveal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Valid reports whether p is one of the three known phases.
func (p Phase) Valid() bool {
	return p >= PhaseMatching && p <= PhaseReveal
}

// Config carries the room topic and per-player metadata.
type Config struct {
	Topic      *string                `json:"topic,omitempty"`
	PlayerInfo map[string]*PlayerInfo `json:"playerInfo,omitempty"`
}

// PlayerInfo is the visible identity of a member inside a room.
type PlayerInfo struct {
	Name     *string `json:"name,omitempty"`
	Avatar   *int    `json:"avatar,omitempty"`
	Entrance *int64  `json:"entrance,omitempty"` // ms since epoch, drives admin election
}

// PlayerState is the per-round state of a member.
type PlayerState struct {
	Hint          *string `json:"hint,omitempty"`
	LastConnected *int64  `json:"lastConnected,omitempty"`
	Submitted     *int64  `json:"submitted,omitempty"`
	Kicked        bool    `json:"kicked,omitempty"`
}

// RoomState holds the mutable part of a room. Config is the staged config
// and is only present while the room is matching.
type RoomState struct {
	Phase       *Phase                  `json:"phase,omitempty"`
	Config      *Config                 `json:"config,omitempty"`
	PlayerState map[string]*PlayerState `json:"playerState,omitempty"`
}

// Room is the stored record at rooms/{roomId}.
type Room struct {
	Password    string         `json:"password,omitempty"`
	LastUpdated int64          `json:"lastUpdated,omitempty"`
	Config      *Config        `json:"config,omitempty"` // committed config, absent while matching
	Values      map[string]int `json:"values,omitempty"`
	State       *RoomState     `json:"state,omitempty"`
}

// NewRoom builds a matching room holding a single founding player.
func NewRoom(playerID string, avatar int, now int64) *Room {
	phase := PhaseMatching
	topic := ""
	return &Room{
		LastUpdated: now,
		State: &RoomState{
			Phase: &phase,
			Config: &Config{
				Topic:      &topic,
				PlayerInfo: map[string]*PlayerInfo{playerID: NewPlayerInfo(avatar, now)},
			},
			PlayerState: map[string]*PlayerState{playerID: NewPlayerState(now)},
		},
	}
}

// NewPlayerInfo returns the metadata of a player entering at now.
func NewPlayerInfo(avatar int, now int64) *PlayerInfo {
	name := ""
	return &PlayerInfo{Name: &name, Avatar: &avatar, Entrance: &now}
}

// NewPlayerState returns a fresh roster entry connected at now.
func NewPlayerState(now int64) *PlayerState {
	hint := ""
	return &PlayerState{Hint: &hint, LastConnected: &now}
}

// CurrentPhase returns the stored phase. The second result is false when
// the phase is missing.
func (r *Room) CurrentPhase() (Phase, bool) {
	if r == nil || r.State == nil || r.State.Phase == nil {
		return PhaseMatching, false
	}
	return *r.State.Phase, true
}

// ActiveConfig returns the config that the current phase treats as live:
// the staged one while matching, the committed one afterwards.
func (r *Room) ActiveConfig() *Config {
	phase, ok := r.CurrentPhase()
	if !ok {
		return nil
	}
	if LocationFor(phase) == LocationStaged {
		return r.State.Config
	}
	return r.Config
}

// Roster returns the playerState map, or nil when the state is missing.
func (r *Room) Roster() map[string]*PlayerState {
	if r == nil || r.State == nil {
		return nil
	}
	return r.State.PlayerState
}

// IsMember reports whether playerID has a roster entry.
func (r *Room) IsMember(playerID string) bool {
	_, ok := r.Roster()[playerID]
	return ok
}

// PlayerIDs returns the roster ids in sorted order.
func (r *Room) PlayerIDs() []string {
	return sortedKeys(r.Roster())
}

// ConfigLocation names where a room keeps its live config.
type ConfigLocation int

const (
	// LocationStaged is state/config, used while matching.
	LocationStaged ConfigLocation = iota
	// LocationCommitted is the top-level config, used once the room has started.
	LocationCommitted
)

// LocationFor maps a phase to the config location it reads and writes.
func LocationFor(p Phase) ConfigLocation {
	if p == PhaseMatching {
		return LocationStaged
	}
	return LocationCommitted
}

// Segments returns the path of the location relative to the room root.
func (l ConfigLocation) Segments() []string {
	if l == LocationStaged {
		return []string{"state", "config"}
	}
	return []string{"config"}
}
