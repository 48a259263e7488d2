package domain

// Player is the global per-user record at players/{uid}.
type Player struct {
	LastConnected    int64  `json:"lastConnected,omitempty"`
	CurrentGameID    string `json:"currentGameId,omitempty"`
	CreationCount    int    `json:"creationCount,omitempty"`
	CreationCountTTL int64  `json:"creationCountTtl,omitempty"`
}
