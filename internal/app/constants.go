package app

import "path"

// Store collections.
const (
	RoomsCollection     = "rooms"
	PasswordsCollection = "passwords"
	PlayersCollection   = "players"
)

func roomPath(roomID string, sub ...string) string {
	return path.Join(append([]string{RoomsCollection, roomID}, sub...)...)
}

func playerStatePath(roomID, playerID string, field ...string) string {
	return roomPath(roomID, append([]string{"state", "playerState", playerID}, field...)...)
}

func passwordPath(password string) string {
	return path.Join(PasswordsCollection, password)
}

func playerPath(playerID string, field ...string) string {
	return path.Join(append([]string{PlayersCollection, playerID}, field...)...)
}
