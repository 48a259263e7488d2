package domain

const (
	MaxPlayers = 12

	AvatarMin = 0
	AvatarMax = 11

	ValueMin = 1
	ValueMax = 100

	PasswordDigits = 4
	PasswordSpace  = 10000
)
