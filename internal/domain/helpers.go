package domain

import (
	"fmt"
	"math/rand"
	"sort"
)

// Admin returns the id of the member with the earliest entrance in the
// active config. Ties go to the lexicographically smaller id. The second
// result is false when the active config holds no entrances.
func Admin(r *Room) (string, bool) {
	cfg := r.ActiveConfig()
	if cfg == nil {
		return "", false
	}
	var (
		adminID string
		best    int64
		found   bool
	)
	for id, info := range cfg.PlayerInfo {
		if info == nil || info.Entrance == nil {
			continue
		}
		e := *info.Entrance
		if !found || e < best || (e == best && id < adminID) {
			adminID, best, found = id, e, true
		}
	}
	return adminID, found
}

// AssignValues deals each player a distinct value in [ValueMin, ValueMax],
// uniformly at random. Players beyond the size of the value range get nothing.
func AssignValues(rng *rand.Rand, playerIDs []string) map[string]int {
	ids := append([]string(nil), playerIDs...)
	sort.Strings(ids)

	pool := make([]int, 0, ValueMax-ValueMin+1)
	for v := ValueMin; v <= ValueMax; v++ {
		pool = append(pool, v)
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	out := make(map[string]int, len(ids))
	for i, id := range ids {
		if i >= len(pool) {
			break
		}
		out[id] = pool[i]
	}
	return out
}

// ValidPassword reports whether pw is exactly four decimal digits.
func ValidPassword(pw string) bool {
	if len(pw) != PasswordDigits {
		return false
	}
	for _, c := range pw {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FormatPassword renders n as a zero-padded four digit password.
func FormatPassword(n int) string {
	return fmt.Sprintf("%0*d", PasswordDigits, n%PasswordSpace)
}

// RandomPassword draws a password uniformly from 0000..9999.
func RandomPassword(rng *rand.Rand) string {
	return FormatPassword(rng.Intn(PasswordSpace))
}

// RandomAvatar draws an avatar index in [AvatarMin, AvatarMax].
func RandomAvatar(rng *rand.Rand) int {
	return AvatarMin + rng.Intn(AvatarMax-AvatarMin+1)
}

// ValidAvatar reports whether a is a known avatar index.
func ValidAvatar(a int) bool {
	return a >= AvatarMin && a <= AvatarMax
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
