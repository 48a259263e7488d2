package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ito/internal/domain"
	"ito/internal/ports"
)

// checkAccountAge rejects callers whose identity is unknown or younger than
// the account cooldown.
func (s *Service) checkAccountAge(ctx context.Context, callerID string, now time.Time) error {
	ident, err := s.identities.GetIdentity(ctx, callerID)
	if errors.Is(err, ports.ErrIdentityNotFound) {
		return fmt.Errorf("%w: user account not found", domain.ErrFailedPrecondition)
	}
	if err != nil {
		return classify("get identity", err)
	}
	if now.Sub(ident.CreatedAt) < s.cfg.AccountCooldown() {
		return fmt.Errorf("%w: account is too new, try again in a few seconds", domain.ErrFailedPrecondition)
	}
	return nil
}

// loadPlayer returns the caller's global record, or a zero record when none exists.
func (s *Service) loadPlayer(ctx context.Context, playerID string) (domain.Player, bool, error) {
	var p domain.Player
	err := s.store.Get(ctx, playerPath(playerID), &p)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Player{}, false, nil
	}
	if err != nil {
		return domain.Player{}, false, classify("load player", err)
	}
	return p, true, nil
}

// creationAllowance returns the caller's current creation count inside the
// rate limit window, or ResourceExhausted when the limit is reached.
func (s *Service) creationAllowance(p domain.Player, nowMs int64) (int, error) {
	count := p.CreationCount
	if nowMs > p.CreationCountTTL {
		count = 0
	}
	if count >= s.cfg.CreationRateLimitThreshold {
		return 0, fmt.Errorf("%w: too many rooms created, slow down", domain.ErrResourceExhausted)
	}
	return count, nil
}

// touch refreshes the caller's last activity.
func (s *Service) touch(ctx context.Context, callerID string, nowMs int64) error {
	return classify("touch player", s.store.Set(ctx, playerPath(callerID, "lastConnected"), nowMs))
}
