package nakama

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ito/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// systemUserID is Nakama's built-in system account; it is never listed.
const systemUserID = "00000000-0000-0000-0000-000000000000"

// accountAPI is the subset of runtime.NakamaModule the identity adapter uses.
type accountAPI interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	AccountDeleteId(ctx context.Context, userID string, recorded bool) error
}

// NakamaAccountAdapter implements ports.IdentityPort using Nakama's account API.
// Listing reads the users table directly since the runtime has no paged
// account listing.
type NakamaAccountAdapter struct {
	nk accountAPI
	db *sql.DB
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk accountAPI, db *sql.DB) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk, db: db}
}

func (a *NakamaAccountAdapter) GetIdentity(ctx context.Context, id string) (ports.Identity, error) {
	account, err := a.nk.AccountGetId(ctx, id)
	if err != nil {
		if isAccountNotFound(err) {
			return ports.Identity{}, ports.ErrIdentityNotFound
		}
		return ports.Identity{}, fmt.Errorf("get account %s: %w", id, err)
	}
	user := account.GetUser()
	if user == nil {
		return ports.Identity{}, ports.ErrIdentityNotFound
	}
	return ports.Identity{
		ID:        user.GetId(),
		CreatedAt: user.GetCreateTime().AsTime(),
		Anonymous: isAnonymous(account),
	}, nil
}

func (a *NakamaAccountAdapter) DeleteIdentity(ctx context.Context, id string) error {
	if err := a.nk.AccountDeleteId(ctx, id, false); err != nil {
		if isAccountNotFound(err) {
			return ports.ErrIdentityNotFound
		}
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

const listUsersQuery = `
SELECT id, create_time,
       email IS NULL AND custom_id IS NULL AND facebook_id IS NULL AND google_id IS NULL
       AND gamecenter_id IS NULL AND steam_id IS NULL AND apple_id IS NULL AS anonymous
FROM users
WHERE id > $1 AND id <> $2
ORDER BY id
LIMIT $3`

func (a *NakamaAccountAdapter) ListIdentities(ctx context.Context, cursor string, limit int) ([]ports.Identity, string, error) {
	if a.db == nil {
		return nil, "", errors.New("list accounts: no database handle")
	}
	if cursor == "" {
		cursor = systemUserID
	}
	rows, err := a.db.QueryContext(ctx, listUsersQuery, cursor, systemUserID, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []ports.Identity
	for rows.Next() {
		var (
			ident     ports.Identity
			createdAt time.Time
		)
		if err := rows.Scan(&ident.ID, &createdAt, &ident.Anonymous); err != nil {
			return nil, "", fmt.Errorf("scan account: %w", err)
		}
		ident.CreatedAt = createdAt
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list accounts: %w", err)
	}

	next := ""
	if limit > 0 && len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func isAnonymous(account *api.Account) bool {
	u := account.GetUser()
	return account.GetEmail() == "" && account.GetCustomId() == "" &&
		u.GetFacebookId() == "" && u.GetGoogleId() == "" && u.GetGamecenterId() == "" &&
		u.GetSteamId() == "" && u.GetAppleId() == ""
}

func isAccountNotFound(err error) bool {
	var rtErr *runtime.Error
	if errors.As(err, &rtErr) && rtErr.Code == codeNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

var _ ports.IdentityPort = (*NakamaAccountAdapter)(nil)
