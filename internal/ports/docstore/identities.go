package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ito/internal/ports"
)

const identityCollection = "identities"

type identityRecord struct {
	CreatedAt int64 `json:"createdAt"`
	Anonymous bool  `json:"anonymous"`
}

// IdentityRegistry keeps user identities as objects in a Backend. It backs
// the standalone server, where no external identity provider exists.
type IdentityRegistry struct {
	backend Backend
	now     func() time.Time
}

var _ ports.IdentityRegistry = (*IdentityRegistry)(nil)

// NewIdentityRegistry creates a registry stored in backend.
func NewIdentityRegistry(backend Backend) *IdentityRegistry {
	return &IdentityRegistry{backend: backend, now: time.Now}
}

// CreateAnonymous mints a new anonymous identity with a random uuid.
func (r *IdentityRegistry) CreateAnonymous(ctx context.Context) (ports.Identity, error) {
	ident := ports.Identity{ID: uuid.NewString(), CreatedAt: r.now(), Anonymous: true}
	b, err := json.Marshal(identityRecord{CreatedAt: ident.CreatedAt.UnixMilli(), Anonymous: true})
	if err != nil {
		return ports.Identity{}, err
	}
	err = r.backend.Apply(ctx, []Write{{Collection: identityCollection, Key: ident.ID, Value: b, Version: VersionAbsent}})
	if err != nil {
		return ports.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return ident, nil
}

func (r *IdentityRegistry) GetIdentity(ctx context.Context, id string) (ports.Identity, error) {
	obj, err := r.backend.Read(ctx, identityCollection, id)
	if errors.Is(err, ports.ErrNotFound) {
		return ports.Identity{}, ports.ErrIdentityNotFound
	}
	if err != nil {
		return ports.Identity{}, err
	}
	return decodeIdentity(obj)
}

func (r *IdentityRegistry) DeleteIdentity(ctx context.Context, id string) error {
	obj, err := r.backend.Read(ctx, identityCollection, id)
	if errors.Is(err, ports.ErrNotFound) {
		return ports.ErrIdentityNotFound
	}
	if err != nil {
		return err
	}
	err = r.backend.Apply(ctx, []Write{{Collection: identityCollection, Key: id, Version: obj.Version}})
	if errors.Is(err, ErrVersionConflict) {
		// Deleted or rewritten concurrently; either way the caller's view is stale.
		return ports.ErrIdentityNotFound
	}
	return err
}

func (r *IdentityRegistry) ListIdentities(ctx context.Context, cursor string, limit int) ([]ports.Identity, string, error) {
	objs, next, err := r.backend.List(ctx, identityCollection, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	out := make([]ports.Identity, 0, len(objs))
	for _, o := range objs {
		ident, err := decodeIdentity(o)
		if err != nil {
			return nil, "", err
		}
		out = append(out, ident)
	}
	return out, next, nil
}

func decodeIdentity(obj *Object) (ports.Identity, error) {
	var rec identityRecord
	if err := json.Unmarshal(obj.Value, &rec); err != nil {
		return ports.Identity{}, fmt.Errorf("decode identity %s: %w", obj.Key, err)
	}
	return ports.Identity{
		ID:        obj.Key,
		CreatedAt: time.UnixMilli(rec.CreatedAt),
		Anonymous: rec.Anonymous,
	}, nil
}
