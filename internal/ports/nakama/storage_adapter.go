package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ito/internal/ports"
	"ito/internal/ports/docstore"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// storageAPI is the subset of runtime.NakamaModule the storage backend uses.
type storageAPI interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

// envelope wraps stored values, since Nakama storage only accepts JSON objects.
type envelope struct {
	V json.RawMessage `json:"v"`
}

// NakamaStorageBackend keeps documents as system-owned Nakama storage
// objects. Nakama's object versions drive the conditional writes.
type NakamaStorageBackend struct {
	nk storageAPI
}

// NewNakamaStorageBackend creates a storage backend.
func NewNakamaStorageBackend(nk storageAPI) *NakamaStorageBackend {
	return &NakamaStorageBackend{nk: nk}
}

func collectionName(c string) string { return storageCollectionPrefix + c }

func (b *NakamaStorageBackend) Read(ctx context.Context, collection, key string) (*docstore.Object, error) {
	objs, err := b.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: collectionName(collection),
		Key:        key,
	}})
	if err != nil {
		return nil, fmt.Errorf("storage read %s/%s: %w", collection, key, err)
	}
	if len(objs) == 0 {
		return nil, ports.ErrNotFound
	}
	return unwrap(collection, objs[0])
}

func (b *NakamaStorageBackend) List(ctx context.Context, collection, cursor string, limit int) ([]*docstore.Object, string, error) {
	objs, next, err := b.nk.StorageList(ctx, "", "", collectionName(collection), limit, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("storage list %s: %w", collection, err)
	}
	out := make([]*docstore.Object, 0, len(objs))
	for _, o := range objs {
		obj, err := unwrap(collection, o)
		if err != nil {
			return nil, "", err
		}
		out = append(out, obj)
	}
	return out, next, nil
}

func (b *NakamaStorageBackend) Apply(ctx context.Context, writes []docstore.Write) error {
	var (
		storageWrites  []*runtime.StorageWrite
		storageDeletes []*runtime.StorageDelete
	)
	for _, w := range writes {
		if w.Value == nil {
			storageDeletes = append(storageDeletes, &runtime.StorageDelete{
				Collection: collectionName(w.Collection),
				Key:        w.Key,
				Version:    w.Version,
			})
			continue
		}
		value, err := json.Marshal(envelope{V: w.Value})
		if err != nil {
			return err
		}
		storageWrites = append(storageWrites, &runtime.StorageWrite{
			Collection:      collectionName(w.Collection),
			Key:             w.Key,
			Value:           string(value),
			Version:         w.Version,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	_, _, err := b.nk.MultiUpdate(ctx, nil, storageWrites, storageDeletes, nil, false)
	if err != nil {
		if isVersionConflict(err) {
			return fmt.Errorf("%w: %v", docstore.ErrVersionConflict, err)
		}
		return fmt.Errorf("storage multi update: %w", err)
	}
	return nil
}

func isVersionConflict(err error) bool {
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return true
	}
	// Deletes with a stale version surface as a plain message.
	return strings.Contains(strings.ToLower(err.Error()), "version check failed")
}

func unwrap(collection string, o *api.StorageObject) (*docstore.Object, error) {
	var env envelope
	if err := json.Unmarshal([]byte(o.GetValue()), &env); err != nil {
		return nil, fmt.Errorf("decode storage object %s/%s: %w", collection, o.GetKey(), err)
	}
	return &docstore.Object{
		Collection: collection,
		Key:        o.GetKey(),
		Value:      env.V,
		Version:    o.GetVersion(),
	}, nil
}

var _ docstore.Backend = (*NakamaStorageBackend)(nil)
