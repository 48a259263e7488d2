package nakama

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"ito/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// fakeStorage mimics Nakama's versioned system-owned storage.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]map[string]*api.StorageObject
	clock   int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]map[string]*api.StorageObject{}}
}

func (f *fakeStorage) StorageRead(_ context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if o, ok := f.objects[r.Collection][r.Key]; ok {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStorage) StorageList(_ context.Context, _, _, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects[collection] {
		if k > cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	next := ""
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		next = keys[len(keys)-1]
	}
	out := make([]*api.StorageObject, 0, len(keys))
	for _, k := range keys {
		cp := *f.objects[collection][k]
		out = append(out, &cp)
	}
	return out, next, nil
}

func (f *fakeStorage) MultiUpdate(_ context.Context, _ []*runtime.AccountUpdate, writes []*runtime.StorageWrite, deletes []*runtime.StorageDelete, _ []*runtime.WalletUpdate, _ bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, w := range writes {
		if !f.versionOK(w.Collection, w.Key, w.Version) {
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}
	for _, d := range deletes {
		if !f.versionOK(d.Collection, d.Key, d.Version) {
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}

	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		coll, ok := f.objects[w.Collection]
		if !ok {
			coll = map[string]*api.StorageObject{}
			f.objects[w.Collection] = coll
		}
		f.clock++
		version := "v" + strconv.Itoa(f.clock)
		coll[w.Key] = &api.StorageObject{
			Collection:      w.Collection,
			Key:             w.Key,
			Value:           w.Value,
			Version:         version,
			PermissionRead:  int32(w.PermissionRead),
			PermissionWrite: int32(w.PermissionWrite),
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, Version: version})
	}
	for _, d := range deletes {
		delete(f.objects[d.Collection], d.Key)
	}
	return acks, nil, nil
}

func (f *fakeStorage) versionOK(collection, key, version string) bool {
	cur, exists := f.objects[collection][key]
	switch version {
	case "":
		return true
	case "*":
		return !exists
	default:
		return exists && cur.Version == version
	}
}

// fakeIdentities is a fixed set of accounts old enough to create rooms.
type fakeIdentities struct {
	mu    sync.Mutex
	users map[string]ports.Identity
}

func newFakeIdentities(ids ...string) *fakeIdentities {
	f := &fakeIdentities{users: map[string]ports.Identity{}}
	for _, id := range ids {
		f.users[id] = ports.Identity{ID: id, CreatedAt: time.Now().Add(-time.Hour), Anonymous: true}
	}
	return f
}

func (f *fakeIdentities) GetIdentity(_ context.Context, id string) (ports.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return ports.Identity{}, ports.ErrIdentityNotFound
}

func (f *fakeIdentities) DeleteIdentity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ports.ErrIdentityNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeIdentities) ListIdentities(context.Context, string, int) ([]ports.Identity, string, error) {
	return nil, "", nil
}
