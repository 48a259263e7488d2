package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"ito/internal/ports"
)

type memoryObject struct {
	value   []byte
	version int64
}

// MemoryBackend is an in-process Backend. Versions come from a single
// counter so a deleted and recreated object never reuses a version.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]map[string]memoryObject
	clock   int64
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: map[string]map[string]memoryObject{}}
}

func (m *MemoryBackend) Read(_ context.Context, collection, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[collection][key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &Object{
		Collection: collection,
		Key:        key,
		Value:      append([]byte(nil), obj.value...),
		Version:    strconv.FormatInt(obj.version, 10),
	}, nil
}

func (m *MemoryBackend) List(_ context.Context, collection, cursor string, limit int) ([]*Object, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.objects[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
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
	out := make([]*Object, 0, len(keys))
	for _, k := range keys {
		obj := coll[k]
		out = append(out, &Object{
			Collection: collection,
			Key:        k,
			Value:      append([]byte(nil), obj.value...),
			Version:    strconv.FormatInt(obj.version, 10),
		})
	}
	return out, next, nil
}

func (m *MemoryBackend) Apply(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		if err := m.check(w); err != nil {
			return err
		}
	}
	for _, w := range writes {
		if w.Value == nil {
			delete(m.objects[w.Collection], w.Key)
			continue
		}
		coll, ok := m.objects[w.Collection]
		if !ok {
			coll = map[string]memoryObject{}
			m.objects[w.Collection] = coll
		}
		m.clock++
		coll[w.Key] = memoryObject{value: append([]byte(nil), w.Value...), version: m.clock}
	}
	return nil
}

func (m *MemoryBackend) check(w Write) error {
	cur, exists := m.objects[w.Collection][w.Key]
	switch w.Version {
	case VersionAny:
		return nil
	case VersionAbsent:
		if exists {
			return fmt.Errorf("%w: %s/%s exists", ErrVersionConflict, w.Collection, w.Key)
		}
	default:
		if !exists || strconv.FormatInt(cur.version, 10) != w.Version {
			return fmt.Errorf("%w: %s/%s changed", ErrVersionConflict, w.Collection, w.Key)
		}
	}
	return nil
}
