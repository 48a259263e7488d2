// Package docstore implements ports.DocumentStore on top of a versioned
// object backend. The first path segment names a collection, the second a
// key, and the rest address a node inside that object's JSON tree. Multi-path
// updates and transactions use optimistic concurrency on object versions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"ito/internal/ports"
)

const (
	DefaultMaxAttempts = 25
	listPageSize       = 100
)

// ErrContention is returned when optimistic retries are exhausted.
var ErrContention = errors.New("document store contention: retries exhausted")

// Store is the DocumentStore over a Backend.
type Store struct {
	backend     Backend
	maxAttempts int
}

var _ ports.DocumentStore = (*Store)(nil)

// New wraps backend in a DocumentStore.
func New(backend Backend) *Store {
	return &Store{backend: backend, maxAttempts: DefaultMaxAttempts}
}

// NewMemoryStore returns a Store over a fresh MemoryBackend.
func NewMemoryStore() *Store {
	return New(NewMemoryBackend())
}

// Backend exposes the underlying object backend.
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Get(ctx context.Context, path string, dst any) error {
	loc, err := parsePath(path)
	if err != nil {
		return err
	}

	var node any
	if loc.key == "" {
		node, err = s.collection(ctx, loc.collection)
		if err != nil {
			return err
		}
	} else {
		tree, _, err := s.read(ctx, loc)
		if err != nil {
			return err
		}
		node, _ = getNode(tree, loc.sub)
	}
	if node == nil {
		return ports.ErrNotFound
	}
	if dst == nil {
		return nil
	}
	b, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

type change struct {
	loc   location
	value any
}

func (s *Store) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	groups := map[string][]change{}
	var all []location
	for p, v := range values {
		loc, err := parsePath(p)
		if err != nil {
			return err
		}
		if loc.key == "" {
			return fmt.Errorf("%w: cannot write a whole collection: %q", ErrInvalidPath, p)
		}
		for _, other := range all {
			if loc.overlaps(other) {
				return fmt.Errorf("%w: %q overlaps %q", ErrInvalidPath, loc, other)
			}
		}
		all = append(all, loc)
		groups[loc.object()] = append(groups[loc.object()], change{loc: loc, value: v})
	}
	objects := make([]string, 0, len(groups))
	for id := range groups {
		objects = append(objects, id)
	}
	sort.Strings(objects)

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		writes := make([]Write, 0, len(objects))
		for _, id := range objects {
			changes := groups[id]
			tree, version, err := s.read(ctx, changes[0].loc)
			if err != nil && !errors.Is(err, ports.ErrNotFound) {
				return err
			}
			for _, c := range changes {
				v, err := normalize(c.value)
				if err != nil {
					return fmt.Errorf("encode %s: %w", c.loc, err)
				}
				tree = setNode(tree, c.loc.sub, v)
			}
			w, ok, err := buildWrite(changes[0].loc, tree, version)
			if err != nil {
				return err
			}
			if ok {
				writes = append(writes, w)
			}
		}
		if len(writes) == 0 {
			return nil
		}
		err := s.backend.Apply(ctx, writes)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *Store) Transact(ctx context.Context, path string, fn ports.TransactFunc) (json.RawMessage, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if loc.key == "" {
		return nil, fmt.Errorf("%w: cannot transact on a whole collection: %q", ErrInvalidPath, path)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, version, err := s.read(ctx, loc)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		var current json.RawMessage
		if node, ok := getNode(tree, loc.sub); ok {
			if current, err = json.Marshal(node); err != nil {
				return nil, err
			}
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		nv, err := normalize(next)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", loc, err)
		}
		committed, err := encodeTree(nv)
		if err != nil {
			return nil, err
		}
		tree = setNode(tree, loc.sub, nv)
		w, ok, err := buildWrite(loc, tree, version)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		err = s.backend.Apply(ctx, []Write{w})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return committed, nil
	}
	return nil, ErrContention
}

// read loads and decodes the object holding loc. A missing object yields a
// nil tree, VersionAbsent and ports.ErrNotFound.
func (s *Store) read(ctx context.Context, loc location) (any, string, error) {
	obj, err := s.backend.Read(ctx, loc.collection, loc.key)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, VersionAbsent, err
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", loc.object(), err)
	}
	tree, err := decodeTree(obj.Value)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", loc.object(), err)
	}
	return tree, obj.Version, nil
}

// buildWrite turns a new object tree into a conditional write. It reports
// false when there is nothing to do: deleting an object that never existed.
func buildWrite(loc location, tree any, version string) (Write, bool, error) {
	w := Write{Collection: loc.collection, Key: loc.key, Version: version}
	if tree == nil {
		return w, version != VersionAbsent, nil
	}
	b, err := encodeTree(tree)
	if err != nil {
		return Write{}, false, err
	}
	w.Value = b
	return w, true, nil
}

func (s *Store) collection(ctx context.Context, collection string) (any, error) {
	out := map[string]any{}
	cursor := ""
	for {
		objs, next, err := s.backend.List(ctx, collection, cursor, listPageSize)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		for _, o := range objs {
			tree, err := decodeTree(o.Value)
			if err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", collection, o.Key, err)
			}
			if tree != nil {
				out[o.Key] = tree
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
