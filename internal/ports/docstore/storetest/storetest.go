// Package storetest holds conformance tests shared by every docstore.Backend.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ito/internal/ports"
	"ito/internal/ports/docstore"
)

// Factory returns an empty backend for one subtest.
type Factory func(t *testing.T) docstore.Backend

// RunBackend exercises the conditional write contract of a Backend.
func RunBackend(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("read missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Read(ctx, "rooms", "nope")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("create only once", func(t *testing.T) {
		b := newBackend(t)
		w := docstore.Write{Collection: "passwords", Key: "0420", Value: []byte(`"r1"`), Version: docstore.VersionAbsent}
		require.NoError(t, b.Apply(ctx, []docstore.Write{w}))
		w.Value = []byte(`"r2"`)
		assert.ErrorIs(t, b.Apply(ctx, []docstore.Write{w}), docstore.ErrVersionConflict)

		obj, err := b.Read(ctx, "passwords", "0420")
		require.NoError(t, err)
		assert.JSONEq(t, `"r1"`, string(obj.Value))
	})

	t.Run("stale version rejected", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "rooms", Key: "r", Value: []byte(`{"n":1}`)}}))
		first, err := b.Read(ctx, "rooms", "r")
		require.NoError(t, err)

		require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "rooms", Key: "r", Value: []byte(`{"n":2}`), Version: first.Version}}))
		err = b.Apply(ctx, []docstore.Write{{Collection: "rooms", Key: "r", Value: []byte(`{"n":3}`), Version: first.Version}})
		assert.ErrorIs(t, err, docstore.ErrVersionConflict)

		obj, err := b.Read(ctx, "rooms", "r")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":2}`, string(obj.Value))
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "rooms", Key: "r", Value: []byte(`{"n":1}`)}}))
		obj, err := b.Read(ctx, "rooms", "r")
		require.NoError(t, err)
		require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "rooms", Key: "r", Version: obj.Version}}))
		_, err = b.Read(ctx, "rooms", "r")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("batch is atomic", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "passwords", Key: "1111", Value: []byte(`"r0"`)}}))
		err := b.Apply(ctx, []docstore.Write{
			{Collection: "rooms", Key: "r1", Value: []byte(`{"n":1}`), Version: docstore.VersionAbsent},
			{Collection: "passwords", Key: "1111", Value: []byte(`"r1"`), Version: docstore.VersionAbsent},
		})
		assert.ErrorIs(t, err, docstore.ErrVersionConflict)
		_, err = b.Read(ctx, "rooms", "r1")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("list pages in key order", func(t *testing.T) {
		b := newBackend(t)
		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("k%d", i)
			require.NoError(t, b.Apply(ctx, []docstore.Write{{Collection: "players", Key: key, Value: []byte(`{"lastConnected":1}`)}}))
		}
		var keys []string
		cursor := ""
		for pages := 0; pages < 10; pages++ {
			objs, next, err := b.List(ctx, "players", cursor, 2)
			require.NoError(t, err)
			for _, o := range objs {
				keys = append(keys, o.Key)
			}
			if next == "" {
				break
			}
			cursor = next
		}
		assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys)
	})
}

// RunStore exercises a docstore.Store built on the backend.
func RunStore(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("nested set and get", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		require.NoError(t, s.Set(ctx, "rooms/r1/state/phase", 0))
		require.NoError(t, s.Set(ctx, "rooms/r1/password", "0420"))

		var phase int
		require.NoError(t, s.Get(ctx, "rooms/r1/state/phase", &phase))
		assert.Equal(t, 0, phase)

		var room map[string]any
		require.NoError(t, s.Get(ctx, "rooms/r1", &room))
		assert.Equal(t, "0420", room["password"])
	})

	t.Run("empty maps are pruned", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		require.NoError(t, s.Set(ctx, "rooms/r1/state/playerState/a/hint", "h"))
		require.NoError(t, s.Delete(ctx, "rooms/r1/state/playerState/a/hint"))
		assert.ErrorIs(t, s.Get(ctx, "rooms/r1", nil), ports.ErrNotFound)
	})

	t.Run("multi path update", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		require.NoError(t, s.Set(ctx, "rooms/r1/state/config/topic", "fruit"))
		require.NoError(t, s.Update(ctx, map[string]any{
			"rooms/r1/config/topic":   "fruit",
			"rooms/r1/state/config":   nil,
			"rooms/r1/state/phase":    1,
			"players/a/currentGameId": "r1",
			"passwords/0420":          "r1",
		}))
		assert.ErrorIs(t, s.Get(ctx, "rooms/r1/state/config", nil), ports.ErrNotFound)
		var owner string
		require.NoError(t, s.Get(ctx, "passwords/0420", &owner))
		assert.Equal(t, "r1", owner)
	})

	t.Run("overlapping paths rejected", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		err := s.Update(ctx, map[string]any{
			"rooms/r1/state":       map[string]any{"phase": 0},
			"rooms/r1/state/phase": 1,
		})
		assert.ErrorIs(t, err, docstore.ErrInvalidPath)
	})

	t.Run("collection get", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		require.NoError(t, s.Set(ctx, "passwords/0001", "r1"))
		require.NoError(t, s.Set(ctx, "passwords/0002", "r2"))
		var all map[string]string
		require.NoError(t, s.Get(ctx, "passwords", &all))
		assert.Equal(t, map[string]string{"0001": "r1", "0002": "r2"}, all)
	})

	t.Run("transact abort returns error verbatim", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		abort := fmt.Errorf("taken")
		require.NoError(t, s.Set(ctx, "passwords/0420", "r1"))
		_, err := s.Transact(ctx, "passwords/0420", func(current json.RawMessage) (any, error) {
			if current != nil {
				return nil, abort
			}
			return "r2", nil
		})
		assert.Same(t, abort, err)
	})

	t.Run("transact returning nil deletes", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		require.NoError(t, s.Set(ctx, "passwords/0420", "r1"))
		out, err := s.Transact(ctx, "passwords/0420", func(json.RawMessage) (any, error) { return nil, nil })
		require.NoError(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, s.Get(ctx, "passwords/0420", nil), ports.ErrNotFound)
	})

	t.Run("concurrent transactions serialize", func(t *testing.T) {
		s := docstore.New(newBackend(t))
		const workers = 8
		const perWorker = 5
		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := s.Transact(ctx, "counters/c/n", func(current json.RawMessage) (any, error) {
						var n int
						if current != nil {
							if err := json.Unmarshal(current, &n); err != nil {
								return nil, err
							}
						}
						return n + 1, nil
					})
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		var n int
		require.NoError(t, s.Get(ctx, "counters/c/n", &n))
		assert.Equal(t, workers*perWorker, n)
	})
}
