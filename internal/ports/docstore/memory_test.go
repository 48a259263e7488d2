package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ito/internal/ports"
	"ito/internal/ports/docstore"
	"ito/internal/ports/docstore/storetest"
)

func newMemory(t *testing.T) docstore.Backend { return docstore.NewMemoryBackend() }

func TestMemoryBackend(t *testing.T) {
	storetest.RunBackend(t, newMemory)
}

func TestMemoryStore(t *testing.T) {
	storetest.RunStore(t, newMemory)
}

func TestInvalidPaths(t *testing.T) {
	s := docstore.NewMemoryStore()
	ctx := context.Background()
	for _, p := range []string{"", "/", "rooms//x", "rooms/a.b", "rooms/$x"} {
		assert.ErrorIs(t, s.Set(ctx, p, 1), docstore.ErrInvalidPath, "path %q", p)
	}
	assert.ErrorIs(t, s.Set(ctx, "rooms", 1), docstore.ErrInvalidPath)
}

func TestIdentityRegistry(t *testing.T) {
	ctx := context.Background()
	reg := docstore.NewIdentityRegistry(docstore.NewMemoryBackend())

	a, err := reg.CreateAnonymous(ctx)
	require.NoError(t, err)
	b, err := reg.CreateAnonymous(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := reg.GetIdentity(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Anonymous)
	assert.Equal(t, a.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	all, next, err := reg.ListIdentities(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Len(t, all, 2)

	require.NoError(t, reg.DeleteIdentity(ctx, a.ID))
	_, err = reg.GetIdentity(ctx, a.ID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
	assert.ErrorIs(t, reg.DeleteIdentity(ctx, a.ID), ports.ErrIdentityNotFound)
}
