package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbcache/storetest"
	"github.com/marmos91/dittobrowse/pkg/vfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_InMemory(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) thumbcache.Store {
			s, err := New(context.Background(), Config{})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestBadgerStore_OnDisk(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) thumbcache.Store {
			s, err := New(context.Background(), Config{Dir: t.TempDir()})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestBadgerStore_ReopenStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(ctx, Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put("/srv/data/a.jpg", []byte("a")))
	require.NoError(t, s.Close())

	s, err = New(ctx, Config{Dir: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Get("/srv/data/a.jpg")
	assert.ErrorIs(t, err, thumbcache.ErrMiss)
}

func TestNew_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, Config{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadgerStore_BehindCache(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()
	fsys.WriteFile("/srv/data/cat.jpg", []byte("meow"), time.Unix(1000, 0))
	res, err := resolver.New(ctx, "/srv/data", fsys)
	require.NoError(t, err)
	key, err := res.Resolve(ctx, "cat.jpg")
	require.NoError(t, err)

	store, err := New(ctx, Config{})
	require.NoError(t, err)

	c := thumbcache.New(fsys, thumbcache.WithStore(store))
	c.Start()
	defer func() { assert.NoError(t, c.Stop(ctx)) }()

	c.Insert(key, []byte("thumb"))
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("thumb"), got.Data)
}
