// Package storetest holds the contract suite for thumbcache.Store
// implementations.
package storetest

import (
	"testing"

	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite runs the thumbcache.Store contract against a backend.
//
// Usage:
//
//	func TestBadgerStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) thumbcache.Store { ... },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store. The suite closes it.
	NewStore func(t *testing.T) thumbcache.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.testPutGet)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("Missing", suite.testMissing)
	t.Run("Delete", suite.testDelete)
	t.Run("EmptyBlob", suite.testEmptyBlob)
}

func (suite *StoreTestSuite) open(t *testing.T) thumbcache.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	s := suite.open(t)

	require.NoError(t, s.Put("/srv/data/a.jpg", []byte("aaa")))
	require.NoError(t, s.Put("/srv/data/b.jpg", []byte("bbb")))

	got, err := s.Get("/srv/data/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), got)

	got, err = s.Get("/srv/data/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("bbb"), got)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	s := suite.open(t)

	require.NoError(t, s.Put("k", []byte("old")))
	require.NoError(t, s.Put("k", []byte("new")))

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func (suite *StoreTestSuite) testMissing(t *testing.T) {
	s := suite.open(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, thumbcache.ErrMiss)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	s := suite.open(t)

	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Delete("k"))
	_, err := s.Get("k")
	assert.ErrorIs(t, err, thumbcache.ErrMiss)

	assert.NoError(t, s.Delete("never-existed"))
}

func (suite *StoreTestSuite) testEmptyBlob(t *testing.T) {
	s := suite.open(t)

	require.NoError(t, s.Put("empty", []byte{}))
	got, err := s.Get("empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}
