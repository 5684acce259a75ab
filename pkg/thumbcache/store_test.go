package thumbcache_test

import (
	"testing"

	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbcache/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) thumbcache.Store {
			return thumbcache.NewMemoryStore()
		},
	}
	suite.Run(t)
}
