package panicfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryMethodPanics(t *testing.T) {
	ctx := context.Background()
	fsys := New()

	assert.Panics(t, func() { _, _ = fsys.Canonicalize(ctx, "/a") })
	assert.Panics(t, func() { _, _ = fsys.Stat(ctx, "/a") })
	assert.Panics(t, func() { _, _ = fsys.Lstat(ctx, "/a") })
	assert.Panics(t, func() { _, _, _ = fsys.List(ctx, "/a", 10) })
	assert.Panics(t, func() { _, _ = fsys.OpenForRead(ctx, "/a") })
}
