// Package panicfs provides a vfs.VFS that panics on every call.
//
// Inject it into code paths that must never touch storage (validation-only
// rejections, cached hits served without a stat) so an accidental call fails
// the test loudly instead of silently succeeding against a real disk.
package panicfs

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// FS panics on every method.
type FS struct{}

// New returns a panicking VFS.
func New() FS {
	return FS{}
}

func (FS) Canonicalize(_ context.Context, path string) (string, error) {
	panic(fmt.Sprintf("panicfs: Canonicalize(%q) called", path))
}

func (FS) Stat(_ context.Context, path string) (*vfs.FileRecord, error) {
	panic(fmt.Sprintf("panicfs: Stat(%q) called", path))
}

func (FS) Lstat(_ context.Context, path string) (*vfs.FileRecord, error) {
	panic(fmt.Sprintf("panicfs: Lstat(%q) called", path))
}

func (FS) List(_ context.Context, path string, limit int) (bool, []vfs.FileRecord, error) {
	panic(fmt.Sprintf("panicfs: List(%q, %d) called", path, limit))
}

func (FS) OpenForRead(_ context.Context, path string) (io.ReadCloser, error) {
	panic(fmt.Sprintf("panicfs: OpenForRead(%q) called", path))
}

var _ vfs.VFS = FS{}
