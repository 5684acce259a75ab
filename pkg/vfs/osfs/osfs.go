// Package osfs implements vfs.VFS on top of the host operating system.
//
// Paths are native absolute paths. Blocking syscalls run on the calling
// goroutine; the Go runtime parks the goroutine and hands its thread's other
// work to a fresh OS thread, so a slow disk does not stall unrelated requests.
//
// When created with NewJailed, reads and stats are additionally routed through
// an os.Root opened on the served directory. That closes the window between
// resolution and use: a symlink swapped in after resolution cannot redirect an
// open outside the jail.
package osfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// readBatch bounds how many directory entries are pulled per getdents call.
const readBatch = 256

// FS is the operating system backed VFS.
//
// Thread Safety: Safe for concurrent use.
type FS struct {
	jail     *os.Root
	jailPath string
}

// New returns an unjailed OS filesystem.
func New() *FS {
	return &FS{}
}

// NewJailed returns an OS filesystem whose OpenForRead and Stat calls cannot
// leave dir, even if the tree is modified after a path was resolved.
//
// dir is canonicalized first, so callers may pass a path containing symlinks.
func NewJailed(dir string) (*FS, error) {
	canonical, err := canonicalize(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize jail %q: %w", dir, err)
	}

	root, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to open jail %q: %w", canonical, err)
	}

	return &FS{jail: root, jailPath: canonical}, nil
}

// Close releases the jail handle, if any.
func (f *FS) Close() error {
	if f.jail == nil {
		return nil
	}
	return f.jail.Close()
}

// Canonicalize implements vfs.VFS.
func (f *FS) Canonicalize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := canonicalize(path)
	if err != nil {
		return "", mapErr("canonicalize", path, err)
	}
	return out, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Stat implements vfs.VFS.
func (f *FS) Stat(ctx context.Context, path string) (*vfs.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		info fs.FileInfo
		err  error
	)
	if rel, ok := f.jailed(path); ok {
		info, err = f.jail.Stat(rel)
	} else {
		info, err = os.Stat(path)
	}
	if err != nil {
		return nil, mapErr("stat", path, err)
	}

	rec := recordFromInfo(filepath.Base(path), info)
	if rec.Kind == vfs.Unknown {
		return nil, vfs.PathErr("stat", path, vfs.ErrUnsupportedKind)
	}
	return &rec, nil
}

// Lstat implements vfs.VFS.
func (f *FS) Lstat(ctx context.Context, path string) (*vfs.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, mapErr("lstat", path, err)
	}

	rec := recordFromInfo(filepath.Base(path), info)
	if rec.Kind == vfs.Unknown {
		return nil, vfs.PathErr("lstat", path, vfs.ErrUnsupportedKind)
	}
	return &rec, nil
}

// List implements vfs.VFS.
func (f *FS) List(ctx context.Context, path string, limit int) (bool, []vfs.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	if limit <= 0 {
		return false, nil, vfs.PathErr("list", path, vfs.ErrInvalidLimit)
	}

	dir, err := os.Open(path)
	if err != nil {
		return false, nil, mapErr("list", path, err)
	}
	defer func() { _ = dir.Close() }()

	info, err := dir.Stat()
	if err != nil {
		return false, nil, mapErr("list", path, err)
	}
	if !info.IsDir() {
		return false, nil, vfs.PathErr("list", path, vfs.ErrNotDirectory)
	}

	entries := make([]vfs.FileRecord, 0, min(limit, readBatch))
	for len(entries) < limit {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}

		batch, err := dir.ReadDir(min(limit-len(entries), readBatch))
		for _, de := range batch {
			info, infoErr := de.Info()
			if infoErr != nil {
				logger.Debug("osfs: skipping unreadable entry %q in %s: %v", de.Name(), path, infoErr)
				continue
			}
			entries = append(entries, recordFromInfo(de.Name(), info))
		}

		if errors.Is(err, io.EOF) || (err == nil && len(batch) == 0) {
			return false, entries, nil
		}
		if err != nil {
			// A failure part way through still leaves a usable prefix.
			logger.Warn("osfs: directory read of %s stopped early: %v", path, err)
			return true, entries, nil
		}
	}

	more, _ := dir.ReadDir(1)
	return len(more) > 0, entries, nil
}

// OpenForRead implements vfs.VFS.
func (f *FS) OpenForRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		file *os.File
		err  error
	)
	if rel, ok := f.jailed(path); ok {
		file, err = f.jail.Open(rel)
	} else {
		file, err = os.Open(path)
	}
	if err != nil {
		return nil, mapErr("open", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, mapErr("open", path, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, vfs.PathErr("open", path, vfs.ErrIsDirectory)
	}

	return file, nil
}

// jailed returns path relative to the jail when a jail is configured and path
// is inside it.
func (f *FS) jailed(path string) (string, bool) {
	if f.jail == nil {
		return "", false
	}
	rel, err := filepath.Rel(f.jailPath, path)
	if err != nil || !filepath.IsLocal(rel) && rel != "." {
		return "", false
	}
	return rel, true
}

func recordFromInfo(name string, info fs.FileInfo) vfs.FileRecord {
	return vfs.NewFileRecord(kindOf(info.Mode()), name, info.Size(), info.ModTime())
}

func kindOf(mode fs.FileMode) vfs.FileKind {
	switch {
	case mode.IsRegular():
		return vfs.RegularFile
	case mode.IsDir():
		return vfs.Directory
	case mode&fs.ModeSymlink != 0:
		return vfs.Symlink
	default:
		return vfs.Unknown
	}
}

// mapErr normalizes OS errors so errors.Is(err, vfs.ErrNotFound) holds for
// every flavor of "does not exist".
func mapErr(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &fs.PathError{Op: op, Path: path, Err: vfs.ErrNotFound}
	case errors.Is(err, syscall.ENOTDIR):
		return &fs.PathError{Op: op, Path: path, Err: vfs.ErrNotFound}
	default:
		return vfs.PathErr(op, path, err)
	}
}

var _ vfs.VFS = (*FS)(nil)
