// Package vfs defines the read-only filesystem capability used by the
// browsing core.
//
// Callers never touch the os package directly. They go through a VFS so that
// tests can substitute an in-memory fake (memfs) or a panicking implementation
// (panicfs), and so alternate backends (osfs, s3fs) can be swapped without
// touching calling code.
//
// Paths handed to a VFS are absolute, slash-separated for non-OS backends, and
// must already have been confined by the resolver. A VFS performs no
// confinement of its own.
package vfs

//go:generate mockgen -destination mockvfs/mockvfs.go -package mockvfs . VFS

import (
	"context"
	"io"
	"time"
)

// FileKind classifies a filesystem object.
type FileKind int

const (
	// Unknown is anything that is not a regular file, directory or symlink
	// (sockets, devices, FIFOs). It is never coerced to a known kind.
	Unknown FileKind = iota
	RegularFile
	Directory
	Symlink
)

func (k FileKind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileRecord describes one filesystem object. Records are values; nothing
// mutates them after a VFS returns them.
type FileRecord struct {
	Kind FileKind

	// Name is the final path element (not the full path).
	Name string

	// Size is set for regular files only.
	Size *uint64

	// Modified is nil when the backend cannot report a modification time.
	Modified *time.Time
}

// IsFile reports whether the record is a regular file.
func (r *FileRecord) IsFile() bool { return r.Kind == RegularFile }

// IsDir reports whether the record is a directory.
func (r *FileRecord) IsDir() bool { return r.Kind == Directory }

// IsSymlink reports whether the record is a symbolic link.
func (r *FileRecord) IsSymlink() bool { return r.Kind == Symlink }

// VFS is the capability interface over a hierarchical, read-only store.
//
// All methods may block on I/O. Implementations check ctx before starting
// work and must be safe for concurrent use.
type VFS interface {
	// Canonicalize returns the absolute path with "." and ".." resolved and
	// every symlink followed to its final target. It fails if any element does
	// not exist.
	Canonicalize(ctx context.Context, path string) (string, error)

	// Stat describes the object at path, following symlinks. An object that is
	// not a file or directory yields ErrUnsupportedKind.
	Stat(ctx context.Context, path string) (*FileRecord, error)

	// Lstat describes the object at path without following a final symlink.
	Lstat(ctx context.Context, path string) (*FileRecord, error)

	// List enumerates at most limit children of the directory at path.
	//
	// Entries are reported as they are stored: a symlink child has kind
	// Symlink. Children that cannot be read are skipped. truncated is true
	// when the limit was reached and more children exist. An error is
	// returned only when the directory itself cannot be read.
	List(ctx context.Context, path string, limit int) (truncated bool, entries []FileRecord, err error)

	// OpenForRead opens the object at path for streaming. The caller closes it.
	OpenForRead(ctx context.Context, path string) (io.ReadCloser, error)
}

// NewFileRecord builds a record, dropping size for non-file kinds and a zero
// modification time.
func NewFileRecord(kind FileKind, name string, size int64, modified time.Time) FileRecord {
	rec := FileRecord{Kind: kind, Name: name}
	if kind == RegularFile && size >= 0 {
		s := uint64(size)
		rec.Size = &s
	}
	if !modified.IsZero() {
		m := modified
		rec.Modified = &m
	}
	return rec
}
