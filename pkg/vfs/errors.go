package vfs

import (
	"errors"
	"io/fs"
)

// Standard VFS errors.
//
// Implementations wrap these with path context:
//
//	return nil, &fs.PathError{Op: "stat", Path: p, Err: vfs.ErrNotFound}
//
// Callers check with errors.Is. Any other error returned by a VFS is an
// unexpected I/O failure (permission denied mid-operation, transient backend
// errors) and should be treated as such.
var (
	// ErrNotFound indicates the object does not exist. It matches
	// fs.ErrNotExist so callers can use either.
	ErrNotFound error = notFoundError{}

	// ErrUnsupportedKind indicates the object exists but is not a regular
	// file, directory or symlink.
	ErrUnsupportedKind = errors.New("unsupported file kind")

	// ErrNotDirectory indicates a List call on something that is not a
	// directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory indicates an OpenForRead call on a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrInvalidLimit indicates a List call with a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

type notFoundError struct{}

func (notFoundError) Error() string { return "file not found" }

func (notFoundError) Is(target error) bool { return target == fs.ErrNotExist }

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// PathErr wraps err in an *fs.PathError unless it already is one or is nil.
func PathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return err
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}
