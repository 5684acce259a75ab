// Package memfs is a deterministic in-memory vfs.VFS for tests.
//
// Paths are slash-separated and absolute. The tree supports regular files,
// directories, symlinks (absolute or relative targets) and "special" nodes
// that stand in for sockets or devices. Modification times are whatever the
// test sets, and errors can be injected per operation and path.
//
// Directory listings are returned in name order so results are reproducible.
package memfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// maxSymlinkHops mirrors the usual kernel limit before ELOOP.
const maxSymlinkHops = 40

// ErrSymlinkLoop is returned when resolution exceeds maxSymlinkHops.
var ErrSymlinkLoop = errors.New("too many levels of symbolic links")

// Op names used with InjectError.
const (
	OpCanonicalize = "canonicalize"
	OpStat         = "stat"
	OpLstat        = "lstat"
	OpList         = "list"
	OpOpen         = "open"

	// OpEntry makes List skip the child at the given path, as if reading
	// that single entry failed.
	OpEntry = "entry"
)

type node struct {
	kind     vfs.FileKind
	data     []byte
	target   string
	children map[string]*node
	modified time.Time
	noMtime  bool
}

// FS is the in-memory filesystem.
//
// Thread Safety: Safe for concurrent use. Mutators take a write lock.
type FS struct {
	mu       sync.RWMutex
	root     *node
	failures map[string]error
	calls    map[string]int
}

// New returns an empty tree containing only "/".
func New() *FS {
	return &FS{
		root:     &node{kind: vfs.Directory, children: map[string]*node{}, modified: time.Unix(0, 0).UTC()},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

// MkdirAll creates dir and any missing parents with the given mtime.
func (f *FS) MkdirAll(dir string, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAllLocked(clean(dir), modified)
}

func (f *FS) mkdirAllLocked(dir string, modified time.Time) *node {
	cur := f.root
	for _, name := range split(dir) {
		next, ok := cur.children[name]
		if !ok {
			next = &node{kind: vfs.Directory, children: map[string]*node{}, modified: modified}
			cur.children[name] = next
		}
		cur = next
	}
	return cur
}

// WriteFile creates or replaces a regular file, creating parents.
func (f *FS) WriteFile(name string, data []byte, modified time.Time) {
	f.put(name, &node{kind: vfs.RegularFile, data: bytes.Clone(data), modified: modified})
}

// Symlink creates a symlink at name pointing to target.
func (f *FS) Symlink(target, name string, modified time.Time) {
	f.put(name, &node{kind: vfs.Symlink, target: target, modified: modified})
}

// Mknod creates a node of Unknown kind (a stand-in for a FIFO or device).
func (f *FS) Mknod(name string, modified time.Time) {
	f.put(name, &node{kind: vfs.Unknown, modified: modified})
}

func (f *FS) put(name string, n *node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = clean(name)
	parent := f.mkdirAllLocked(path.Dir(name), n.modified)
	parent.children[path.Base(name)] = n
}

// Chtimes updates the modification time of name without following symlinks.
func (f *FS) Chtimes(name string, modified time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.lookupLocked(clean(name))
	if n == nil {
		return &fs.PathError{Op: "chtimes", Path: name, Err: vfs.ErrNotFound}
	}
	n.modified = modified
	n.noMtime = false
	return nil
}

// DropModTime makes name report no modification time.
func (f *FS) DropModTime(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.lookupLocked(clean(name))
	if n == nil {
		return &fs.PathError{Op: "chtimes", Path: name, Err: vfs.ErrNotFound}
	}
	n.noMtime = true
	return nil
}

// Remove deletes name (and everything below it).
func (f *FS) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = clean(name)
	if parent := f.lookupLocked(path.Dir(name)); parent != nil && parent.children != nil {
		delete(parent.children, path.Base(name))
	}
}

// InjectError makes op on name fail with err until ClearErrors is called.
func (f *FS) InjectError(op, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+"\x00"+clean(name)] = err
}

// ClearErrors removes every injected error.
func (f *FS) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = map[string]error{}
}

// Calls returns how many times op was invoked (any path).
func (f *FS) Calls(op string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[op]
}

func (f *FS) begin(ctx context.Context, op, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.calls[op]++
	if err, ok := f.failures[op+"\x00"+name]; ok {
		return &fs.PathError{Op: op, Path: name, Err: err}
	}
	return nil
}

// Canonicalize implements vfs.VFS.
func (f *FS) Canonicalize(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := abs(name)
	name = clean(name)
	if err := f.begin(ctx, OpCanonicalize, name); err != nil {
		return "", err
	}

	resolved, _, err := f.resolveLocked(raw, true)
	if err != nil {
		return "", &fs.PathError{Op: OpCanonicalize, Path: name, Err: err}
	}
	return resolved, nil
}

// Stat implements vfs.VFS.
func (f *FS) Stat(ctx context.Context, name string) (*vfs.FileRecord, error) {
	return f.stat(ctx, OpStat, name, true)
}

// Lstat implements vfs.VFS.
func (f *FS) Lstat(ctx context.Context, name string) (*vfs.FileRecord, error) {
	return f.stat(ctx, OpLstat, name, false)
}

func (f *FS) stat(ctx context.Context, op, name string, follow bool) (*vfs.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := abs(name)
	name = clean(name)
	if err := f.begin(ctx, op, name); err != nil {
		return nil, err
	}

	_, n, err := f.resolveLocked(raw, follow)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	if n.kind == vfs.Unknown {
		return nil, &fs.PathError{Op: op, Path: name, Err: vfs.ErrUnsupportedKind}
	}

	rec := n.record(path.Base(name))
	return &rec, nil
}

// List implements vfs.VFS.
func (f *FS) List(ctx context.Context, name string, limit int) (bool, []vfs.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := abs(name)
	name = clean(name)
	if err := f.begin(ctx, OpList, name); err != nil {
		return false, nil, err
	}
	if limit <= 0 {
		return false, nil, &fs.PathError{Op: OpList, Path: name, Err: vfs.ErrInvalidLimit}
	}

	resolved, dir, err := f.resolveLocked(raw, true)
	if err != nil {
		return false, nil, &fs.PathError{Op: OpList, Path: name, Err: err}
	}
	if dir.kind != vfs.Directory {
		return false, nil, &fs.PathError{Op: OpList, Path: name, Err: vfs.ErrNotDirectory}
	}

	names := make([]string, 0, len(dir.children))
	for child := range dir.children {
		names = append(names, child)
	}
	slices.Sort(names)

	entries := make([]vfs.FileRecord, 0, min(limit, len(names)))
	for _, child := range names {
		if len(entries) == limit {
			return true, entries, nil
		}
		if _, failed := f.failures[OpEntry+"\x00"+path.Join(resolved, child)]; failed {
			continue
		}
		entries = append(entries, dir.children[child].record(child))
	}
	return false, entries, nil
}

// OpenForRead implements vfs.VFS.
func (f *FS) OpenForRead(ctx context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := abs(name)
	name = clean(name)
	if err := f.begin(ctx, OpOpen, name); err != nil {
		return nil, err
	}

	_, n, err := f.resolveLocked(raw, true)
	if err != nil {
		return nil, &fs.PathError{Op: OpOpen, Path: name, Err: err}
	}
	switch n.kind {
	case vfs.Directory:
		return nil, &fs.PathError{Op: OpOpen, Path: name, Err: vfs.ErrIsDirectory}
	case vfs.RegularFile:
		return io.NopCloser(bytes.NewReader(bytes.Clone(n.data))), nil
	default:
		return nil, &fs.PathError{Op: OpOpen, Path: name, Err: vfs.ErrUnsupportedKind}
	}
}

// resolveLocked walks name from the root, following intermediate symlinks
// always and the final one only when follow is set. It returns the resolved
// path and node.
func (f *FS) resolveLocked(name string, follow bool) (string, *node, error) {
	hops := 0
	pending := split(name)
	cur, curPath := f.root, "/"

	for len(pending) > 0 {
		elem := pending[0]
		pending = pending[1:]

		switch elem {
		case ".":
			continue
		case "..":
			curPath = path.Dir(curPath)
			cur = f.lookupLocked(curPath)
			continue
		}

		if cur.kind != vfs.Directory {
			return "", nil, vfs.ErrNotFound
		}
		next, ok := cur.children[elem]
		if !ok {
			return "", nil, vfs.ErrNotFound
		}

		if next.kind == vfs.Symlink && (follow || len(pending) > 0) {
			hops++
			if hops > maxSymlinkHops {
				return "", nil, ErrSymlinkLoop
			}
			target := next.target
			if !strings.HasPrefix(target, "/") {
				target = path.Join(curPath, target)
			}
			pending = append(split(target), pending...)
			cur, curPath = f.root, "/"
			continue
		}

		cur, curPath = next, path.Join(curPath, elem)
	}

	return curPath, cur, nil
}

// lookupLocked finds name literally (no symlink handling).
func (f *FS) lookupLocked(name string) *node {
	cur := f.root
	for _, elem := range split(name) {
		if cur.children == nil {
			return nil
		}
		next, ok := cur.children[elem]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func (n *node) record(name string) vfs.FileRecord {
	var modified time.Time
	if !n.noMtime {
		modified = n.modified
	}
	return vfs.NewFileRecord(n.kind, name, int64(len(n.data)), modified)
}

func abs(name string) string {
	if !strings.HasPrefix(name, "/") {
		return "/" + name
	}
	return name
}

func clean(name string) string {
	return path.Clean(abs(name))
}

func split(name string) []string {
	var out []string
	for _, elem := range strings.Split(name, "/") {
		if elem != "" {
			out = append(out, elem)
		}
	}
	return out
}

var _ vfs.VFS = (*FS)(nil)
