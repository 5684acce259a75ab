// Package resolver turns untrusted client paths into paths that are proven to
// lie inside a configured root directory.
//
// Resolution is the only way to obtain a ConfinedPath. Every consumer of the
// filesystem (listing, downloads, the thumbnail cache) accepts ConfinedPath
// rather than a string, so an unchecked path cannot reach a VFS call by
// accident.
//
// Assumption: the served tree is not mutated concurrently by an adversary.
// A symlink swapped in between Resolve and the subsequent open is not caught
// here. Deployments that cannot trust the tree should pair the resolver with
// a jailed backend (osfs.NewJailed), which refuses to leave the root at open
// time.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/pathguard"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

var (
	// ErrNotFound is the only error class callers should expose. Every
	// failure returned by Resolve and ResolveChild matches it, whether the
	// path was malformed, missing, unreadable or outside the root.
	ErrNotFound = errors.New("not found")

	// ErrOutsideRoot marks a path whose canonical form escapes the root,
	// typically through a symlink. It always comes wrapped with ErrNotFound.
	ErrOutsideRoot = errors.New("path resolves outside root")
)

// Outcome labels reported to Metrics.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeMissing  = "missing"
	OutcomeEscaped  = "escaped"
)

// Metrics observes resolution outcomes.
type Metrics interface {
	RecordResolve(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordResolve(string) {}

// notFoundError carries the underlying cause while matching ErrNotFound.
type notFoundError struct {
	path  string
	cause error
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.path, e.cause)
}

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *notFoundError) Unwrap() error { return e.cause }

func notFound(path string, cause error) error {
	return &notFoundError{path: path, cause: cause}
}

// ConfinedPath is a canonical absolute path known to lie inside a root.
//
// The zero value is not a valid path. ConfinedPath values are comparable and
// safe to share between goroutines.
type ConfinedPath struct {
	abs string
	rel string
}

// String returns the absolute canonical path.
func (p ConfinedPath) String() string { return p.abs }

// Rel returns the path relative to the root in slash form ("" for the root).
func (p ConfinedPath) Rel() string { return p.rel }

// Base returns the final element of the path.
func (p ConfinedPath) Base() string { return filepath.Base(p.abs) }

// IsZero reports whether p was not produced by a Resolver.
func (p ConfinedPath) IsZero() bool { return p.abs == "" }

// Option configures a Resolver.
type Option func(*Resolver)

// WithValidator replaces the default path validator.
func WithValidator(v *pathguard.Validator) Option {
	return func(r *Resolver) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithMetrics sets the metrics sink. A nil value keeps the no-op sink.
func WithMetrics(m Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Resolver confines client paths to a root directory on a VFS.
//
// Thread Safety: Safe for concurrent use. A Resolver holds no mutable state.
type Resolver struct {
	fsys      vfs.VFS
	root      ConfinedPath
	validator *pathguard.Validator
	metrics   Metrics
}

// New canonicalizes root once and returns a resolver for it.
//
// Parameters:
//   - ctx: Cancels the root canonicalization
//   - root: The directory to expose; it must exist and be a directory
//   - fsys: The filesystem every later call goes through
//
// Returns:
//   - *Resolver: Ready for concurrent use
//   - error: If root cannot be canonicalized or is not a directory
func New(ctx context.Context, root string, fsys vfs.VFS, opts ...Option) (*Resolver, error) {
	if fsys == nil {
		return nil, errors.New("resolver: filesystem is required")
	}
	if root == "" {
		return nil, errors.New("resolver: root is required")
	}

	canonical, err := fsys.Canonicalize(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize root %q: %w", root, err)
	}

	rec, err := fsys.Stat(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %q: %w", canonical, err)
	}
	if !rec.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", canonical)
	}

	r := &Resolver{
		fsys:      fsys,
		root:      ConfinedPath{abs: canonical},
		validator: pathguard.Default(),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}

	logger.Debug("Resolver rooted at %s", canonical)
	return r, nil
}

// Root returns the canonical root as a ConfinedPath.
func (r *Resolver) Root() ConfinedPath { return r.root }

// Resolve confines a client-supplied path.
//
// Step 1: strip one leading separator and validate the remainder. A rejected
// path never reaches the filesystem.
// Step 2: join it to the root and canonicalize through the VFS, following
// every symlink.
// Step 3: require the canonical result to be the root or a descendant of it,
// compared component by component.
//
// Every error matches ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, userPath string) (ConfinedPath, error) {
	trimmed := strings.TrimPrefix(userPath, "/")

	if err := r.validator.Check(trimmed); err != nil {
		r.metrics.RecordResolve(OutcomeRejected)
		return ConfinedPath{}, notFound(userPath, err)
	}

	return r.confine(ctx, userPath, filepath.Join(r.root.abs, filepath.FromSlash(trimmed)))
}

// ResolveChild confines the directory entry name inside dir.
//
// name is a single path element as reported by VFS.List. It is validated like
// any client input, since a hostile tree can contain entries whose names the
// validator would reject.
func (r *Resolver) ResolveChild(ctx context.Context, dir ConfinedPath, name string) (ConfinedPath, error) {
	if dir.IsZero() {
		return ConfinedPath{}, notFound(name, errors.New("zero directory"))
	}
	if strings.Contains(name, "/") || name == "" {
		r.metrics.RecordResolve(OutcomeRejected)
		return ConfinedPath{}, notFound(name, fmt.Errorf("%w: entry name is not a single element", pathguard.ErrRejected))
	}
	if err := r.validator.Check(name); err != nil {
		r.metrics.RecordResolve(OutcomeRejected)
		return ConfinedPath{}, notFound(name, err)
	}

	return r.confine(ctx, name, filepath.Join(dir.abs, name))
}

func (r *Resolver) confine(ctx context.Context, display, joined string) (ConfinedPath, error) {
	canonical, err := r.fsys.Canonicalize(ctx, joined)
	if err != nil {
		if !vfs.IsNotFound(err) && ctx.Err() == nil {
			logger.Debug("Canonicalize %s failed: %v", joined, err)
		}
		r.metrics.RecordResolve(OutcomeMissing)
		return ConfinedPath{}, notFound(display, err)
	}

	rel, ok := within(r.root.abs, canonical)
	if !ok {
		logger.Warn("Path %q resolves outside root: %s", display, canonical)
		r.metrics.RecordResolve(OutcomeEscaped)
		return ConfinedPath{}, notFound(display, ErrOutsideRoot)
	}

	r.metrics.RecordResolve(OutcomeOK)
	return ConfinedPath{abs: canonical, rel: rel}, nil
}

// within reports whether p equals root or lies below it, and returns p
// relative to root in slash form. "/srv/data2" is not within "/srv/data".
func within(root, p string) (string, bool) {
	if p == root {
		return "", true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}

	return filepath.ToSlash(p[len(prefix):]), true
}
