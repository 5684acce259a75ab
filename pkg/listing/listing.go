// Package listing builds the browsable view of a confined directory.
//
// The lister enumerates one directory through the VFS and turns raw records
// into display entries:
//
//   - A symlink entry is re-resolved through the resolver and stat'd. Its kind
//     and size come from the target, its name from the entry itself. A target
//     that cannot be resolved, lies outside the root or cannot be stat'd
//     drops the entry silently.
//   - Kinds other than file and directory are dropped.
//   - Entries without a modification time are dropped unless KeepUndated is
//     set (object stores report no time for prefixes).
package listing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// DefaultLimit caps the entries read from one directory.
const DefaultLimit = 3000

// Order selects how entries are arranged in a Listing.
type Order string

const (
	// OrderShuffle hides the backend's native ordering.
	OrderShuffle Order = "shuffle"

	// OrderName sorts by name, byte-wise.
	OrderName Order = "name"

	// OrderMtime sorts newest first.
	OrderMtime Order = "mtime"
)

// ParseOrder converts a configuration string to an Order.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(s)); o {
	case OrderShuffle, OrderName, OrderMtime:
		return o, nil
	case "":
		return OrderShuffle, nil
	default:
		return "", fmt.Errorf("unknown listing order %q", s)
	}
}

// thumbExtensions are the extensions a thumbnail can be generated for.
var thumbExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// Entry is one displayable directory child.
type Entry struct {
	// Name is the entry's own name, even when it is a symlink.
	Name string

	// Rel is the slash path of the entry relative to the root, built from
	// the listed directory and Name.
	Rel string

	// Size is set for files.
	Size uint64

	// Modified is the zero time only when KeepUndated let an undated entry
	// through.
	Modified time.Time

	// Thumbable reports whether the extension is one a thumbnail can be
	// generated for.
	Thumbable bool
}

// Listing is the result of one List call.
type Listing struct {
	// Truncated is set when the directory holds more entries than the limit.
	Truncated bool

	Files       []Entry
	Directories []Entry
}

// Option configures a Lister.
type Option func(*Lister)

// WithLimit caps the number of raw entries read per directory.
func WithLimit(n int) Option {
	return func(l *Lister) {
		if n > 0 {
			l.limit = n
		}
	}
}

// WithOrder sets the ordering of the output.
func WithOrder(o Order) Option {
	return func(l *Lister) { l.order = o }
}

// WithKeepUndated keeps entries that have no modification time.
func WithKeepUndated(keep bool) Option {
	return func(l *Lister) { l.keepUndated = keep }
}

// WithShuffle replaces the shuffle function used by OrderShuffle.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(l *Lister) {
		if shuffle != nil {
			l.shuffle = shuffle
		}
	}
}

// Lister lists confined directories.
//
// Thread Safety: Safe for concurrent use when the shuffle function is.
type Lister struct {
	fsys        vfs.VFS
	resolver    *resolver.Resolver
	limit       int
	order       Order
	keepUndated bool
	shuffle     func(n int, swap func(i, j int))
}

// New returns a lister reading through fsys and confining symlink targets
// with r.
func New(fsys vfs.VFS, r *resolver.Resolver, opts ...Option) *Lister {
	l := &Lister{
		fsys:     fsys,
		resolver: r,
		limit:    DefaultLimit,
		order:    OrderShuffle,
		shuffle:  rand.Shuffle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List enumerates dir.
//
// A failure to read the directory itself is returned wrapped with
// resolver.ErrNotFound. Per-entry failures only drop the entry.
func (l *Lister) List(ctx context.Context, dir resolver.ConfinedPath) (*Listing, error) {
	if dir.IsZero() {
		return nil, fmt.Errorf("list: %w", resolver.ErrNotFound)
	}

	truncated, records, err := l.fsys.List(ctx, dir.String(), l.limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", dir.Rel(), resolver.ErrNotFound, err)
	}

	out := &Listing{Truncated: truncated}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, kind, ok := l.entry(ctx, dir, rec)
		if !ok {
			continue
		}
		switch kind {
		case vfs.Directory:
			out.Directories = append(out.Directories, entry)
		case vfs.RegularFile:
			out.Files = append(out.Files, entry)
		}
	}

	l.arrange(out.Files)
	l.arrange(out.Directories)

	logger.Debug("Listed %q: %d files, %d directories, truncated=%v",
		dir.Rel(), len(out.Files), len(out.Directories), out.Truncated)
	return out, nil
}

// entry applies the display policy to one raw record.
func (l *Lister) entry(ctx context.Context, dir resolver.ConfinedPath, rec vfs.FileRecord) (Entry, vfs.FileKind, bool) {
	kind, size := rec.Kind, rec.Size

	if rec.IsSymlink() {
		target, err := l.resolver.ResolveChild(ctx, dir, rec.Name)
		if err != nil {
			logger.Debug("Dropping symlink %q: %v", rec.Name, err)
			return Entry{}, 0, false
		}
		st, err := l.fsys.Stat(ctx, target.String())
		if err != nil {
			logger.Debug("Dropping symlink %q: %v", rec.Name, err)
			return Entry{}, 0, false
		}
		kind, size = st.Kind, st.Size
	}

	if kind != vfs.RegularFile && kind != vfs.Directory {
		return Entry{}, 0, false
	}

	var modified time.Time
	if rec.Modified != nil {
		modified = rec.Modified.UTC()
	} else if !l.keepUndated {
		return Entry{}, 0, false
	}

	e := Entry{
		Name:     rec.Name,
		Rel:      path.Join(dir.Rel(), rec.Name),
		Modified: modified,
	}
	if kind == vfs.RegularFile {
		if size != nil {
			e.Size = *size
		}
		e.Thumbable = IsThumbable(rec.Name)
	}
	return e, kind, true
}

func (l *Lister) arrange(entries []Entry) {
	switch l.order {
	case OrderName:
		slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	case OrderMtime:
		slices.SortStableFunc(entries, func(a, b Entry) int { return b.Modified.Compare(a.Modified) })
	default:
		l.shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	}
}

// IsThumbable reports whether name has an image extension of at most four
// characters that the thumbnail generator can decode. The comparison ignores
// case. A dotfile such as ".jpg" has no extension.
func IsThumbable(name string) bool {
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > 5 || len(ext) == len(name) {
		return false
	}
	ext = strings.ToLower(ext[1:])
	return slices.Contains(thumbExtensions, ext)
}
