package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittobrowse/pkg/pathguard"
	"github.com/marmos91/dittobrowse/pkg/vfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/memfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/osfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/panicfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0).UTC()

// newTree builds the layout used across these tests:
//
//	/etc/passwd
//	/srv/data/photos/cat.jpg
//	/srv/data/a/b/evil_symlink -> /etc
//	/srv/data/a/inside -> ../photos
//	/srv/data2/secret
//	/srv/data/sibling -> /srv/data2
func newTree(t *testing.T) (*memfs.FS, *Resolver) {
	t.Helper()
	fsys := memfs.New()
	fsys.WriteFile("/etc/passwd", []byte("root:x:0:0"), epoch)
	fsys.WriteFile("/srv/data/photos/cat.jpg", []byte("meow"), epoch)
	fsys.MkdirAll("/srv/data/a/b", epoch)
	fsys.Symlink("/etc", "/srv/data/a/b/evil_symlink", epoch)
	fsys.Symlink("../photos", "/srv/data/a/inside", epoch)
	fsys.WriteFile("/srv/data2/secret", []byte("s"), epoch)
	fsys.Symlink("/srv/data2", "/srv/data/sibling", epoch)

	r, err := New(context.Background(), "/srv/data", fsys)
	require.NoError(t, err)
	return fsys, r
}

func TestResolve(t *testing.T) {
	_, r := newTree(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		wantAbs string
		wantRel string
	}{
		{"root empty", "", "/srv/data", ""},
		{"root slash", "/", "/srv/data", ""},
		{"plain file", "photos/cat.jpg", "/srv/data/photos/cat.jpg", "photos/cat.jpg"},
		{"leading slash", "/photos/cat.jpg", "/srv/data/photos/cat.jpg", "photos/cat.jpg"},
		{"trailing slash", "photos/", "/srv/data/photos", "photos"},
		{"symlink inside root", "a/inside/cat.jpg", "/srv/data/photos/cat.jpg", "photos/cat.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAbs, got.String())
			assert.Equal(t, tt.wantRel, got.Rel())
			assert.False(t, got.IsZero())
		})
	}
}

func TestResolve_Failures(t *testing.T) {
	_, r := newTree(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    string
		rejected bool
		escaped  bool
	}{
		{"dot dot traversal", "../../etc/passwd", true, false},
		{"inner dot dot", "photos/../../etc", true, false},
		{"double slash", "photos//cat.jpg", true, false},
		{"double leading slash", "//etc/passwd", true, false},
		{"reserved name", "photos/NUL.txt", true, false},
		{"control char", "photos/\x01", true, false},
		{"missing", "photos/dog.jpg", false, false},
		{"symlink escape", "a/b/evil_symlink", false, true},
		{"through escaping symlink", "a/b/evil_symlink/passwd", false, true},
		{"sibling with shared prefix", "sibling/secret", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, got.IsZero())
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, tt.rejected, errors.Is(err, pathguard.ErrRejected))
			assert.Equal(t, tt.escaped, errors.Is(err, ErrOutsideRoot))
		})
	}
}

func TestResolve_RejectionNeverTouchesFilesystem(t *testing.T) {
	fsys, _ := newTree(t)
	r, err := New(context.Background(), "/srv/data", fsys)
	require.NoError(t, err)

	// Swap in a filesystem that panics on any call.
	r.fsys = panicfs.New()

	for _, input := range []string{"../../etc/passwd", "a/./b", "COM1", "x\x7f", " lead"} {
		assert.NotPanics(t, func() {
			_, err := r.Resolve(context.Background(), input)
			assert.ErrorIs(t, err, pathguard.ErrRejected, input)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	_, r := newTree(t)
	ctx := context.Background()

	for _, input := range []string{"", "photos", "a/inside/cat.jpg"} {
		first, err := r.Resolve(ctx, input)
		require.NoError(t, err)
		second, err := r.Resolve(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestResolve_IOErrorIsNotFound(t *testing.T) {
	fsys, r := newTree(t)
	fsys.InjectError(memfs.OpCanonicalize, "/srv/data/photos", os.ErrPermission)

	_, err := r.Resolve(context.Background(), "photos")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestResolve_Cancelled(t *testing.T) {
	_, r := newTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "photos")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveChild(t *testing.T) {
	_, r := newTree(t)
	ctx := context.Background()

	a, err := r.Resolve(ctx, "a")
	require.NoError(t, err)

	got, err := r.ResolveChild(ctx, a, "inside")
	require.NoError(t, err)
	assert.Equal(t, "photos", got.Rel())

	b, err := r.ResolveChild(ctx, a, "b")
	require.NoError(t, err)
	_, err = r.ResolveChild(ctx, b, "evil_symlink")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	for _, name := range []string{"", "..", ".", "x/y", "CON"} {
		_, err = r.ResolveChild(ctx, a, name)
		assert.ErrorIs(t, err, pathguard.ErrRejected, name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	_, err = r.ResolveChild(ctx, ConfinedPath{}, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_Errors(t *testing.T) {
	fsys := memfs.New()
	fsys.WriteFile("/file", []byte("x"), epoch)
	ctx := context.Background()

	_, err := New(ctx, "/missing", fsys)
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	_, err = New(ctx, "/file", fsys)
	assert.Error(t, err)

	_, err = New(ctx, "", fsys)
	assert.Error(t, err)

	_, err = New(ctx, "/", nil)
	assert.Error(t, err)
}

type recordingMetrics struct{ outcomes []string }

func (m *recordingMetrics) RecordResolve(outcome string) { m.outcomes = append(m.outcomes, outcome) }

func TestResolve_Metrics(t *testing.T) {
	fsys, _ := newTree(t)
	m := &recordingMetrics{}
	r, err := New(context.Background(), "/srv/data", fsys, WithMetrics(m))
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = r.Resolve(ctx, "photos")
	_, _ = r.Resolve(ctx, "..")
	_, _ = r.Resolve(ctx, "nope")
	_, _ = r.Resolve(ctx, "a/b/evil_symlink")

	assert.Equal(t, []string{OutcomeOK, OutcomeRejected, OutcomeMissing, OutcomeEscaped}, m.outcomes)
}

func TestResolve_RealFilesystem(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	root := filepath.Join(base, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "photos"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "photos", "cat.jpg"), []byte("meow"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "a", "b", "evil_symlink")))
	require.NoError(t, os.MkdirAll(root+"2", 0755))
	require.NoError(t, os.Symlink(root+"2", filepath.Join(root, "sibling")))

	ctx := context.Background()
	r, err := New(ctx, root, osfs.New())
	require.NoError(t, err)

	got, err := r.Resolve(ctx, "photos/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "photos", "cat.jpg"), got.String())
	assert.Equal(t, "cat.jpg", got.Base())

	_, err = r.Resolve(ctx, "a/b/evil_symlink")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = r.Resolve(ctx, "sibling")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = r.Resolve(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, pathguard.ErrRejected)
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, p string
		rel     string
		ok      bool
	}{
		{"/srv/data", "/srv/data", "", true},
		{"/srv/data", "/srv/data/a/b", "a/b", true},
		{"/srv/data", "/srv/data2", "", false},
		{"/srv/data", "/srv", "", false},
		{"/", "/etc", "etc", true},
	}
	for _, tt := range tests {
		rel, ok := within(tt.root, tt.p)
		assert.Equal(t, tt.ok, ok, "%s in %s", tt.p, tt.root)
		assert.Equal(t, tt.rel, rel)
	}
}
