package testing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/marmos91/dittobrowse/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture populates a backend with test data.
//
// Paths given to a Fixture are relative to Root and slash-separated. Path
// converts them to the absolute form the backend expects.
type Fixture interface {
	Root() string
	Path(rel string) string
	Dir(rel string)
	File(rel string, data []byte)
	Symlink(target, rel string)
	SetModTime(rel string, modified time.Time)
}

// VFSTestSuite checks the vfs.VFS contract, not implementation details, so it
// can run against every backend that can hold fixtures.
//
// Usage:
//
//	func TestMemFS(t *testing.T) {
//	    suite := &vfstesting.VFSTestSuite{
//	        NewFS: func(t *testing.T) (vfs.VFS, vfstesting.Fixture) {
//	            fsys := memfs.New()
//	            return fsys, newMemFixture(fsys)
//	        },
//	    }
//	    suite.Run(t)
//	}
type VFSTestSuite struct {
	// NewFS returns a fresh, empty backend and its fixture for each subtest.
	NewFS func(t *testing.T) (vfs.VFS, Fixture)

	// NoSymlinks skips symlink cases for backends without links (S3).
	NoSymlinks bool
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Run executes all tests in the suite.
func (suite *VFSTestSuite) Run(t *testing.T) {
	t.Run("Stat", suite.RunStatTests)
	t.Run("Canonicalize", suite.RunCanonicalizeTests)
	t.Run("List", suite.RunListTests)
	t.Run("OpenForRead", suite.RunOpenTests)
	t.Run("Cancellation", suite.RunCancellationTests)
}

// RunStatTests covers kind mapping, size and mtime.
func (suite *VFSTestSuite) RunStatTests(t *testing.T) {
	ctx := context.Background()

	t.Run("RegularFile", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.File("a.txt", []byte("hello"))
		fx.SetModTime("a.txt", fixedTime)

		rec, err := fsys.Stat(ctx, fx.Path("a.txt"))
		require.NoError(t, err)
		assert.Equal(t, vfs.RegularFile, rec.Kind)
		assert.Equal(t, "a.txt", rec.Name)
		require.NotNil(t, rec.Size)
		assert.EqualValues(t, 5, *rec.Size)
		require.NotNil(t, rec.Modified)
		assert.True(t, rec.Modified.Equal(fixedTime), "mtime %v", rec.Modified)
	})

	t.Run("Directory", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Dir("d")

		rec, err := fsys.Stat(ctx, fx.Path("d"))
		require.NoError(t, err)
		assert.Equal(t, vfs.Directory, rec.Kind)
		assert.Nil(t, rec.Size, "directories carry no size")
	})

	t.Run("Missing", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)

		_, err := fsys.Stat(ctx, fx.Path("nope"))
		require.Error(t, err)
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})

	if suite.NoSymlinks {
		return
	}

	t.Run("FollowsSymlink", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Dir("target")
		fx.Symlink(fx.Path("target"), "link")

		rec, err := fsys.Stat(ctx, fx.Path("link"))
		require.NoError(t, err)
		assert.Equal(t, vfs.Directory, rec.Kind)

		rec, err = fsys.Lstat(ctx, fx.Path("link"))
		require.NoError(t, err)
		assert.Equal(t, vfs.Symlink, rec.Kind)
	})

	t.Run("BrokenSymlink", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Symlink(fx.Path("gone"), "dangling")

		_, err := fsys.Stat(ctx, fx.Path("dangling"))
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})
}

// RunCanonicalizeTests covers symlink following and failures.
func (suite *VFSTestSuite) RunCanonicalizeTests(t *testing.T) {
	ctx := context.Background()

	t.Run("PlainPath", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.File("a/b.txt", []byte("x"))

		got, err := fsys.Canonicalize(ctx, fx.Path("a/b.txt"))
		require.NoError(t, err)
		assert.Equal(t, fx.Path("a/b.txt"), got)
	})

	t.Run("Missing", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)

		_, err := fsys.Canonicalize(ctx, fx.Path("missing"))
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})

	if suite.NoSymlinks {
		return
	}

	t.Run("ResolvesSymlink", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.File("real/photo.jpg", []byte("jpg"))
		fx.Symlink(fx.Path("real"), "alias")

		got, err := fsys.Canonicalize(ctx, fx.Path("alias/photo.jpg"))
		require.NoError(t, err)
		assert.Equal(t, fx.Path("real/photo.jpg"), got)
	})

	t.Run("BrokenSymlink", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Symlink(fx.Path("gone"), "dangling")

		_, err := fsys.Canonicalize(ctx, fx.Path("dangling"))
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})
}

// RunListTests covers enumeration, limits and truncation.
func (suite *VFSTestSuite) RunListTests(t *testing.T) {
	ctx := context.Background()

	populate := func(fx Fixture, n int) {
		fx.Dir("dir")
		for i := 0; i < n; i++ {
			fx.File("dir/f"+string(rune('a'+i))+".txt", []byte{byte(i)})
		}
	}

	t.Run("AllEntries", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		populate(fx, 3)
		fx.Dir("dir/sub")

		truncated, entries, err := fsys.List(ctx, fx.Path("dir"), 100)
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Len(t, entries, 4)

		kinds := map[string]vfs.FileKind{}
		for _, e := range entries {
			kinds[e.Name] = e.Kind
		}
		assert.Equal(t, vfs.Directory, kinds["sub"])
		assert.Equal(t, vfs.RegularFile, kinds["fa.txt"])
	})

	t.Run("Truncated", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		populate(fx, 5)

		truncated, entries, err := fsys.List(ctx, fx.Path("dir"), 3)
		require.NoError(t, err)
		assert.True(t, truncated)
		assert.Len(t, entries, 3)
	})

	t.Run("ExactlyLimit", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		populate(fx, 3)

		truncated, entries, err := fsys.List(ctx, fx.Path("dir"), 3)
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Len(t, entries, 3)
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Dir("empty")

		truncated, entries, err := fsys.List(ctx, fx.Path("empty"), 10)
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Empty(t, entries)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)

		_, _, err := fsys.List(ctx, fx.Path("nope"), 10)
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Dir("d")

		_, _, err := fsys.List(ctx, fx.Path("d"), 0)
		assert.ErrorIs(t, err, vfs.ErrInvalidLimit)
	})

	if suite.NoSymlinks {
		return
	}

	t.Run("SymlinkEntriesNotFollowed", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.Dir("dir/real")
		fx.Symlink(fx.Path("dir/real"), "dir/link")

		_, entries, err := fsys.List(ctx, fx.Path("dir"), 10)
		require.NoError(t, err)

		kinds := map[string]vfs.FileKind{}
		for _, e := range entries {
			kinds[e.Name] = e.Kind
		}
		assert.Equal(t, vfs.Symlink, kinds["link"])
		assert.Equal(t, vfs.Directory, kinds["real"])
	})
}

// RunOpenTests covers streaming reads.
func (suite *VFSTestSuite) RunOpenTests(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadsContent", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)
		fx.File("doc.txt", []byte("payload"))

		rc, err := fsys.OpenForRead(ctx, fx.Path("doc.txt"))
		require.NoError(t, err)
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("Missing", func(t *testing.T) {
		fsys, fx := suite.NewFS(t)

		_, err := fsys.OpenForRead(ctx, fx.Path("nope"))
		assert.True(t, vfs.IsNotFound(err), "got %v", err)
	})
}

// RunCancellationTests checks that a cancelled context stops work up front.
func (suite *VFSTestSuite) RunCancellationTests(t *testing.T) {
	fsys, fx := suite.NewFS(t)
	fx.File("a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fsys.Stat(ctx, fx.Path("a.txt"))
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = fsys.List(ctx, fx.Root(), 10)
	assert.ErrorIs(t, err, context.Canceled)
}
