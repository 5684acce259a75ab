package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittobrowse/pkg/vfs/memfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/osfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/s3fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFilesystem_Local(t *testing.T) {
	cfg := &FilesystemConfig{Type: "local", Root: t.TempDir(), Local: map[string]any{}}

	fsys, err := CreateFilesystem(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &osfs.FS{}, fsys)
}

func TestCreateFilesystem_LocalJailed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))

	cfg := &FilesystemConfig{Type: "local", Root: root, Local: map[string]any{"jail": "true"}}
	fsys, err := CreateFilesystem(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = fsys.(*osfs.FS).Close() }()

	canonical, err := fsys.Canonicalize(context.Background(), root)
	require.NoError(t, err)
	rec, err := fsys.Stat(context.Background(), filepath.Join(canonical, "a.txt"))
	require.NoError(t, err)
	assert.True(t, rec.IsFile())
}

func TestCreateFilesystem_LocalJailMissingRoot(t *testing.T) {
	cfg := &FilesystemConfig{
		Type:  "local",
		Root:  filepath.Join(t.TempDir(), "missing"),
		Local: map[string]any{"jail": true},
	}

	_, err := CreateFilesystem(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestCreateFilesystem_MemorySeeded(t *testing.T) {
	cfg := &FilesystemConfig{
		Type: "memory",
		Root: "/srv",
		Memory: map[string]any{
			"files": map[string]any{
				"readme.txt":    "hello",
				"album/cat.jpg": "not really a jpeg",
			},
		},
	}

	fsys, err := CreateFilesystem(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &memfs.FS{}, fsys)

	rec, err := fsys.Stat(context.Background(), "/srv/album/cat.jpg")
	require.NoError(t, err)
	assert.True(t, rec.IsFile())

	rec, err = fsys.Stat(context.Background(), "/srv/album")
	require.NoError(t, err)
	assert.True(t, rec.IsDir())
}

func TestCreateFilesystem_S3(t *testing.T) {
	cfg := &FilesystemConfig{
		Type: "s3",
		Root: "/",
		S3: map[string]any{
			"region":            "us-east-1",
			"bucket":            "photos",
			"endpoint":          "http://localhost:9000",
			"access_key_id":     "minio",
			"secret_access_key": "minio123",
			"page_size":         "500",
		},
	}

	// Building the client does not contact the endpoint.
	fsys, err := CreateFilesystem(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &s3fs.FS{}, fsys)
}

func TestCreateFilesystem_S3MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		wantErr string
	}{
		{"no bucket", map[string]any{"region": "us-east-1"}, "bucket is required"},
		{"no region", map[string]any{"bucket": "photos"}, "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FilesystemConfig{Type: "s3", Root: "/", S3: tt.options}
			_, err := CreateFilesystem(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateFilesystem_UnknownType(t *testing.T) {
	_, err := CreateFilesystem(context.Background(), &FilesystemConfig{Type: "ftp"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filesystem type")
}

func TestCreateFilesystem_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, fsType := range []string{"local", "memory"} {
		_, err := CreateFilesystem(ctx, &FilesystemConfig{Type: fsType, Root: "/"}, nil)
		assert.ErrorIs(t, err, context.Canceled, fsType)
	}
}

func TestCreateCacheStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
	}{
		{"memory", CacheConfig{Store: "memory"}},
		{"badger in memory", CacheConfig{Store: "badger", Badger: map[string]any{"dir": ""}}},
		{"badger on disk", CacheConfig{Store: "badger", Badger: map[string]any{
			"dir":                 filepath.Join(t.TempDir(), "thumbs"),
			"block_cache_size_mb": "8",
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := CreateCacheStore(context.Background(), &tt.cfg)
			require.NoError(t, err)

			require.NoError(t, store.Put("k", []byte("v")))
			got, err := store.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)
			assert.NoError(t, store.Close())
		})
	}
}

func TestCreateCacheStore_UnknownType(t *testing.T) {
	_, err := CreateCacheStore(context.Background(), &CacheConfig{Store: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache store type")
}

func memoryConfig(files map[string]any) *Config {
	cfg := GetDefaultConfig()
	cfg.Filesystem.Type = "memory"
	cfg.Filesystem.Root = "/srv"
	cfg.Filesystem.Memory = map[string]any{"files": files}
	cfg.Listing.Order = "name"
	return cfg
}

func TestInitializeRegistry_Memory(t *testing.T) {
	cfg := memoryConfig(map[string]any{
		"b.txt":   "b",
		"a.txt":   "a",
		"dir/c.z": "c",
	})

	reg, err := InitializeRegistry(context.Background(), cfg, nil)
	require.NoError(t, err)
	reg.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, reg.Close(ctx))
	}()

	assert.NotNil(t, reg.Cache())
	assert.NotNil(t, reg.Collector())
	assert.NotNil(t, reg.Generator())

	l, err := reg.Lister().List(context.Background(), reg.Resolver().Root())
	require.NoError(t, err)

	var files []string
	for _, e := range l.Files {
		files = append(files, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)
	require.Len(t, l.Directories, 1)
	assert.Equal(t, "dir", l.Directories[0].Name)
}

func TestInitializeRegistry_CacheDisabled(t *testing.T) {
	cfg := memoryConfig(nil)
	cfg.Cache.Enabled = false

	reg, err := InitializeRegistry(context.Background(), cfg, &MetricsResult{})
	require.NoError(t, err)
	defer func() { _ = reg.Close(context.Background()) }()

	assert.Nil(t, reg.Cache())
	assert.Nil(t, reg.Collector())
	assert.NotNil(t, reg.Thumbnails())
}

func TestInitializeRegistry_SweepDisabled(t *testing.T) {
	cfg := memoryConfig(nil)
	cfg.Cache.Sweep.Enabled = false

	reg, err := InitializeRegistry(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = reg.Close(context.Background()) }()

	assert.NotNil(t, reg.Cache())
	assert.Nil(t, reg.Collector())
}

func TestInitializeRegistry_MissingRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.Root = filepath.Join(t.TempDir(), "missing")

	_, err := InitializeRegistry(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve root")
}

func TestInitializeRegistry_NilConfig(t *testing.T) {
	_, err := InitializeRegistry(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	m := InitializeMetrics(GetDefaultConfig())

	assert.Nil(t, m.Server)
	assert.NotNil(t, m.HTTP)
	assert.Nil(t, m.Thumbcache)
	assert.Nil(t, m.S3)
}

func TestCreateAdapters(t *testing.T) {
	adapters, err := CreateAdapters(GetDefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "HTTP", adapters[0].Protocol())
	assert.Equal(t, 8080, adapters[0].Port())

	cfg := GetDefaultConfig()
	cfg.Adapters.HTTP.Enabled = false
	_, err = CreateAdapters(cfg, nil)
	assert.Error(t, err)
}
