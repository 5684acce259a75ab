package config

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbcache/badgerstore"
	"github.com/marmos91/dittobrowse/pkg/vfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/memfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/osfs"
	"github.com/marmos91/dittobrowse/pkg/vfs/s3fs"
	"github.com/mitchellh/mapstructure"
)

// CreateFilesystem creates the filesystem backend selected by configuration.
//
// This factory function uses the Type field to determine which backend to
// create, then decodes the type-specific options from the corresponding map
// and passes them to the backend's constructor.
//
// Supported types:
//   - "local": Uses pkg/vfs/osfs (operating system filesystem)
//   - "s3": Uses pkg/vfs/s3fs (Amazon S3 or compatible storage)
//   - "memory": Uses pkg/vfs/memfs (ephemeral tree, for demos and tests)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Filesystem configuration
//   - s3Metrics: Optional S3 call metrics (nil = no metrics)
//
// Returns:
//   - vfs.VFS: Initialized backend. Callers close it if it implements io.Closer.
//   - error: Configuration or initialization error
func CreateFilesystem(ctx context.Context, cfg *FilesystemConfig, s3Metrics s3fs.Metrics) (vfs.VFS, error) {
	switch cfg.Type {
	case "local":
		return createLocalFilesystem(ctx, cfg.Root, cfg.Local)
	case "s3":
		return createS3Filesystem(ctx, cfg.S3, s3Metrics)
	case "memory":
		return createMemoryFilesystem(ctx, cfg.Root, cfg.Memory)
	default:
		return nil, fmt.Errorf("unknown filesystem type: %q (supported: local, s3, memory)", cfg.Type)
	}
}

// createLocalFilesystem creates an OS-backed filesystem.
func createLocalFilesystem(ctx context.Context, root string, options map[string]any) (vfs.VFS, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type LocalFilesystemConfig struct {
		// Jail pins every open to root through an os.Root handle
		Jail bool `mapstructure:"jail"`
	}

	var fsCfg LocalFilesystemConfig
	if err := mapstructure.WeakDecode(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode local filesystem config: %w", err)
	}

	if !fsCfg.Jail {
		return osfs.New(), nil
	}

	fsys, err := osfs.NewJailed(root)
	if err != nil {
		return nil, fmt.Errorf("failed to create jailed filesystem: %w", err)
	}

	logger.Info("Local filesystem jailed to %s", root)
	return fsys, nil
}

// createS3Filesystem creates an S3-backed filesystem.
func createS3Filesystem(ctx context.Context, options map[string]any, s3Metrics s3fs.Metrics) (vfs.VFS, error) {
	type S3FilesystemConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		PageSize        int32  `mapstructure:"page_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var fsCfg S3FilesystemConfig
	if err := mapstructure.WeakDecode(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 filesystem config: %w", err)
	}

	if fsCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 filesystem: bucket is required")
	}

	if fsCfg.Region == "" {
		return nil, fmt.Errorf("S3 filesystem: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(fsCfg.Region))

	// Custom endpoint for MinIO, Localstack, etc.
	if fsCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               fsCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if fsCfg.AccessKeyID != "" && fsCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			fsCfg.AccessKeyID,
			fsCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := fsCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack
		if fsCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Filesystem
	// ========================================================================

	fsys, err := s3fs.New(s3fs.Config{
		Client:    client,
		Bucket:    fsCfg.Bucket,
		KeyPrefix: fsCfg.KeyPrefix,
		PageSize:  fsCfg.PageSize,
		Metrics:   s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 filesystem: %w", err)
	}

	logger.Info("S3 filesystem initialized: bucket=%s, region=%s, prefix=%s",
		fsCfg.Bucket, fsCfg.Region, fsCfg.KeyPrefix)

	return fsys, nil
}

// createMemoryFilesystem creates an in-memory tree rooted at root.
//
// The optional "files" map seeds it: keys are paths relative to root, values
// are file contents.
func createMemoryFilesystem(ctx context.Context, root string, options map[string]any) (vfs.VFS, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type MemoryFilesystemConfig struct {
		Files map[string]string `mapstructure:"files"`
	}

	var fsCfg MemoryFilesystemConfig
	if err := mapstructure.WeakDecode(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory filesystem config: %w", err)
	}

	now := time.Now()
	fsys := memfs.New()
	fsys.MkdirAll(root, now)
	for rel, content := range fsCfg.Files {
		fsys.WriteFile(path.Join(root, rel), []byte(content), now)
	}

	logger.Info("Memory filesystem initialized: root=%s, files=%d", root, len(fsCfg.Files))
	return fsys, nil
}

// CreateCacheStore creates the blob store behind the thumbnail cache.
//
// Supported types:
//   - "memory": Uses thumbcache.NewMemoryStore (ephemeral)
//   - "badger": Uses pkg/thumbcache/badgerstore (BadgerDB, persistent when dir is set)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Cache configuration
//
// Returns:
//   - thumbcache.Store: Initialized store, owned by the cache from here on
//   - error: Configuration or initialization error
func CreateCacheStore(ctx context.Context, cfg *CacheConfig) (thumbcache.Store, error) {
	switch cfg.Store {
	case "memory":
		return thumbcache.NewMemoryStore(), nil
	case "badger":
		return createBadgerCacheStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown cache store type: %q (supported: memory, badger)", cfg.Store)
	}
}

// createBadgerCacheStore creates a BadgerDB-backed blob store.
func createBadgerCacheStore(ctx context.Context, options map[string]any) (thumbcache.Store, error) {
	var storeCfg badgerstore.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &storeCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger cache store options: %w", err)
	}

	store, err := badgerstore.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger cache store: %w", err)
	}

	if storeCfg.Dir == "" {
		logger.Info("Badger cache store initialized in memory")
	} else {
		logger.Info("Badger cache store initialized: dir=%s", storeCfg.Dir)
	}

	return store, nil
}
