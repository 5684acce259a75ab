// Package s3fs implements a read-only vfs.VFS over an S3 bucket.
//
// The bucket is presented as a tree: object keys are split on "/" and every
// common prefix is a directory. Paths are slash-separated and absolute; "/"
// maps to the configured key prefix.
//
// S3 has no symbolic links, so Canonicalize only cleans the path and checks
// that something exists there. Directories have no modification time.
package s3fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// API is the subset of *s3.Client this package calls.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config configures the S3 filesystem.
type Config struct {
	// Client is the configured S3 client (required).
	Client API

	// Bucket is the bucket name (required).
	Bucket string

	// KeyPrefix is prepended to every key. A trailing "/" is added if missing.
	KeyPrefix string

	// PageSize caps keys per ListObjectsV2 call (default: 1000, the S3 max).
	PageSize int32

	// Metrics receives per-call observations. Nil disables them.
	Metrics Metrics
}

// Metrics observes S3 API calls.
type Metrics interface {
	// ObserveOperation records one API call. A missing key is not an error.
	ObserveOperation(operation string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}

// zeroTime marks records without a modification time.
var zeroTime time.Time

// FS is the S3-backed VFS.
//
// Thread Safety: Safe for concurrent use; the S3 client is.
type FS struct {
	client   API
	bucket   string
	prefix   string
	pageSize int32
	metrics  Metrics
}

// New returns an S3 filesystem. It does not contact S3.
func New(cfg Config) (*FS, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	prefix := strings.TrimPrefix(cfg.KeyPrefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}

	var metrics Metrics = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	return &FS{
		client:   cfg.Client,
		bucket:   cfg.Bucket,
		prefix:   prefix,
		pageSize: pageSize,
		metrics:  metrics,
	}, nil
}

func (f *FS) observe(operation string, start time.Time, err error) {
	if isNotFound(err) {
		err = nil
	}
	f.metrics.ObserveOperation(operation, time.Since(start), err)
}

// objectKey maps a cleaned absolute path to its object key ("" for root).
func (f *FS) objectKey(p string) string {
	rel := strings.TrimPrefix(p, "/")
	if rel == "" {
		return strings.TrimSuffix(f.prefix, "/")
	}
	return f.prefix + rel
}

// dirPrefix maps a cleaned absolute path to the listing prefix of its children.
func (f *FS) dirPrefix(p string) string {
	rel := strings.TrimPrefix(p, "/")
	if rel == "" {
		return f.prefix
	}
	return f.prefix + rel + "/"
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// Canonicalize implements vfs.VFS.
func (f *FS) Canonicalize(ctx context.Context, p string) (string, error) {
	clean := cleanPath(p)
	if _, err := f.probe(ctx, "canonicalize", clean); err != nil {
		return "", err
	}
	return clean, nil
}

// Stat implements vfs.VFS.
func (f *FS) Stat(ctx context.Context, p string) (*vfs.FileRecord, error) {
	return f.probe(ctx, "stat", cleanPath(p))
}

// Lstat implements vfs.VFS. Without links it is the same as Stat.
func (f *FS) Lstat(ctx context.Context, p string) (*vfs.FileRecord, error) {
	return f.probe(ctx, "lstat", cleanPath(p))
}

// probe resolves p as an object first, then as a directory prefix.
func (f *FS) probe(ctx context.Context, op, p string) (*vfs.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := path.Base(p)
	if p == "/" {
		rec := vfs.NewFileRecord(vfs.Directory, name, 0, zeroTime)
		return &rec, nil
	}

	start := time.Now()
	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.objectKey(p)),
	})
	f.observe("HeadObject", start, err)
	if err == nil {
		rec := vfs.NewFileRecord(vfs.RegularFile, name, aws.ToInt64(head.ContentLength), aws.ToTime(head.LastModified))
		return &rec, nil
	}
	if !isNotFound(err) {
		return nil, vfs.PathErr(op, p, fmt.Errorf("failed to head object: %w", err))
	}

	start = time.Now()
	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(f.dirPrefix(p)),
		MaxKeys: aws.Int32(1),
	})
	f.observe("ListObjectsV2", start, err)
	if err != nil {
		return nil, vfs.PathErr(op, p, fmt.Errorf("failed to list objects: %w", err))
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return nil, &fs.PathError{Op: op, Path: p, Err: vfs.ErrNotFound}
	}

	rec := vfs.NewFileRecord(vfs.Directory, name, 0, zeroTime)
	return &rec, nil
}

// List implements vfs.VFS.
func (f *FS) List(ctx context.Context, p string, limit int) (bool, []vfs.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	p = cleanPath(p)
	if limit <= 0 {
		return false, nil, vfs.PathErr("list", p, vfs.ErrInvalidLimit)
	}

	prefix := f.dirPrefix(p)
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(f.pageSize),
	})

	var (
		entries []vfs.FileRecord
		seen    bool
	)
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}

		start := time.Now()
		page, err := paginator.NextPage(ctx)
		f.observe("ListObjectsV2", start, err)
		if err != nil {
			return false, nil, vfs.PathErr("list", p, fmt.Errorf("failed to list objects: %w", err))
		}

		records := make([]vfs.FileRecord, 0, len(page.CommonPrefixes)+len(page.Contents))
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			records = append(records, vfs.NewFileRecord(vfs.Directory, name, 0, zeroTime))
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				// Directory marker object.
				seen = true
				continue
			}
			records = append(records, vfs.NewFileRecord(vfs.RegularFile, name, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified)))
		}
		if len(records) > 0 {
			seen = true
		}

		for _, rec := range records {
			if len(entries) == limit {
				return true, entries, nil
			}
			entries = append(entries, rec)
		}
	}

	if !seen && p != "/" {
		if _, err := f.probe(ctx, "list", p); err != nil {
			return false, nil, err
		}
		return false, nil, vfs.PathErr("list", p, vfs.ErrNotDirectory)
	}

	return false, entries, nil
}

// OpenForRead implements vfs.VFS.
func (f *FS) OpenForRead(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = cleanPath(p)

	start := time.Now()
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.objectKey(p)),
	})
	f.observe("GetObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: p, Err: vfs.ErrNotFound}
		}
		return nil, vfs.PathErr("open", p, fmt.Errorf("failed to get object from S3: %w", err))
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

var _ vfs.VFS = (*FS)(nil)
