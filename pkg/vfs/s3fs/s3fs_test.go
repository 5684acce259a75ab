package s3fs

import (
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittobrowse/pkg/vfs"
	vfstesting "github.com/marmos91/dittobrowse/pkg/vfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data     []byte
	modified time.Time
}

// fakeS3 is an in-memory bucket implementing API with ListObjectsV2
// pagination, delimiters and continuation tokens.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	lists   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}}
}

func (f *fakeS3) put(key string, data []byte, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{data: data, modified: modified}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	maxKeys := int(aws.ToInt32(in.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	type item struct {
		key    string
		common bool
	}
	seen := map[string]bool{}
	var items []item
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					items = append(items, item{key: cp, common: true})
				}
				continue
			}
		}
		items = append(items, item{key: key})
	}
	slices.SortFunc(items, func(a, b item) int { return strings.Compare(a.key, b.key) })

	start := aws.ToString(in.ContinuationToken)
	out := &s3.ListObjectsV2Output{}
	count := 0
	for _, it := range items {
		if start != "" && it.key <= start {
			continue
		}
		if count == maxKeys {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(lastKey(out))
			break
		}
		count++
		if it.common {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(it.key)})
		} else {
			obj := f.objects[it.key]
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(it.key),
				Size:         aws.Int64(int64(len(obj.data))),
				LastModified: aws.Time(obj.modified),
			})
		}
	}
	if out.IsTruncated == nil {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func lastKey(out *s3.ListObjectsV2Output) string {
	last := ""
	for _, o := range out.Contents {
		last = max(last, aws.ToString(o.Key))
	}
	for _, cp := range out.CommonPrefixes {
		last = max(last, aws.ToString(cp.Prefix))
	}
	return last
}

type s3Fixture struct {
	api    *fakeS3
	prefix string
	now    time.Time
}

func (f *s3Fixture) Root() string           { return "/" }
func (f *s3Fixture) Path(rel string) string { return path.Join("/", rel) }
func (f *s3Fixture) Dir(rel string)         { f.api.put(f.prefix+rel+"/", nil, f.now) }
func (f *s3Fixture) File(rel string, data []byte) {
	f.api.put(f.prefix+rel, data, f.now)
}
func (f *s3Fixture) Symlink(string, string) { panic("s3 has no symlinks") }
func (f *s3Fixture) SetModTime(rel string, modified time.Time) {
	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	obj := f.api.objects[f.prefix+rel]
	obj.modified = modified
	f.api.objects[f.prefix+rel] = obj
}

func TestS3FS(t *testing.T) {
	suite := &vfstesting.VFSTestSuite{
		NewFS: func(t *testing.T) (vfs.VFS, vfstesting.Fixture) {
			api := newFakeS3()
			fsys, err := New(Config{Client: api, Bucket: "photos", KeyPrefix: "share"})
			require.NoError(t, err)
			return fsys, &s3Fixture{api: api, prefix: "share/", now: time.Unix(1700000000, 0).UTC()}
		},
		NoSymlinks: true,
	}
	suite.Run(t)
}

func TestList_Paginates(t *testing.T) {
	api := newFakeS3()
	now := time.Unix(1700000000, 0)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		api.put("dir/"+k+".jpg", []byte(k), now)
	}
	api.put("dir/sub/x.jpg", []byte("x"), now)

	fsys, err := New(Config{Client: api, Bucket: "b", PageSize: 2})
	require.NoError(t, err)

	truncated, entries, err := fsys.List(context.Background(), "/dir", 100)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, entries, 6)
	assert.Equal(t, "sub", entries[5].Name)
	assert.Equal(t, vfs.Directory, entries[5].Kind)
	assert.Nil(t, entries[5].Modified)
	assert.Equal(t, 3, api.lists)

	truncated, entries, err = fsys.List(context.Background(), "/dir", 3)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, entries, 3)
}

func TestList_OnFile(t *testing.T) {
	api := newFakeS3()
	api.put("f.txt", []byte("x"), time.Unix(0, 0))
	fsys, err := New(Config{Client: api, Bucket: "b"})
	require.NoError(t, err)

	_, _, err = fsys.List(context.Background(), "/f.txt", 10)
	assert.ErrorIs(t, err, vfs.ErrNotDirectory)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = New(Config{Client: newFakeS3()})
	assert.Error(t, err)
}

type opRecorder struct {
	mu     sync.Mutex
	ops    []string
	errors int
}

func (r *opRecorder) ObserveOperation(operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, operation)
	if err != nil {
		r.errors++
	}
}

func TestMetrics(t *testing.T) {
	api := newFakeS3()
	api.put("cat.jpg", []byte("meow"), time.Unix(1700000000, 0))
	rec := &opRecorder{}
	fsys, err := New(Config{Client: api, Bucket: "b", Metrics: rec})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = fsys.Stat(ctx, "/cat.jpg")
	require.NoError(t, err)

	rc, err := fsys.OpenForRead(ctx, "/cat.jpg")
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = fsys.Stat(ctx, "/missing")
	assert.True(t, vfs.IsNotFound(err))

	assert.Equal(t, []string{"HeadObject", "GetObject", "HeadObject", "ListObjectsV2"}, rec.ops)
	assert.Zero(t, rec.errors, "missing keys are not failures")
}
