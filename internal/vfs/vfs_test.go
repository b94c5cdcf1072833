package vfs_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs/vfstest"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func TestLocalConformance(t *testing.T) {
	fsys, err := vfs.NewLocal(t.TempDir())
	require.NoError(t, err)
	vfstest.RunAll(t, fsys)
}

func TestMemConformance(t *testing.T) {
	vfstest.RunAll(t, vfs.NewMem())
}

func TestS3Conformance(t *testing.T) {
	fsys, err := vfs.NewS3(context.Background(), "bucket", "root/prefix", types.AWSConfig{}, vfs.WithS3Client(newMockS3()))
	require.NoError(t, err)
	vfstest.RunAll(t, fsys)
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := vfs.NewS3(context.Background(), "", "", types.AWSConfig{}, vfs.WithS3Client(newMockS3()))
	assert.Error(t, err)
}

func TestS3Pagination(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	fsys, err := vfs.NewS3(ctx, "bucket", "", types.AWSConfig{}, vfs.WithS3Client(mock))
	require.NoError(t, err)

	for i := range 7 {
		require.NoError(t, vfs.WriteBytes(ctx, fsys, "many/f"+strconv.Itoa(i)+".txt", []byte("x")))
	}
	files, err := fsys.Walk(ctx, "many")
	require.NoError(t, err)
	assert.Len(t, files, 7)
	assert.Greater(t, mock.listCalls, 3)
}

func TestS3Describe(t *testing.T) {
	fsys, err := vfs.NewS3(context.Background(), "bucket", "a/b", types.AWSConfig{}, vfs.WithS3Client(newMockS3()))
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/a/b", fsys.Describe())
}

func TestOpenURL(t *testing.T) {
	ctx := context.Background()

	a, err := vfs.OpenURL(ctx, "mem://shared", types.AWSConfig{})
	require.NoError(t, err)
	b, err := vfs.OpenURL(ctx, "mem://shared", types.AWSConfig{})
	require.NoError(t, err)
	require.NoError(t, vfs.WriteBytes(ctx, a, "f.txt", []byte("same")))
	data, err := vfs.ReadFile(ctx, b, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))

	dir := t.TempDir()
	local, err := vfs.OpenURL(ctx, "file://"+dir, types.AWSConfig{})
	require.NoError(t, err)
	assert.Equal(t, dir, local.Describe())

	_, err = vfs.OpenURL(ctx, "", types.AWSConfig{})
	assert.Error(t, err)
}

func TestCleanAndJoin(t *testing.T) {
	assert.Equal(t, "a/b", vfs.Clean("/a//b/"))
	assert.Equal(t, "a/b", vfs.Clean(`a\b`))
	assert.Equal(t, "", vfs.Clean("/"))
	assert.Equal(t, "a/b/c", vfs.Join("a", "b/", "/c"))
}

// mockS3 is an in-memory S3API returning two keys per list page.
type mockS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	listCalls int
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(time.Now())}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seenPrefix := make(map[string]bool)
	var entries []string
	for _, k := range keys {
		if delim != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seenPrefix[cp] {
					seenPrefix[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		entries = append(entries, k)
	}

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	pageSize := 2
	if in.MaxKeys != nil && int(*in.MaxKeys) < pageSize {
		pageSize = int(*in.MaxKeys)
	}
	end := min(start+pageSize, len(entries))
	for _, k := range entries[start:end] {
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k]))),
			LastModified: aws.Time(time.Now()),
		})
	}
	if end < len(entries) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(m.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}
