package vfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// deleteBatch is the most keys a single DeleteObjects call accepts.
const deleteBatch = 1000

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, input *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 is a filesystem over a bucket prefix. Directories are implied by keys.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// S3Option configures an S3 filesystem.
type S3Option func(*S3)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) S3Option {
	return func(s *S3) { s.client = c }
}

// NewS3 creates a filesystem rooted at s3://bucket/prefix. Without a client
// option the default AWS config chain is used, adjusted by awsCfg.
func NewS3(ctx context.Context, bucket, prefix string, awsCfg types.AWSConfig, opts ...S3Option) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	s := &S3{bucket: bucket, prefix: Clean(prefix)}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if awsCfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(awsCfg.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if awsCfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(awsCfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	}
	return s, nil
}

func (s *S3) key(name string) string {
	return Join(s.prefix, name)
}

func (s *S3) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

// Describe returns the s3:// location.
func (s *S3) Describe() string {
	return "s3://" + Join(s.bucket, s.prefix)
}

func (s *S3) list(ctx context.Context, prefix, delimiter string, fn func(*s3.ListObjectsV2Output) error) error {
	var token *string
	for {
		in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix), ContinuationToken: token}
		if delimiter != "" {
			in.Delimiter = aws.String(delimiter)
		}
		out, err := s.client.ListObjectsV2(ctx, in)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
		}
		if err := fn(out); err != nil {
			return err
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// Walk lists every object under root.
func (s *S3) Walk(ctx context.Context, root string) ([]types.FileInfo, error) {
	var out []types.FileInfo
	err := s.list(ctx, dirPrefix(s.key(root)), "", func(page *s3.ListObjectsV2Output) error {
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if strings.HasSuffix(k, "/") {
				continue
			}
			out = append(out, types.FileInfo{Path: s.rel(k), Size: aws.ToInt64(obj.Size), ModTime: aws.ToTime(obj.LastModified).UTC()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// MkdirAll is a no-op: S3 has no directories.
func (s *S3) MkdirAll(_ context.Context, _ string) error { return nil }

// Open downloads an object.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(name))})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return nil, fmt.Errorf("getting %s: %w", name, err)
	}
	return out.Body, nil
}

type s3Writer struct {
	bytes.Buffer
	ctx  context.Context
	fs   *S3
	key  string
	done bool
}

func (w *s3Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	_, err := w.fs.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.fs.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", w.key, err)
	}
	return nil
}

// Create returns a writer uploaded on Close.
func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key := s.key(name)
	if key == "" {
		return nil, fmt.Errorf("cannot create filesystem root")
	}
	return &s3Writer{ctx: ctx, fs: s, key: key}, nil
}

// Exists reports whether an object or a prefix exists.
func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	key := s.key(name)
	if key != "" {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			return false, fmt.Errorf("heading %s: %w", name, err)
		}
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(dirPrefix(key)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("listing %s: %w", name, err)
	}
	return len(out.Contents) > 0, nil
}

// Stat describes an object.
func (s *S3) Stat(ctx context.Context, name string) (types.FileInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(name))})
	if err != nil {
		if isNotFound(err) {
			return types.FileInfo{}, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return types.FileInfo{}, fmt.Errorf("heading %s: %w", name, err)
	}
	return types.FileInfo{Path: Clean(name), Size: aws.ToInt64(out.ContentLength), ModTime: aws.ToTime(out.LastModified).UTC()}, nil
}

// ListDir lists the immediate children of a prefix.
func (s *S3) ListDir(ctx context.Context, dir string) ([]string, error) {
	prefix := dirPrefix(s.key(dir))
	seen := make(map[string]bool)
	err := s.list(ctx, prefix, "/", func(page *s3.ListObjectsV2Output) error {
		for _, cp := range page.CommonPrefixes {
			n := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if n != "" {
				seen[n] = true
			}
		}
		for _, obj := range page.Contents {
			n := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if n != "" && !strings.Contains(n, "/") {
				seen[n] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, dir)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes one object.
func (s *S3) Remove(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(name))})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// RemoveAll deletes every object under a prefix.
func (s *S3) RemoveAll(ctx context.Context, dir string) error {
	if Clean(dir) == "" {
		return fmt.Errorf("refusing to remove filesystem root")
	}
	key := s.key(dir)
	var keys []string
	err := s.list(ctx, dirPrefix(key), "", func(page *s3.ListObjectsV2Output) error {
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting objects under %s: %w", dir, err)
		}
	}
	return nil
}

// Sub returns a filesystem rooted at a sub-prefix.
func (s *S3) Sub(dir string) (FS, error) {
	return &S3{client: s.client, bucket: s.bucket, prefix: s.key(dir)}, nil
}
