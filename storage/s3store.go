package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"
)

/*
Storage provider for S3-compatible object storage. We use the minio client
library. Names take the form bucket/key.

Writes stream: Create starts a multipart upload fed by a pipe, so a tee over a
large result never holds the whole file in memory. The upload completes when
the writer is closed, and Close returns the upload's error. CloseWithError
fails the pipe instead, so the upload is abandoned and no object is written.
*/

////////////////////////////////////////////////////////////////////////////////

var errUploadAborted = errors.New("upload aborted")

const (
	minioErrNoSuchKey = "NoSuchKey"

	// partSize bounds the upload buffer for streams of unknown length.
	partSize = 16 * 1024 * 1024
)

// S3Store is an S3 provider.
type S3Store struct {
	mc *minio.Client
}

// NewS3Store constructs a new S3 provider.
func NewS3Store(mc *minio.Client) *S3Store {
	return &S3Store{mc: mc}
}

func splitName(name string) (string, string, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(name, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object name %q: expected bucket/key", name)
	}
	return bucket, key, nil
}

type s3Writer struct {
	pw *io.PipeWriter
	g  *errgroup.Group
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return fmt.Errorf("failed to close pipe: %w", err)
	}
	if err := w.g.Wait(); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// CloseWithError abandons the upload.
func (w *s3Writer) CloseWithError(err error) error {
	if err == nil {
		err = errUploadAborted
	}
	_ = w.pw.CloseWithError(err)
	_ = w.g.Wait()
	return nil
}

// Create starts a streaming upload to name.
func (s *S3Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	bucket, key, err := splitName(name)
	if err != nil {
		return nil, err
	}
	exists, err := s.mc.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	pr, pw := io.Pipe()
	g := &errgroup.Group{}
	g.Go(func() error {
		_, err := s.mc.PutObject(ctx, bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: "text/csv",
			PartSize:    partSize,
		})
		pr.CloseWithError(err)
		return err
	})
	return &s3Writer{pw: pw, g: g}, nil
}

// Open returns a reader over an object.
func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key, err := splitName(name)
	if err != nil {
		return nil, err
	}
	obj, err := s.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == minioErrNoSuchKey {
			return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, nil
}

// Glob lists the objects under the literal prefix of pattern and filters
// them with a doublestar match on the key.
func (s *S3Store) Glob(ctx context.Context, pattern string) ([]string, error) {
	bucket, keyPattern, err := splitName(pattern)
	if err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(keyPattern) {
		return nil, fmt.Errorf("bad pattern %s: %w", pattern, doublestar.ErrBadPattern)
	}
	prefix := keyPattern
	if i := strings.IndexAny(keyPattern, "*?[{\\"); i >= 0 {
		prefix = keyPattern[:i]
	}
	matches := []string{}
	for obj := range s.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		ok, err := doublestar.Match(keyPattern, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to match %s: %w", obj.Key, err)
		}
		if ok {
			matches = append(matches, bucket+"/"+obj.Key)
		}
	}
	slices.Sort(matches)
	return matches, nil
}

// Delete removes an object from the object store.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	bucket, key, err := splitName(name)
	if err != nil {
		return err
	}
	if err := s.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == minioErrNoSuchKey {
			return nil
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3(%s)", s.mc.EndpointURL().Host)
}
