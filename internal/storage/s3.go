package storage

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// S3API is the subset of the S3 client the archive needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3 struct {
	root     string
	bucket   string
	s3Client S3API
}

// S3File buffers writes and uploads them as one object on Close.
type S3File struct {
	key        string
	body       io.ReadCloser
	buffer     bytes.Buffer
	hasWritten bool
	filesystem *S3
}

func (f *S3File) Read(p []byte) (int, error) {
	if f.body == nil {
		return 0, io.EOF
	}
	return f.body.Read(p)
}

func (f *S3File) Write(p []byte) (n int, err error) {
	f.hasWritten = true
	return f.buffer.Write(p)
}

func (f *S3File) Close() error {
	errGrp := errgroup.Group{}
	if f.body != nil {
		errGrp.Go(func() error {
			return f.body.Close()
		})
	}
	// Write the buffer to S3
	if f.hasWritten {
		errGrp.Go(func() error {
			_, err := f.filesystem.s3Client.PutObject(context.Background(), &s3.PutObjectInput{
				Bucket: aws.String(f.filesystem.bucket),
				Key:    aws.String(f.key),
				Body:   bytes.NewReader(f.buffer.Bytes()),
			})
			return err
		})
	}

	return errGrp.Wait()
}

func NewS3(bucket, root string, s3Client S3API) *S3 {
	return &S3{
		bucket:   bucket,
		root:     root,
		s3Client: s3Client,
	}
}

func (s *S3) key(name string) string {
	return path.Join(s.root, name)
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) Open(name string) (File, error) {
	res, err := s.s3Client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		slog.Error("failed to open object", "key", s.key(name), "error", err)
		return nil, err
	}

	return &S3File{
		body:       res.Body,
		filesystem: s,
		key:        s.key(name),
	}, nil
}

func (s *S3) MkdirAll(string, fs.FileMode) error {
	// No-op: S3 doesn't have directories
	return nil
}

func (s *S3) Sub(dir string) (Storage, error) {
	return NewS3(s.bucket, s.key(dir), s.s3Client), nil
}

func (s *S3) Create(name string) (File, error) {
	return &S3File{
		filesystem: s,
		key:        s.key(name),
	}, nil
}

func (s *S3) Remove(name string) error {
	_, err := s.s3Client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}
