package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type StorageManager interface {
	Open(name string) (File, error)
	Create(name string) (File, error)
	MkdirAll(name string, perm fs.FileMode) error
	Remove(name string) error
	Sub(dir string) (Storage, error)
}

type File interface {
	io.ReadCloser
	io.Writer
}

type Storage interface {
	StorageManager
	Close() error
}

// NewStorage opens the archive backend selected by the configuration.
func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	archive := cfg.Persistence.Archive
	switch archive.Driver {
	case config.ArchiveDriverFilesystem:
		err := os.MkdirAll(archive.Directory, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		return newFiles(archive.Directory)
	case config.ArchiveDriverS3:
		var loadOptions []func(*awsconfig.LoadOptions) error
		if archive.S3.Region != "" {
			loadOptions = append(loadOptions, awsconfig.WithRegion(archive.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = archive.S3.UsePathStyle
			if archive.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(archive.S3.Endpoint)
			}
		})
		return NewS3(archive.S3.Bucket, archive.S3.Prefix, client), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", archive.Driver)
	}
}
