package minio

import (
	"context"
	"fmt"
	"io"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/not-nullexception/render-thumbnails/internal/minio"
	"github.com/rs/zerolog"
)

type MinioClient struct {
	client     *minioLib.Client
	bucketName string
	logger     zerolog.Logger
}

func NewClient(ctx context.Context, cfg *config.MinIOConfig) (minio.Client, error) {
	log := logger.GetLogger("minio-client")

	// Initialize MinIO client
	client, err := minioLib.New(cfg.Endpoint, &minioLib.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.SSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing MinIO client: %w", err)
	}

	// The bucket holds the originals, so it has to exist already.
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("Connected to MinIO")

	return &MinioClient{
		client:     client,
		bucketName: cfg.Bucket,
		logger:     log,
	}, nil
}

// GetObject retrieves an object from MinIO. A missing key surfaces as
// minio.ErrObjectNotFound on the first read.
func (m *MinioClient) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, objectName, minioLib.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("error getting object: %w", err)
	}

	m.logger.Debug().Str("object", objectName).Msg("Object opened")
	return &objectReader{Object: obj}, nil
}

// PutObject uploads an object to MinIO
func (m *MinioClient) PutObject(ctx context.Context, reader io.Reader, size int64, objectName string, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, objectName, reader, size,
		minioLib.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("error uploading object: %w", err)
	}

	m.logger.Debug().Str("object", objectName).Int64("size", size).Msg("Object uploaded successfully")
	return nil
}

// ObjectExists checks for a non-empty object
func (m *MinioClient) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	info, err := m.client.StatObject(ctx, m.bucketName, objectName, minioLib.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("error checking object: %w", err)
	}
	return info.Size > 0, nil
}

// Close closes the MinIO client connection
func (m *MinioClient) Close() error {
	return nil
}

type objectReader struct {
	*minioLib.Object
}

func (r *objectReader) Read(p []byte) (int, error) {
	n, err := r.Object.Read(p)
	if err != nil && isNoSuchKey(err) {
		return n, fmt.Errorf("%w: %v", minio.ErrObjectNotFound, err)
	}
	return n, err
}

func isNoSuchKey(err error) bool {
	return minioLib.ToErrorResponse(err).Code == "NoSuchKey"
}
