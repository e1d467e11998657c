package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/automated-mda/backend/internal/config"
	"github.com/automated-mda/backend/internal/models"
)

var ErrArchiveDisabled = errors.New("report archive is not configured")

// Archive uploads generated reports to an S3-compatible bucket.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to MinIO and makes sure the bucket exists.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, ErrArchiveDisabled
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Archive{client: cli, bucket: cfg.Bucket}, nil
}

// ReportKey is the object key of a bundle's markdown report.
func ReportKey(id string) string {
	return "reports/" + id + ".md"
}

// PutReport uploads the bundle's markdown report and returns its object
// key.
func (a *Archive) PutReport(ctx context.Context, bundle *models.ResultsBundle) (string, error) {
	key := ReportKey(bundle.ID)
	data := []byte(bundle.Markdown)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/markdown; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return key, nil
}
