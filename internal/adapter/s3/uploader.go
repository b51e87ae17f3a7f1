// Package s3 uploads exported bundles to an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/export"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/dustin/go-humanize"
)

const (
	contentTypeSQL  = "application/sql"
	contentTypeJSON = "application/json"
)

// Config holds the bucket coordinates. Credentials come from the default AWS chain.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; set for MinIO or other S3-compatible stores
	PathStyle bool
	Prefix    string
}

// Uploader copies a bundle directory to object storage under prefix/run_id/.
type Uploader struct {
	client  *s3.Client
	bucket  string
	prefix  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates an Uploader using the default AWS credential chain.
func New(ctx context.Context, cfg Config, metrics *observability.Metrics, logger *slog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newUploader(client, cfg, metrics, logger), nil
}

func newUploader(client *s3.Client, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Uploader {
	return &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Key returns the object key for a bundle file.
func (u *Uploader) Key(runID, name string) string {
	if u.prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(u.prefix, runID, name)
}

// Upload puts every file listed in the manifest, then the manifest itself, so
// a reader that sees the manifest can rely on the data files being present.
// It returns the manifest's object key.
func (u *Uploader) Upload(ctx context.Context, dir string, manifest domain.BundleManifest) (string, error) {
	if manifest.RunID == "" {
		return "", errors.New("manifest has no run id")
	}

	var total int64
	for _, f := range manifest.Files {
		if err := u.put(ctx, dir, manifest.RunID, f.Name, contentTypeSQL, f.SHA256); err != nil {
			return "", err
		}
		total += f.Bytes
	}
	if err := u.put(ctx, dir, manifest.RunID, export.ManifestFile, contentTypeJSON, ""); err != nil {
		return "", err
	}

	key := u.Key(manifest.RunID, export.ManifestFile)
	u.metrics.BundlesPublished.WithLabelValues("s3").Inc()
	u.logger.Info("bundle uploaded",
		"bucket", u.bucket,
		"manifest", key,
		"files", len(manifest.Files),
		"size", humanize.Bytes(uint64(total)), //nolint:gosec // file sizes are non-negative
	)
	return key, nil
}

func (u *Uploader) put(ctx context.Context, dir, runID, name, contentType, sum string) error {
	body, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read bundle file %s: %w", name, err)
	}
	key := u.Key(runID, name)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if sum != "" {
		input.Metadata = map[string]string{"sha256": sum}
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
