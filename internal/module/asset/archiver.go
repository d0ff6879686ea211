package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/shared/config"
)

// maxImageSize caps one downloaded image at 20 MiB.
const maxImageSize = 20 << 20

// Archiver copies generated images from the provider's short-lived URLs
// into our own bucket so designs stay renderable after the URLs expire.
type Archiver struct {
	client        *s3.Client
	httpClient    *http.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// NewArchiver creates an archiver from storage configuration. An empty
// bucket disables archiving; callers get a nil archiver back.
func NewArchiver(cfg *config.StorageConfig, logger *zap.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("incomplete storage configuration")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archiver{
		client:        client,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Archive downloads each image and uploads it under the design's key
// prefix, returning the archived URLs in the same order. Any failure
// aborts the whole batch so a design never mixes archived and provider
// URLs.
func (a *Archiver) Archive(ctx context.Context, accountID, designID uuid.UUID, urls []string) ([]string, error) {
	archived := make([]string, len(urls))
	for i, url := range urls {
		key := fmt.Sprintf("designs/%s/%s/%d.png", accountID, designID, i)
		if err := a.copyObject(ctx, url, key); err != nil {
			return nil, fmt.Errorf("archive image %d: %w", i, err)
		}
		archived[i] = a.publicURL(key)
	}
	a.logger.Debug("design images archived",
		zap.Stringer("design_id", designID),
		zap.Int("count", len(archived)),
	)
	return archived, nil
}

func (a *Archiver) copyObject(ctx context.Context, url, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

func (a *Archiver) publicURL(key string) string {
	if a.publicBaseURL != "" {
		return a.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key)
}
