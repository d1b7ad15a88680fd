package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
)

// Uploader writes export files to object storage
type Uploader interface {
	UploadFile(ctx context.Context, request *ExportRequest) (*ExportResponse, error)
}

// Client uploads export files to the configured bucket
type Client struct {
	s3Client *s3.Client
	config   config.S3Config
	logger   *logger.Logger
}

// NewClient builds an S3 client from the default AWS credential chain
func NewClient(ctx context.Context, cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if !cfg.S3.Enabled {
		return nil, ierr.NewError("s3 export is disabled").
			WithHint("Ledger export is not configured").
			Mark(ierr.ErrValidation)
	}

	awsCfg, err := config.LoadAwsConfig(ctx, cfg.S3)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to load AWS config").
			Mark(ierr.ErrHTTPClient)
	}

	var opts []func(*s3.Options)
	if cfg.S3.EndpointURL != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3.EndpointURL)
			o.UsePathStyle = cfg.S3.UsePathStyle
		})
	}

	logger.Infow("S3 client created",
		"bucket", cfg.S3.Bucket,
		"region", cfg.S3.Region,
		"prefix", cfg.S3.Prefix,
	)

	return &Client{
		s3Client: s3.NewFromConfig(awsCfg, opts...),
		config:   cfg.S3,
		logger:   logger,
	}, nil
}

// ValidateConnection checks that the bucket is reachable with the loaded credentials
func (c *Client) ValidateConnection(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.Bucket),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to validate S3 connection - check credentials and bucket name").
			WithMessagef("bucket: %s, region: %s", c.config.Bucket, c.config.Region).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}
