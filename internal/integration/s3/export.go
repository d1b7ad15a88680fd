package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	ierr "github.com/recruitlink/billing/internal/errors"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	ExportFormatJSONL ExportFormat = "jsonl"
	ExportFormatJSON  ExportFormat = "json"
)

// ExportRequest represents a request to export data to S3
type ExportRequest struct {
	FileName   string // without extension
	Data       []byte
	Format     ExportFormat
	EntityType string // e.g. "ledger_entries"
}

// ExportResponse describes an uploaded file
type ExportResponse struct {
	FileURL        string
	Bucket         string
	Key            string
	FileSizeBytes  int64
	CompressedSize int64
	UploadedAt     time.Time
}

// UploadFile uploads a file to S3
func (c *Client) UploadFile(ctx context.Context, request *ExportRequest) (*ExportResponse, error) {
	if err := validateExportRequest(request, c.config.MaxFileSizeMB); err != nil {
		return nil, err
	}

	compress := c.config.Compression == "gzip"
	key := objectKey(c.config.Prefix, request, compress)

	data := request.Data
	originalSize := int64(len(data))
	if compress {
		compressed, err := compressData(data)
		if err != nil {
			return nil, err
		}
		data = compressed
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(request.Format, compress)),
	}
	switch c.config.Encryption {
	case "AES256":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to upload file to S3").
			WithMessagef("bucket: %s, key: %s", c.config.Bucket, key).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Infow("file uploaded to S3",
		"bucket", c.config.Bucket,
		"key", key,
		"file_size", len(data),
		"entity_type", request.EntityType,
	)

	return &ExportResponse{
		FileURL:        fmt.Sprintf("s3://%s/%s", c.config.Bucket, key),
		Bucket:         c.config.Bucket,
		Key:            key,
		FileSizeBytes:  originalSize,
		CompressedSize: int64(len(data)),
		UploadedAt:     time.Now().UTC(),
	}, nil
}

func validateExportRequest(request *ExportRequest, maxFileSizeMB int) error {
	if request == nil {
		return ierr.NewError("export request is nil").
			WithHint("Export request is required").
			Mark(ierr.ErrValidation)
	}
	if request.FileName == "" {
		return ierr.NewError("file name is required").
			WithHint("File name must be provided").
			Mark(ierr.ErrValidation)
	}
	if request.EntityType == "" {
		return ierr.NewError("entity type is required").
			WithHint("Entity type must be provided").
			Mark(ierr.ErrValidation)
	}
	if maxFileSizeMB > 0 && int64(len(request.Data)) > int64(maxFileSizeMB)*1024*1024 {
		return ierr.NewErrorf("file size exceeds maximum allowed size of %d MB", maxFileSizeMB).
			WithHint("Narrow the export window or raise s3.max_file_size_mb").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// objectKey is {prefix}/{entity_type}/{file_name}.{format}[.gz]
func objectKey(prefix string, request *ExportRequest, compress bool) string {
	extension := string(request.Format)
	if compress {
		extension += ".gz"
	}
	key := fmt.Sprintf("%s/%s/%s.%s", prefix, request.EntityType, request.FileName, extension)
	return strings.TrimPrefix(key, "/")
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to compress data").
			Mark(ierr.ErrSystem)
	}
	if err := writer.Close(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to close gzip writer").
			Mark(ierr.ErrSystem)
	}
	return buf.Bytes(), nil
}

func contentType(format ExportFormat, compressed bool) string {
	if compressed {
		return "application/gzip"
	}
	switch format {
	case ExportFormatJSONL:
		return "application/x-ndjson"
	case ExportFormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
