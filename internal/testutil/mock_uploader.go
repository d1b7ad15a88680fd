package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recruitlink/billing/internal/integration/s3"
)

var _ s3.Uploader = (*RecordingUploader)(nil)

// RecordingUploader keeps uploaded export files in memory
type RecordingUploader struct {
	mu        sync.Mutex
	Requests  []*s3.ExportRequest
	UploadErr error
}

func NewRecordingUploader() *RecordingUploader {
	return &RecordingUploader{}
}

func (u *RecordingUploader) UploadFile(ctx context.Context, request *s3.ExportRequest) (*s3.ExportResponse, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.UploadErr != nil {
		return nil, u.UploadErr
	}
	u.Requests = append(u.Requests, request)
	key := fmt.Sprintf("%s/%s.%s", request.EntityType, request.FileName, request.Format)
	return &s3.ExportResponse{
		FileURL:        "s3://test-bucket/" + key,
		Bucket:         "test-bucket",
		Key:            key,
		FileSizeBytes:  int64(len(request.Data)),
		CompressedSize: int64(len(request.Data)),
		UploadedAt:     time.Now().UTC(),
	}, nil
}
