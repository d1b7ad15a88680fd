package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/integration/s3"
)

const ledgerExportEntityType = "ledger_entries"

// LedgerExportService writes read-only audit copies of the ledger to object storage
type LedgerExportService interface {
	// Export uploads every entry created in [from, to) as JSON lines
	Export(ctx context.Context, from, to time.Time) (*LedgerExportResult, error)
}

type LedgerExportResult struct {
	Entries  int    `json:"entries"`
	FileURL  string `json:"file_url,omitempty"`
	Bytes    int64  `json:"bytes"`
	Uploaded bool   `json:"uploaded"`
}

// exportedEntry is the audit record layout. Unlike API responses it keeps processor ids.
type exportedEntry struct {
	ID                  string     `json:"id"`
	SubscriptionID      string     `json:"subscription_id"`
	UserID              string     `json:"user_id"`
	ExternalPaymentID   *string    `json:"external_payment_id"`
	ExternalReferenceID string     `json:"external_reference_id"`
	Amount              int64      `json:"amount"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	PaymentType         string     `json:"payment_type"`
	FailureCode         *string    `json:"failure_code"`
	RefundedAmount      int64      `json:"refunded_amount"`
	CreatedAt           time.Time  `json:"created_at"`
	ConfirmedAt         *time.Time `json:"confirmed_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type ledgerExportService struct {
	ServiceParams
}

func NewLedgerExportService(params ServiceParams) LedgerExportService {
	return &ledgerExportService{
		ServiceParams: params,
	}
}

func (s *ledgerExportService) Export(ctx context.Context, from, to time.Time) (*LedgerExportResult, error) {
	if s.Uploader == nil {
		return nil, ierr.NewError("ledger export is not configured").
			WithHint("Enable s3 to export the ledger").
			Mark(ierr.ErrValidation)
	}
	if !from.Before(to) {
		return nil, ierr.NewError("export window is empty").
			WithHint("Export start must be before its end").
			WithReportableDetails(map[string]any{"from": from, "to": to}).
			Mark(ierr.ErrValidation)
	}

	entries, err := s.LedgerRepo.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result := &LedgerExportResult{Entries: len(entries)}
	if len(entries) == 0 {
		s.Logger.Infow("no ledger entries to export", "from", from, "to", to)
		return result, nil
	}

	var buf bytes.Buffer
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(exportedEntry{
			ID:                  e.ID,
			SubscriptionID:      e.SubscriptionID,
			UserID:              e.UserID,
			ExternalPaymentID:   e.ExternalPaymentID,
			ExternalReferenceID: e.ExternalReferenceID,
			Amount:              e.Amount,
			Currency:            e.Currency,
			Status:              string(e.Status),
			PaymentType:         string(e.PaymentType),
			FailureCode:         e.FailureCode,
			RefundedAmount:      e.RefundedAmount,
			CreatedAt:           e.CreatedAt,
			ConfirmedAt:         e.ConfirmedAt,
			UpdatedAt:           e.UpdatedAt,
		}); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to encode ledger entry").
				Mark(ierr.ErrSystem)
		}
	}

	resp, err := s.Uploader.UploadFile(ctx, &s3.ExportRequest{
		FileName:   fmt.Sprintf("ledger_%s_%s", from.UTC().Format("20060102T150405"), to.UTC().Format("20060102T150405")),
		Data:       buf.Bytes(),
		Format:     s3.ExportFormatJSONL,
		EntityType: ledgerExportEntityType,
	})
	if err != nil {
		return nil, err
	}

	result.FileURL = resp.FileURL
	result.Bytes = resp.FileSizeBytes
	result.Uploaded = true
	s.Logger.Infow("exported ledger entries",
		"entries", result.Entries,
		"file_url", result.FileURL,
		"from", from,
		"to", to,
	)
	return result, nil
}
