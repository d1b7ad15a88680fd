package types

import (
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/samber/lo"
)

type RunMode string

const (
	// ModeLocal is the mode for running the API server and the notification router locally
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server
	ModeAPI RunMode = "api"
	// ModeAWSLambdaAPI is the mode for running the API server in AWS Lambda
	ModeAWSLambdaAPI RunMode = "aws_lambda_api"
)

func (m RunMode) Validate() error {
	allowed := []RunMode{ModeLocal, ModeAPI, ModeAWSLambdaAPI}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid deployment mode").
			WithHint("Invalid deployment mode").
			WithReportableDetails(map[string]any{
				"mode":          m,
				"allowed_modes": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
