package middleware

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	ierr "github.com/recruitlink/billing/internal/errors"
)

const internalErrorMessage = "An unexpected error occurred"

// ErrorHandler renders the last error attached to the context. Server errors
// carry only a generic message so internal details never reach the caller.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)

		response := ierr.ErrorResponse{
			Success: false,
			Error: ierr.ErrorDetail{
				Display: internalErrorMessage,
			},
		}
		if status < http.StatusInternalServerError {
			response.Error.Display = getDisplayMessage(err)
			response.Error.Details = getSafeDetails(err)
		}

		c.JSON(status, response)
	}
}

func getDisplayMessage(err error) string {
	// GetAllHints is a post-order traversal, the first non-empty hint wins
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return internalErrorMessage
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			jsonStr, ok := strings.CutPrefix(payload, "__json__:")
			if !ok {
				continue
			}
			var jsonDetails map[string]any
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(jsonStr), &jsonDetails); err == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}
