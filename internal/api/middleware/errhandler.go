package middleware

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

// ErrorResponse is the envelope every failed request returns
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the client safe message and structured details
type ErrorDetail struct {
	Display string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into the
// standard response envelope with the status mapped from the error mark
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		response := ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Display: displayMessage(err),
				Details: safeDetails(err),
			},
		}
		c.JSON(ierr.HTTPStatusFromErr(err), response)
	}
}

func displayMessage(err error) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

// safeDetails recovers the structured details the error builder attached
// via WithReportableDetails
func safeDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if !strings.HasPrefix(payload, "__json__:") {
				continue
			}
			var jsonDetails map[string]any
			if err := json.Unmarshal([]byte(payload[len("__json__:"):]), &jsonDetails); err == nil {
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
