package utils

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
	Meta      interface{} `json:"meta,omitempty"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
}

// SendCreated sends a 201 response
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
}

// SendSuccessWithMeta sends a successful response with metadata
func SendSuccessWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Meta:      meta,
		Timestamp: timestamp(),
	})
}

// SendError sends an error response
func SendError(c *gin.Context, statusCode int, message string) {
	resp := Response{
		Success:   false,
		Error:     message,
		Timestamp: timestamp(),
	}

	if statusCode == http.StatusNotFound && c.FullPath() == "" {
		if suggestions := notFoundSuggestions(c.Request.URL.Path); len(suggestions) > 0 {
			resp.Details = map[string]interface{}{"suggestions": suggestions}
		}
	}

	c.JSON(statusCode, resp)
}

// SendAppError sends the status, message and details carried by an AppError. Any other
// error is reported as a 500.
func SendAppError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(http.StatusInternalServerError, "Internal server error", err)
	}
	c.JSON(appErr.Code, Response{
		Success:   false,
		Error:     appErr.Message,
		Details:   appErr.Details,
		Timestamp: timestamp(),
	})
}

var knownEndpoints = []string{
	"/health",
	"/metrics",
	"/ws",
	"/api/v1/rules",
	"/api/v1/automation/history",
	"/api/v1/automation/status",
	"/api/v1/campaigns",
	"/api/v1/insights",
	"/api/v1/anomalies",
	"/api/v1/anomalies/history",
	"/api/v1/predictions/bid",
	"/api/v1/predictions/performance",
	"/api/v1/alerts",
}

// notFoundSuggestions lists known endpoints sharing a path segment with the request
func notFoundSuggestions(path string) []string {
	var segments []string
	for _, s := range strings.Split(strings.ToLower(path), "/") {
		if s != "" && s != "api" && s != "v1" {
			segments = append(segments, strings.TrimSuffix(s, "s"))
		}
	}

	var suggestions []string
	for _, endpoint := range knownEndpoints {
		for _, s := range segments {
			if strings.Contains(endpoint, s) {
				suggestions = append(suggestions, endpoint)
				break
			}
		}
		if len(suggestions) == 5 {
			break
		}
	}
	return suggestions
}
