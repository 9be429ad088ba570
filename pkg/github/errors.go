package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
)

// APIError represents a GitHub API error response
type APIError struct {
	StatusCode int
	Message    string
	Errors     []APIErrorDetail `json:"errors,omitempty"`
	// Body is the raw remote response body, preserved so callers can mirror
	// the remote diagnostic verbatim.
	Body []byte
}

// APIErrorDetail represents individual error details from GitHub
type APIErrorDetail struct {
	Resource string `json:"resource"`
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("GitHub API error (status %d)", e.StatusCode)
}

// IsNotFoundError returns true if the error is a not found error
func IsNotFoundError(err error) bool {
	// Check our custom APIError type
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.StatusCode == http.StatusNotFound
	}

	// go-github returns errors with the status code in the message
	if err != nil && strings.Contains(err.Error(), "404") {
		return true
	}

	return false
}

// IsAuthenticationError returns true if the error is an authentication error
func IsAuthenticationError(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusForbidden
	}
	if err != nil {
		msg := err.Error()
		return strings.Contains(msg, "401") || strings.Contains(msg, "403")
	}
	return false
}

// convertGitHubError normalizes a go-github *ErrorResponse into an
// *APIError so every remote rejection carries a mappable status and the
// full remote diagnostic, regardless of which operation produced it.
// Transport-level failures pass through unchanged.
func convertGitHubError(err error) error {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return err
	}

	apiErr := &APIError{
		StatusCode: ghErr.Response.StatusCode,
		Message:    ghErr.Message,
	}
	for _, e := range ghErr.Errors {
		apiErr.Errors = append(apiErr.Errors, APIErrorDetail{
			Resource: e.Resource,
			Field:    e.Field,
			Code:     e.Code,
			Message:  e.Message,
		})
	}

	// Reconstruct the remote payload so callers can mirror it verbatim.
	body, merr := json.Marshal(struct {
		Message string           `json:"message"`
		Errors  []APIErrorDetail `json:"errors,omitempty"`
	}{apiErr.Message, apiErr.Errors})
	if merr == nil {
		apiErr.Body = body
	}

	return apiErr
}

// parseErrorResponse parses an error response from GitHub
func parseErrorResponse(statusCode int, body []byte) *APIError {
	var apiErr APIError
	apiErr.StatusCode = statusCode
	apiErr.Body = body

	// Try to parse as GitHub error response
	var githubErr struct {
		Message string           `json:"message"`
		Errors  []APIErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &githubErr); err == nil {
		apiErr.Message = githubErr.Message
		apiErr.Errors = githubErr.Errors
	} else {
		// If parsing fails, use the body as the message
		apiErr.Message = string(body)
	}

	return &apiErr
}
