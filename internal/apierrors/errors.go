// Package apierrors provides shared error types for the mail service
// API client.
package apierrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks.
var (
	// ErrMissingCredentials is returned when no username/password is configured.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrAuthFailed is returned when login fails, or a second consecutive
	// 401 is hit after the one silent re-login attempt.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrFolderNotFound is returned when a named folder does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrMailNotFound is returned when a mail referenced by ID no longer exists.
	ErrMailNotFound = errors.New("mail not found")

	// ErrRateLimited is returned when the server's rate limit is exceeded
	// and retries have been exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ResourceType indicates which type of resource an error relates to.
type ResourceType string

const (
	ResourceUnknown ResourceType = ""
	ResourceFolder  ResourceType = "folder"
	ResourceMail    ResourceType = "mail"
	ResourceBlob    ResourceType = "blob"
)

// APIError represents an HTTP error from the mail service API.
type APIError struct {
	StatusCode   int
	Message      string
	RequestID    string
	ResourceType ResourceType
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 401:
		return target == ErrAuthFailed
	case 404:
		switch e.ResourceType {
		case ResourceFolder:
			return target == ErrFolderNotFound
		case ResourceMail:
			return target == ErrMailNotFound
		default:
			return target == ErrFolderNotFound || target == ErrMailNotFound
		}
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// WithResourceType returns a copy of the error with the resource type
// set. If err is not an *APIError, it is returned unchanged.
func WithResourceType(err error, rt ResourceType) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode:   apiErr.StatusCode,
			Message:      apiErr.Message,
			RequestID:    apiErr.RequestID,
			ResourceType: rt,
		}
	}
	return err
}

// NetworkError represents a network-level failure (DNS, TCP, TLS — the
// request never got a response to parse).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
