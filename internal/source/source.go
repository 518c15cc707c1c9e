package source

import (
	"errors"
	"fmt"
)

// SourceType identifies the kind of external service a client talks to.
type SourceType string

const (
	SourceTypeJira   SourceType = "jira"
	SourceTypeGitLab SourceType = "gitlab"
)

// AuthError indicates that authentication failed for a service.
// It is returned by clients when a 401 response is received.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates the service answered 404 for a resource.
type NotFoundError struct {
	SourceType SourceType
	Resource   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found (%s): %s", e.SourceType, e.Resource)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// StatusError carries an unexpected non-2xx response, with the body
// preserved for diagnostics.
type StatusError struct {
	SourceType SourceType
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d (%s): %s", e.StatusCode, e.SourceType, e.Body,
	)
}

// AsStatusError returns the StatusError in err's chain, if any.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
