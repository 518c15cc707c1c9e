package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nhle/branch-revoker/internal/source"
)

// SearchMergeRequests queries the instance-wide merge-request search
// for MRs referencing the given ticket ID.
//
// A non-2xx answer from GitLab is not an error here: the search
// endpoint responds that way for tickets with no linked merge
// requests, and the caller's fallback policy decides what that means.
// Only connectivity and parse failures are reported as errors.
func (c *Client) SearchMergeRequests(
	ctx context.Context,
	ticketID string,
) ([]MergeRequest, error) {
	path := fmt.Sprintf(
		"/merge_requests?scope=all&search=%s", url.QueryEscape(ticketID),
	)

	var mrs []MergeRequest
	err := c.Get(ctx, path, &mrs)
	if err != nil {
		if isNoResultStatus(err) {
			return nil, nil
		}
		return nil, fmt.Errorf(
			"searching merge requests for %s: %w", ticketID, err,
		)
	}

	return mrs, nil
}

// isNoResultStatus reports whether err is a non-2xx API answer rather
// than a transport or parse failure.
func isNoResultStatus(err error) bool {
	if source.IsNotFound(err) {
		return true
	}
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var authErr *source.AuthError
	return errors.As(err, &authErr)
}
