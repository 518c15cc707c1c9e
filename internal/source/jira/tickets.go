package jira

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoFixVersions is returned when an issue carries no fix versions,
// leaving nothing to derive a release branch from.
var ErrNoFixVersions = errors.New("issue has no fix versions")

// IntegrityError indicates the tracker answered with a different issue
// key than the one requested. Jira silently follows moved/renamed
// issues, which would otherwise revoke access for the wrong ticket.
type IntegrityError struct {
	Requested string
	Received  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"mismatched issue key: requested %s, received %s",
		e.Requested, e.Received,
	)
}

// IsIntegrityError reports whether err (or any error in its chain) is
// an IntegrityError.
func IsIntegrityError(err error) bool {
	var intErr *IntegrityError
	return errors.As(err, &intErr)
}

// Tickets resolves issue-level facts needed by the revocation pipeline.
type Tickets struct {
	client *Client
}

// NewTickets creates a ticket resolver against the given Jira instance.
func NewTickets(baseURL, username, password string) *Tickets {
	return &Tickets{client: NewClient(baseURL, username, password)}
}

// fetchIssue retrieves an issue restricted to the given fields and
// verifies the returned key matches the requested one.
func (t *Tickets) fetchIssue(
	ctx context.Context,
	ticketID string,
	fields string,
) (*Issue, error) {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s?fields=%s",
		url.PathEscape(ticketID), fields,
	)

	var issue Issue
	if err := t.client.Get(ctx, path, &issue); err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w", ticketID, err)
	}

	if issue.Key != ticketID {
		return nil, &IntegrityError{
			Requested: ticketID,
			Received:  issue.Key,
		}
	}

	return &issue, nil
}

// Assignee returns the display name of the issue's assignee.
func (t *Tickets) Assignee(
	ctx context.Context,
	ticketID string,
) (string, error) {
	issue, err := t.fetchIssue(ctx, ticketID, "assignee")
	if err != nil {
		return "", err
	}

	if issue.Fields.Assignee == nil {
		return "", fmt.Errorf("issue %s has no assignee", ticketID)
	}

	return issue.Fields.Assignee.DisplayName, nil
}

// Status returns the issue's status name (e.g., "Closed", "In Progress").
func (t *Tickets) Status(
	ctx context.Context,
	ticketID string,
) (string, error) {
	issue, err := t.fetchIssue(ctx, ticketID, "status")
	if err != nil {
		return "", err
	}

	return issue.Fields.Status.Name, nil
}

// FixVersionBranches maps the issue's fix-version names to release
// branch short-names by replacing the literal "R" with "."
// (e.g., "24R3" becomes "24.3"). Returns ErrNoFixVersions when the
// issue carries no fix versions.
func (t *Tickets) FixVersionBranches(
	ctx context.Context,
	ticketID string,
) ([]string, error) {
	issue, err := t.fetchIssue(ctx, ticketID, "fixVersions")
	if err != nil {
		return nil, err
	}

	if len(issue.Fields.FixVersions) == 0 {
		return nil, fmt.Errorf("issue %s: %w", ticketID, ErrNoFixVersions)
	}

	branches := make([]string, 0, len(issue.Fields.FixVersions))
	for _, v := range issue.Fields.FixVersions {
		branches = append(branches, strings.ReplaceAll(v.Name, "R", "."))
	}

	return branches, nil
}

// FilterIssueKeys returns the issue keys matched by a saved Jira
// filter, via a key-only search projection.
func (t *Tickets) FilterIssueKeys(
	ctx context.Context,
	filterID string,
) ([]string, error) {
	path := fmt.Sprintf(
		"/rest/api/2/search?jql=%s&fields=key",
		url.QueryEscape("filter="+filterID),
	)

	var resp SearchResponse
	if err := t.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("searching filter %s: %w", filterID, err)
	}

	keys := make([]string, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		keys = append(keys, issue.Key)
	}

	return keys, nil
}
